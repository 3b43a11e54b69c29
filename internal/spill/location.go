// Package spill allocates spill locations and encryption keys for splits and
// checks that the spill bucket is reachable.
package spill

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"fedcat/internal/domain"
)

var _ domain.SpillLocator = (*LocationFactory)(nil)

// Supported spill URI schemes.
const (
	SchemeS3    = "s3"
	SchemeGCS   = "gs"
	SchemeAzure = "az"
	SchemeABFSS = "abfss"
)

// Root is the parsed spill root: a bucket (or container) plus a key prefix.
type Root struct {
	Scheme string
	Bucket string
	// Host is the storage account host for abfss roots.
	Host   string
	Prefix string
}

// ParseRoot parses the spill bucket setting. A bare name is an S3 bucket;
// otherwise s3://, gs://, az:// and abfss://container@host URIs are
// accepted. prefix is appended to any path already present in bucket.
//
// Supported formats:
//
//	my-bucket
//	s3://my-bucket/base
//	gs://my-bucket
//	az://container
//	abfss://container@account.dfs.core.windows.net
func ParseRoot(bucket, prefix string) (Root, error) {
	if bucket == "" {
		return Root{}, nil
	}
	if !strings.Contains(bucket, "://") {
		return Root{Scheme: SchemeS3, Bucket: bucket, Prefix: joinPath(prefix)}, nil
	}

	u, err := url.Parse(bucket)
	if err != nil {
		return Root{}, fmt.Errorf("parse spill bucket %q: %w", bucket, err)
	}
	root := Root{Scheme: u.Scheme, Prefix: joinPath(u.Path, prefix)}

	switch u.Scheme {
	case SchemeS3, SchemeGCS, SchemeAzure:
		root.Bucket = u.Host
	case SchemeABFSS:
		// Go's url.Parse treats "container" as userinfo.
		if u.User == nil {
			return Root{}, fmt.Errorf("abfss spill bucket %q missing container@account component", bucket)
		}
		root.Bucket = u.User.Username()
		root.Host = u.Host
	default:
		return Root{}, fmt.Errorf("unrecognized spill bucket scheme %q in %q", u.Scheme, bucket)
	}
	if root.Bucket == "" {
		return Root{}, fmt.Errorf("empty bucket in %q", bucket)
	}
	return root, nil
}

// IsZero reports whether no spill bucket is configured.
func (r Root) IsZero() bool {
	return r.Bucket == ""
}

// URI renders the root followed by parts, with a trailing slash.
func (r Root) URI(parts ...string) string {
	var b strings.Builder
	b.WriteString(r.Scheme)
	b.WriteString("://")
	b.WriteString(r.Bucket)
	if r.Host != "" {
		b.WriteString("@")
		b.WriteString(r.Host)
	}
	b.WriteString("/")
	if p := joinPath(append([]string{r.Prefix}, parts...)...); p != "" {
		b.WriteString(p)
		b.WriteString("/")
	}
	return b.String()
}

// LocationFactory hands out unique spill locations under a Root.
type LocationFactory struct {
	root  Root
	newID func() string
}

// NewLocationFactory creates a factory. A zero root yields empty locations.
func NewLocationFactory(root Root) *LocationFactory {
	return &LocationFactory{root: root, newID: uuid.NewString}
}

// Root returns the configured root.
func (f *LocationFactory) Root() Root {
	return f.root
}

// New returns a fresh location <root>/<queryID>/<splitID>/.
func (f *LocationFactory) New(queryID string) domain.SpillLocation {
	if f.root.IsZero() {
		return domain.SpillLocation{}
	}
	return domain.SpillLocation{URI: f.root.URI(queryID, f.newID())}
}

func joinPath(parts ...string) string {
	var out []string
	for _, p := range parts {
		for _, seg := range strings.Split(p, "/") {
			if seg != "" {
				out = append(out, seg)
			}
		}
	}
	return strings.Join(out, "/")
}
