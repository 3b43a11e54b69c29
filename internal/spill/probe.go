package spill

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"
)

// Prober checks that a spill bucket exists and is accessible.
type Prober interface {
	Probe(ctx context.Context) error
}

// S3API is the subset of the S3 client used for probing.
type S3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Prober probes an S3 bucket with HeadBucket.
type S3Prober struct {
	api    S3API
	bucket string
}

// NewS3Prober creates an S3Prober over api.
func NewS3Prober(api S3API, bucket string) *S3Prober {
	return &S3Prober{api: api, bucket: bucket}
}

// Probe implements Prober.
func (p *S3Prober) Probe(ctx context.Context) error {
	if _, err := p.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)}); err != nil {
		return fmt.Errorf("head s3 bucket %q: %w", p.bucket, err)
	}
	return nil
}

// GCSProber probes a Cloud Storage bucket by reading its attributes.
type GCSProber struct {
	client *storage.Client
	bucket string
}

// NewGCSProber creates a GCSProber. Credentials come from opts or the
// application default chain.
func NewGCSProber(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSProber, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSProber{client: client, bucket: bucket}, nil
}

// Probe implements Prober.
func (p *GCSProber) Probe(ctx context.Context) error {
	if _, err := p.client.Bucket(p.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("read gcs bucket %q: %w", p.bucket, err)
	}
	return nil
}

// AzureProber probes a blob container by reading its properties.
type AzureProber struct {
	client    *azblob.Client
	container string
}

// NewAzureProber creates an AzureProber for container in the account
// served at serviceURL. Access relies on a SAS token in serviceURL or on
// anonymous access.
func NewAzureProber(serviceURL, container string) (*AzureProber, error) {
	client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure client: %w", err)
	}
	return &AzureProber{client: client, container: container}, nil
}

// Probe implements Prober.
func (p *AzureProber) Probe(ctx context.Context) error {
	if _, err := p.client.ServiceClient().NewContainerClient(p.container).GetProperties(ctx, nil); err != nil {
		return fmt.Errorf("read azure container %q: %w", p.container, err)
	}
	return nil
}

// NewProber returns the prober matching the root's scheme.
func NewProber(ctx context.Context, root Root, awsCfg aws.Config, gcsOpts ...option.ClientOption) (Prober, error) {
	switch root.Scheme {
	case SchemeS3:
		return NewS3Prober(s3.NewFromConfig(awsCfg), root.Bucket), nil
	case SchemeGCS:
		return NewGCSProber(ctx, root.Bucket, gcsOpts...)
	case SchemeABFSS:
		return NewAzureProber(BlobServiceURL(root.Host), root.Bucket)
	default:
		return nil, fmt.Errorf("cannot probe %s:// spill roots", root.Scheme)
	}
}

// BlobServiceURL derives the blob endpoint from a storage account host,
// e.g. account.dfs.core.windows.net -> https://account.blob.core.windows.net/.
func BlobServiceURL(host string) string {
	account, _, _ := strings.Cut(host, ".")
	return fmt.Sprintf("https://%s.blob.core.windows.net/", account)
}
