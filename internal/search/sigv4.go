package search

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// signingService is the SigV4 service name of managed search domains.
const signingService = "es"

// SigV4Transport signs outgoing requests with AWS Signature Version 4.
type SigV4Transport struct {
	next        http.RoundTripper
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	region      string
	now         func() time.Time
}

// NewSigV4Transport wraps next (http.DefaultTransport when nil).
func NewSigV4Transport(next http.RoundTripper, credentials aws.CredentialsProvider, region string) *SigV4Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &SigV4Transport{
		next:        next,
		credentials: credentials,
		signer:      v4.NewSigner(),
		region:      region,
		now:         time.Now,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *SigV4Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	creds, err := t.credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve credentials: %w", err)
	}

	signed := req.Clone(ctx)
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		signed.Body = io.NopCloser(bytes.NewReader(body))
		signed.ContentLength = int64(len(body))
	}
	sum := sha256.Sum256(body)

	if err := t.signer.SignHTTP(ctx, creds, signed, hex.EncodeToString(sum[:]), signingService, t.region, t.now()); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	return t.next.RoundTrip(signed)
}
