// Package discovery lists the search domains provisioned in Amazon
// OpenSearch Service and their endpoints.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/opensearch"
	"github.com/aws/aws-sdk-go-v2/service/opensearch/types"

	"fedcat/internal/domain"
	"fedcat/internal/domainmap"
)

var _ domain.DiscoveryClient = (*OpenSearchDiscovery)(nil)

// describeBatchSize is the most domain names DescribeDomains accepts per call.
const describeBatchSize = 5

// API is the subset of the OpenSearch Service client used for discovery.
type API interface {
	ListDomainNames(ctx context.Context, in *opensearch.ListDomainNamesInput, optFns ...func(*opensearch.Options)) (*opensearch.ListDomainNamesOutput, error)
	DescribeDomains(ctx context.Context, in *opensearch.DescribeDomainsInput, optFns ...func(*opensearch.Options)) (*opensearch.DescribeDomainsOutput, error)
}

// OpenSearchDiscovery implements domain.DiscoveryClient against Amazon
// OpenSearch Service.
type OpenSearchDiscovery struct {
	api    API
	logger *slog.Logger
}

// New creates a discovery client from an AWS configuration.
func New(cfg aws.Config, logger *slog.Logger) *OpenSearchDiscovery {
	return NewWithAPI(opensearch.NewFromConfig(cfg), logger)
}

// NewWithAPI creates a discovery client over an existing API implementation.
func NewWithAPI(api API, logger *slog.Logger) *OpenSearchDiscovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenSearchDiscovery{api: api, logger: logger}
}

// ListDomainBindings returns every domain that currently exposes an endpoint.
// Domains still being provisioned (no endpoint yet) are skipped.
func (d *OpenSearchDiscovery) ListDomainBindings(ctx context.Context) (map[string]domain.Endpoint, error) {
	listed, err := d.api.ListDomainNames(ctx, &opensearch.ListDomainNamesInput{})
	if err != nil {
		return nil, fmt.Errorf("list domain names: %w", err)
	}

	names := make([]string, 0, len(listed.DomainNames))
	for _, info := range listed.DomainNames {
		if info.DomainName != nil {
			names = append(names, *info.DomainName)
		}
	}

	bindings := make(map[string]domain.Endpoint, len(names))
	for start := 0; start < len(names); start += describeBatchSize {
		end := start + describeBatchSize
		if end > len(names) {
			end = len(names)
		}
		out, err := d.api.DescribeDomains(ctx, &opensearch.DescribeDomainsInput{DomainNames: names[start:end]})
		if err != nil {
			return nil, fmt.Errorf("describe domains: %w", err)
		}
		for _, status := range out.DomainStatusList {
			name := aws.ToString(status.DomainName)
			host := endpointHost(status)
			if name == "" || host == "" {
				d.logger.Debug("skipping domain without endpoint", "domain", name)
				continue
			}
			ep, err := domainmap.ParseEndpoint("https://" + host)
			if err != nil {
				d.logger.Warn("skipping domain with invalid endpoint", "domain", name, "error", err)
				continue
			}
			bindings[name] = ep
		}
	}
	return bindings, nil
}

// endpointHost prefers the public endpoint and falls back to the VPC one.
func endpointHost(status types.DomainStatus) string {
	if host := aws.ToString(status.Endpoint); host != "" {
		return host
	}
	return status.Endpoints["vpc"]
}
