package connector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"fedcat/internal/clientcache"
	"fedcat/internal/config"
	"fedcat/internal/discovery"
	"fedcat/internal/domain"
	"fedcat/internal/domainmap"
	"fedcat/internal/iceberg"
	"fedcat/internal/registry"
	"fedcat/internal/search"
	"fedcat/internal/spill"
	"fedcat/internal/splits"
)

// Build constructs the handler selected by cfg.SourceType. Configuration
// problems surface here rather than on the first call.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Handler, error) {
	switch cfg.SourceType {
	case config.SourceIceberg:
		h, err := buildIceberg(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return h, nil
	case config.SourceElasticsearch:
		h, err := buildSearch(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, domain.ErrConfiguration(config.KeySourceType, "unknown source type %q", cfg.SourceType)
	}
}

// LoadAWSConfig loads the default AWS configuration, pinned to the
// configured region and static credentials when they are set.
func LoadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.AWSSessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}

func buildSearch(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*SearchHandler, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := domainmap.Options{Mapping: cfg.DomainMapping}
	if cfg.AutoDiscoverEndpoint {
		opts.Discovery = discovery.New(awsCfg, logger)
	}
	resolver, err := domainmap.New(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("build domain resolver: %w", err)
	}
	if cfg.AutoDiscoverEndpoint && cfg.DomainRefreshSchedule != "" {
		if err := resolver.StartRefresher(ctx, cfg.DomainRefreshSchedule); err != nil {
			return nil, domain.ErrConfiguration(config.KeyDomainRefreshSchedule, "%v", err)
		}
	}

	clientOpts := search.Options{SigV4: cfg.SigV4Signing}
	if cfg.SigV4Signing {
		clientOpts.Credentials = awsCfg.Credentials
		clientOpts.Region = awsCfg.Region
	}
	clients := clientcache.New[domain.Endpoint, domain.SourceClient](func(ep domain.Endpoint) (domain.SourceClient, error) {
		return search.NewClient(ep, clientOpts)
	})

	var reg domain.RegistryClient
	if !cfg.DisableGlue {
		reg = registry.NewGlueRegistry(awsCfg, cfg.GlueCatalogID)
	}

	root, err := spill.ParseRoot(cfg.Spill.Bucket, cfg.Spill.Prefix)
	if err != nil {
		return nil, domain.ErrConfiguration(config.KeySpillBucket, "%v", err)
	}

	logger.Info("search connector configured",
		"auto_discover", cfg.AutoDiscoverEndpoint,
		"domains", resolver.Snapshot().Len(),
		"glue", reg != nil,
		"shard_splitting", cfg.ShardSplitting,
	)
	return NewSearchHandler(SearchDeps{
		Resolver: resolver,
		Clients:  clients,
		Registry: reg,
		Spill:    spill.NewLocationFactory(root),
		Keys:     KeyFactory(cfg, awsCfg),
		Splits: splits.Options{
			ShardSplitting:   cfg.ShardSplitting,
			MaxSplitsPerCall: cfg.MaxSplitsPerCall,
			QueryTimeout:     cfg.QueryTimeoutCluster,
		},
		Configs: config.RedactMap(cfg.Options),
	}, logger), nil
}

// KeyFactory selects the spill key source: none when encryption is
// disabled, KMS data keys when a key id is set, local keys otherwise.
func KeyFactory(cfg *config.Config, awsCfg aws.Config) domain.KeyFactory {
	switch {
	case cfg.Spill.DisableEncryption:
		return nil
	case cfg.Spill.KMSKeyID != "":
		return spill.NewKMSKeyFactory(awsCfg, cfg.Spill.KMSKeyID)
	default:
		return spill.NewLocalKeyFactory()
	}
}

func buildIceberg(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*IcebergHandler, error) {
	client, err := iceberg.NewClient(ctx, iceberg.Config{
		URI:        cfg.Iceberg.URI,
		Warehouse:  cfg.Iceberg.Warehouse,
		Credential: cfg.Iceberg.Credential,
		Headers:    cfg.Iceberg.Headers,
	}, logger)
	if err != nil {
		return nil, err
	}
	return NewIcebergHandler(client, IcebergConfigs(cfg.Iceberg), logger), nil
}

// IcebergConfigs renders the catalog properties reported by
// GetDataSourceConfigs, with secrets redacted.
func IcebergConfigs(ic config.IcebergConfig) map[string]string {
	configs := map[string]string{
		"uri":        ic.URI,
		"warehouse":  ic.Warehouse,
		"credential": ic.Credential,
	}
	for k, v := range ic.Headers {
		configs["header."+strings.TrimPrefix(k, "header.")] = v
	}
	return config.RedactMap(configs)
}
