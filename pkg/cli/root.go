// Package cli implements the connector command line: the serve command and
// one-shot calls against the configured source.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fedcat/internal/api"
	"fedcat/internal/config"
	"fedcat/internal/connector"
)

var (
	version = "dev"
	commit  = "none"
)

// buildFunc constructs the handler for a configuration.
type buildFunc func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (connector.Handler, error)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	envFile    string
	sets       []string
	output     string
	catalog    string

	build buildFunc
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd(connector.Build)
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, errorObject(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func errorObject(err error) map[string]any {
	return map[string]any{"error": err.Error(), "code": api.ErrorCode(err)}
}

func newRootCmd(build buildFunc) *cobra.Command {
	opts := &rootOptions{build: build}

	rootCmd := &cobra.Command{
		Use:           "connector",
		Short:         "Federated metadata connector",
		Long:          "Serves schema, table, partition and split metadata for search domains and Iceberg REST catalogs.",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return validateOutputFormat(opts.output)
		},
	}

	opts.bindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newSchemasCmd(opts))
	rootCmd.AddCommand(newTablesCmd(opts))
	rootCmd.AddCommand(newTableCmd(opts))
	rootCmd.AddCommand(newPartitionsCmd(opts))
	rootCmd.AddCommand(newSplitsCmd(opts))
	rootCmd.AddCommand(newConfigsCmd(opts))

	return rootCmd
}

func (o *rootOptions) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configFile, "config-file", "", "YAML file of configuration options")
	fs.StringVar(&o.envFile, "env-file", ".env", "Dotenv file loaded before the environment is read")
	fs.StringArrayVar(&o.sets, "set", nil, "Override a configuration option (key=value, repeatable)")
	fs.StringVarP(&o.output, "output", "o", "", "Output format (table, json); defaults to table on a terminal")
	fs.StringVar(&o.catalog, "catalog", "default", "Catalog name reported in responses")
}

// loadConfig reads the config file, the dotenv file and environment, and
// --set overrides, in increasing precedence.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	raw := make(map[string]string)
	if o.configFile != "" {
		fileOpts, err := config.ReadOptionsFile(o.configFile)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		raw = fileOpts
	}
	if o.envFile != "" {
		if err := config.LoadDotEnv(o.envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	for k, v := range config.EnvOptions() {
		raw[k] = v
	}
	for _, kv := range o.sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", kv)
		}
		raw[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return config.Load(raw)
}

// handler loads the configuration and builds the handler with a text logger
// on stderr.
func (o *rootOptions) handler(ctx context.Context) (connector.Handler, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, w := range cfg.Warnings {
		logger.Debug("config warning", "warning", w)
	}
	return o.build(ctx, cfg, logger)
}
