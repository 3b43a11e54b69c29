package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fedcat/internal/api"
	"fedcat/internal/domain"
	"fedcat/internal/middleware"
)

func newSchemasCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List schemas (search domains or Iceberg namespaces)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := middleware.WithRequestID(cmd.Context(), uuid.NewString())
			h, err := opts.handler(ctx)
			if err != nil {
				return err
			}
			resp, err := h.ListSchemas(ctx, domain.ListSchemasRequest{
				QueryID: middleware.RequestIDFromContext(ctx),
				Catalog: opts.catalog,
			})
			if err != nil {
				return err
			}
			out := api.ListSchemasFromDomain(resp)
			return render(cmd, out, func(w io.Writer) error {
				rows := make([][]string, len(out.Schemas))
				for i, s := range out.Schemas {
					rows[i] = []string{s}
				}
				return printTable(w, []string{"schema"}, rows)
			})
		},
	}
}

func newTablesCmd(opts *rootOptions) *cobra.Command {
	var (
		pageSize int
		token    string
	)
	cmd := &cobra.Command{
		Use:   "tables <schema>",
		Short: "List the tables of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := middleware.WithRequestID(cmd.Context(), uuid.NewString())
			h, err := opts.handler(ctx)
			if err != nil {
				return err
			}
			resp, err := h.ListTables(ctx, domain.ListTablesRequest{
				QueryID: middleware.RequestIDFromContext(ctx),
				Catalog: opts.catalog,
				Schema:  args[0],
				Page:    domain.PageRequest{MaxResults: pageSize, PageToken: token},
			})
			if err != nil {
				return err
			}
			out := api.ListTablesFromDomain(resp)
			return render(cmd, out, func(w io.Writer) error {
				rows := make([][]string, len(out.Tables))
				for i, t := range out.Tables {
					rows[i] = []string{t.Schema, t.Table}
				}
				if err := printTable(w, []string{"schema", "table"}, rows); err != nil {
					return err
				}
				if out.NextToken != "" {
					fmt.Fprintf(w, "\nnext page: --token %s\n", out.NextToken)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Maximum tables per page (0 returns all)")
	cmd.Flags().StringVar(&token, "token", "", "Page token from a previous call")
	return cmd
}

func newTableCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "table <schema> <table>",
		Short: "Show the resolved schema of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := middleware.WithRequestID(cmd.Context(), uuid.NewString())
			h, err := opts.handler(ctx)
			if err != nil {
				return err
			}
			resp, err := h.GetTable(ctx, domain.GetTableRequest{
				QueryID: middleware.RequestIDFromContext(ctx),
				Catalog: opts.catalog,
				Table:   domain.TableName{Schema: args[0], Table: args[1]},
			})
			if err != nil {
				return err
			}
			out, err := api.GetTableFromDomain(resp)
			if err != nil {
				return err
			}
			return render(cmd, out, func(w io.Writer) error {
				partition := make(map[string]bool, len(out.PartitionColumns))
				for _, c := range out.PartitionColumns {
					partition[c] = true
				}
				rows := make([][]string, len(out.Fields))
				for i, f := range out.Fields {
					rows[i] = []string{f.Name, f.Type, strconv.FormatBool(f.Nullable), strconv.FormatBool(partition[f.Name])}
				}
				return printTable(w, []string{"name", "type", "nullable", "partition"}, rows)
			})
		},
	}
}

func newPartitionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "partitions <schema> <table>",
		Short: "List the partitions of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := middleware.WithRequestID(cmd.Context(), uuid.NewString())
			h, err := opts.handler(ctx)
			if err != nil {
				return err
			}
			resp, err := h.GetPartitions(ctx, domain.GetPartitionsRequest{
				QueryID: middleware.RequestIDFromContext(ctx),
				Catalog: opts.catalog,
				Table:   domain.TableName{Schema: args[0], Table: args[1]},
			})
			if err != nil {
				return err
			}
			out := api.GetPartitionsFromDomain(resp)
			return render(cmd, out, func(w io.Writer) error {
				rows := make([][]string, len(out.Rows))
				for i, r := range out.Rows {
					row := make([]string, len(out.PartitionColumns))
					for j, c := range out.PartitionColumns {
						row[j] = r[c]
					}
					rows[i] = row
				}
				return printTable(w, out.PartitionColumns, rows)
			})
		},
	}
}

func newSplitsCmd(opts *rootOptions) *cobra.Command {
	var (
		queryID string
		token   string
	)
	cmd := &cobra.Command{
		Use:   "splits <schema> <table>",
		Short: "Plan the splits of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if queryID == "" {
				queryID = uuid.NewString()
			}
			ctx := middleware.WithRequestID(cmd.Context(), queryID)
			h, err := opts.handler(ctx)
			if err != nil {
				return err
			}
			resp, err := h.GetSplits(ctx, domain.GetSplitsRequest{
				QueryID:           queryID,
				Catalog:           opts.catalog,
				Table:             domain.TableName{Schema: args[0], Table: args[1]},
				ContinuationToken: token,
			})
			if err != nil {
				return err
			}
			out := api.GetSplitsFromDomain(resp)
			return render(cmd, out, func(w io.Writer) error {
				rows := make([][]string, len(out.Splits))
				for i, s := range out.Splits {
					rows[i] = []string{
						s.Properties[domain.SplitIndexKey],
						s.Properties[domain.SplitShardKey],
						s.SpillLocation,
						strconv.FormatBool(s.EncryptionKey != nil),
					}
				}
				if err := printTable(w, []string{"index", "shard", "spill_location", "encrypted"}, rows); err != nil {
					return err
				}
				if out.ContinuationToken != "" {
					fmt.Fprintf(w, "\nnext page: --token %s\n", out.ContinuationToken)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&queryID, "query-id", "", "Query id used for spill locations (random when empty)")
	cmd.Flags().StringVar(&token, "token", "", "Continuation token from a previous call")
	return cmd
}

func newConfigsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "configs",
		Short: "Show the effective source configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := middleware.WithRequestID(cmd.Context(), uuid.NewString())
			h, err := opts.handler(ctx)
			if err != nil {
				return err
			}
			resp, err := h.GetDataSourceConfigs(ctx, domain.GetDataSourceConfigsRequest{
				QueryID: middleware.RequestIDFromContext(ctx),
				Catalog: opts.catalog,
			})
			if err != nil {
				return err
			}
			out := api.GetDataSourceConfigsFromDomain(resp)
			return render(cmd, out, func(w io.Writer) error {
				keys := make([]string, 0, len(out.Configs))
				for k := range out.Configs {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				rows := make([][]string, len(keys))
				for i, k := range keys {
					rows[i] = []string{k, out.Configs[k]}
				}
				return printTable(w, []string{"key", "value"}, rows)
			})
		},
	}
}
