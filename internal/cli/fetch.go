package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sort"

	"github.com/fvbommel/sortorder"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	gridsource "github.com/hugr-lab/gridsource-go"
	"github.com/hugr-lab/gridsource-go/catalog"
)

// ErrRequestFailed is returned when the data source fails the request.
// The reason is logged by the data source.
var ErrRequestFailed = errors.New("row request failed")

// FetchOptions selects the request run by the fetch command.
type FetchOptions struct {
	Source string
	Start  int
	End    int
	Sort   string
	Filter string
}

func fetchCmd(opts *rootOptions) *cobra.Command {
	var fo FetchOptions
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one get-rows request against a source and print the page",
		Example: `  gridsource fetch -c gridsource.yaml --source people --start 0 --end 20 --sort name:desc
  gridsource fetch -c gridsource.yaml --source people --filter '{"name":{"filterType":"text","type":"contains","filter":"an"}}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			return Fetch(cmd.Context(), cfg, logger, fo, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&fo.Source, "source", "", "Source name")
	cmd.Flags().IntVar(&fo.Start, "start", 0, "First row index")
	cmd.Flags().IntVar(&fo.End, "end", 20, "Row index after the last row")
	cmd.Flags().StringVar(&fo.Sort, "sort", "", "Sort model, e.g. name:desc,id")
	cmd.Flags().StringVar(&fo.Filter, "filter", "", "Filter model as JSON")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

// Fetch runs one request through the source's data source and renders the
// page as a table on out.
func Fetch(ctx context.Context, cfg *Config, logger *slog.Logger, fo FetchOptions, out io.Writer) error {
	sortModel, err := gridsource.ParseSortModel(fo.Sort)
	if err != nil {
		return err
	}
	var filterModel json.RawMessage
	if fo.Filter != "" {
		if !json.Valid([]byte(fo.Filter)) {
			return fmt.Errorf("filter must be valid JSON")
		}
		filterModel = json.RawMessage(fo.Filter)
	}

	sc := cfg.Source(fo.Source)
	if sc == nil {
		return fmt.Errorf("unknown source %q", fo.Source)
	}
	// Only the requested source is opened.
	single := *cfg
	single.Sources = []SourceConfig{*sc}

	cat, err := BuildCatalog(ctx, &single, logger)
	if err != nil {
		return err
	}
	defer catalog.Destroy(context.Background(), cat, logger)

	src, err := cat.Source(ctx, fo.Source)
	if err != nil {
		return err
	}

	req, done := gridsource.NewAwaitRequest(gridsource.NewGetRowsParams(fo.Start, fo.End, sortModel, filterModel))
	src.DataSource().GetRows(ctx, req)
	res, err := gridsource.Await(ctx, done)
	if err != nil {
		return err
	}
	if !res.OK {
		return ErrRequestFailed
	}

	var rows []map[string]any
	if err := json.Unmarshal(res.Payload.RowData, &rows); err != nil {
		return fmt.Errorf("failed to decode rows: %w", err)
	}

	columns := columnOrder(sc, rows)
	data := pterm.TableData{columns}
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, c := range columns {
			line[i] = cell(row[c])
		}
		data = append(data, line)
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, table)

	lastRow := "unknown"
	if res.Payload.LastRow != nil {
		lastRow = fmt.Sprint(*res.Payload.LastRow)
	}
	fmt.Fprintf(out, "rows %d-%d of %s\n", fo.Start, fo.Start+len(rows), lastRow)
	return nil
}

// columnOrder uses the declared schema when there is one, otherwise every
// key found in the page in natural order.
func columnOrder(sc *SourceConfig, rows []map[string]any) []string {
	if len(sc.Schema) > 0 {
		columns := make([]string, len(sc.Schema))
		for i, c := range sc.Schema {
			columns[i] = c.Name
		}
		return columns
	}

	keys := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			keys[k] = struct{}{}
		}
	}
	columns := slices.Collect(maps.Keys(keys))
	sort.Sort(sortorder.Natural(columns))
	return columns
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
