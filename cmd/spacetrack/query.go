package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"spacetrack/pkg/logger"
	"spacetrack/pkg/query"
)

var (
	// Query flags
	whereFlags   []string
	fieldsFlag   []string
	orderByFlag  []string
	sortFlag     string
	limitFlag    int
	offsetFlag   int
	formatFlag   string
	metadataFlag bool
	distinctFlag bool
	queryOutput  string
	tableFlag    bool
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <class>",
	Short: "Run one catalog query",
	Long: `Run a single query against a catalog class and print the response.

Predicates are given as FIELD=VALUE and may use the catalog operators:
  >VALUE  <VALUE  <>VALUE  A--B (range)  ~~TEXT (like)  ^TEXT (starts with)
  now-30 (relative days)  null-val`,
	Example: `  spacetrack query gp --where NORAD_CAT_ID=25544 --format 3le
  spacetrack query gp_history --where NORAD_CAT_ID=25544 --where "EPOCH=>now-7" --order-by EPOCH --sort desc --limit 5
  spacetrack query satcat --where "OBJECT_NAME=~~STARLINK" --fields NORAD_CAT_ID,OBJECT_NAME,LAUNCH --table`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringArrayVarP(&whereFlags, "where", "w", nil, "predicate FIELD=VALUE (repeatable)")
	queryCmd.Flags().StringSliceVar(&fieldsFlag, "fields", nil, "columns to return")
	queryCmd.Flags().StringSliceVar(&orderByFlag, "order-by", nil, "columns to order by")
	queryCmd.Flags().StringVar(&sortFlag, "sort", "", "default order direction (asc, desc)")
	queryCmd.Flags().IntVar(&limitFlag, "limit", 0, "maximum number of rows")
	queryCmd.Flags().IntVar(&offsetFlag, "offset", 0, "rows to skip, used with --limit")
	queryCmd.Flags().StringVarP(&formatFlag, "format", "f", string(query.FormatJSON), "response format (json, xml, html, csv, tle, 3le, kvn, stream)")
	queryCmd.Flags().BoolVar(&metadataFlag, "metadata", false, "include the metadata envelope")
	queryCmd.Flags().BoolVar(&distinctFlag, "distinct", false, "drop duplicate rows")
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "write the response to a file instead of stdout")
	queryCmd.Flags().BoolVar(&tableFlag, "table", false, "render json rows as a table")
}

// buildQuery turns the command line into a query builder.
func buildQuery(class string) (*query.Builder, error) {
	q := query.New(strings.ToLower(class)).
		Format(query.Format(strings.ToLower(formatFlag))).
		Metadata(metadataFlag).
		Distinct(distinctFlag)

	for _, w := range whereFlags {
		field, value, ok := strings.Cut(w, "=")
		if !ok || strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("invalid predicate %q, want FIELD=VALUE", w)
		}
		q.Where(strings.TrimSpace(field), value)
	}
	if len(fieldsFlag) > 0 {
		q.Fields(fieldsFlag...)
	}
	if len(orderByFlag) > 0 {
		q.OrderBy(orderByFlag...)
	}
	if sortFlag != "" {
		q.Sort(sortFlag)
	}
	if limitFlag > 0 {
		q.Limit(limitFlag).Offset(offsetFlag)
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	q, err := buildQuery(args[0])
	if err != nil {
		return err
	}
	if tableFlag && query.DecodeKind(q.GetFormat()) != query.KindJSON {
		return fmt.Errorf("--table needs json output, got %s", q.GetFormat())
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.GetLogger()

	s, err := newSession(cfg, log)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signalContext()
	defer stop()

	result, err := s.client.Query(ctx, q)
	if err != nil {
		return err
	}

	if tableFlag {
		rows, err := result.Records()
		if err != nil {
			return err
		}
		fmt.Print(renderRecords(rows, fieldsFlag))
		return nil
	}

	if queryOutput != "" {
		if err := os.WriteFile(queryOutput, result.Raw, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", queryOutput, err)
		}
		if !quiet {
			fmt.Fprintf(os.Stderr, "Saved %d bytes to %s\n", len(result.Raw), queryOutput)
		}
		return nil
	}

	_, err = os.Stdout.Write(result.Raw)
	return err
}
