package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vgrid/internal/gridcore"
	"vgrid/internal/tablestore"
)

// sentryDSN is injected at build time via -ldflags. Telemetry stays off
// when it is empty or disabled in settings.
var sentryDSN string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vgrid [file.csv | table]",
	Short: "vgrid is a virtualized viewer for huge tables",
	Long: `vgrid displays tables with millions of rows at interactive speed by
fetching only the visible window and mapping the logical row space onto a
bounded scroll surface.

Examples:
  vgrid events.csv
  vgrid --engine sqlite --dsn app.db events
  vgrid --plain huge.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runGrid,
}

var (
	engine     string
	dsn        string
	plain      bool
	bufferRows int
	maxExtent  float64
)

func init() {
	rootCmd.Flags().StringVarP(&engine, "engine", "e", "duckdb", "Backing engine: sqlite, duckdb, mysql, postgres")
	rootCmd.Flags().StringVarP(&dsn, "dsn", "d", "", "Connection string (file path for sqlite/duckdb)")
	rootCmd.Flags().BoolVar(&plain, "plain", false, "Use the plain renderer instead of the full TUI")
	rootCmd.Flags().IntVarP(&bufferRows, "buffer", "b", gridcore.DefaultBufferSize, "Rows fetched beyond the visible range on each side")
	rootCmd.Flags().Float64Var(&maxExtent, "max-extent", gridcore.DefaultMaxExtent, "Physical scroll ceiling of the render surface")
}

func runGrid(cmd *cobra.Command, args []string) error {
	settings, err := LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load settings: %v\n", err)
		settings = &Settings{}
	}
	if !settings.FirstRunComplete {
		settings.FirstRunComplete = true
		if err := SaveSettings(settings); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save settings: %v\n", err)
		}
	}

	if settings.TelemetryEnabled && sentryDSN != "" {
		if err := InitSentry(sentryDSN); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		} else {
			InitBreadcrumbs(100)
			defer FlushAndShutdown()
		}
	}

	dialect, err := tablestore.ParseDialect(engine)
	if err != nil {
		return err
	}

	connString := dsn
	if connString == "" {
		switch dialect {
		case tablestore.SQLite:
			connString = ":memory:"
		case tablestore.DuckDB:
			// empty DSN is an in-memory database
		default:
			return fmt.Errorf("--dsn is required for %s", dialect)
		}
	}

	store, err := tablestore.Open(dialect, connString)
	if err != nil {
		CaptureError(err)
		return err
	}
	defer store.Close()

	ctx := context.Background()
	arg := args[0]

	var tableID string
	var totalRows int

	if strings.HasSuffix(strings.ToLower(arg), ".csv") {
		tableID, totalRows, err = store.ImportCSV(ctx, arg, func(rows int) {
			fmt.Fprintf(os.Stderr, "\rImporting... %d rows", rows)
		})
		if err != nil {
			CaptureError(err)
			return err
		}
		fmt.Fprintf(os.Stderr, "\rImported %d rows        \n", totalRows)
	} else {
		if dsn == "" {
			return fmt.Errorf("viewing an existing table requires --dsn")
		}
		tableID = arg
		totalRows, err = store.AttachTable(ctx, tableID)
		if err != nil {
			CaptureError(err)
			return err
		}
	}

	cfg := gridcore.Config{
		RowHeight:  1, // one terminal line per row
		BufferSize: bufferRows,
		MaxExtent:  maxExtent,
	}

	if plain {
		return runPlainViewer(store, tableID, totalRows, cfg)
	}
	return runViewer(store, tableID, totalRows, cfg)
}
