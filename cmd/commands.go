package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SamuelRCrider/csp-risk/core"
	"github.com/SamuelRCrider/csp-risk/mcpserver"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// --- assess ---

var (
	assessConcurrency int
	assessExport      string

	assessCmd = &cobra.Command{
		Use:   "assess [dataset.json...]",
		Short: "Assess raw datasets read from JSON files or stdin",
		Long: `Each file holds {"records": [...], "metadata": {...}}. With no files
or "-" the dataset is read from stdin. Several files are assessed concurrently.`,
		RunE: runAssess,
	}
)

func init() {
	assessCmd.Flags().IntVar(&assessConcurrency, "concurrency", 0, "parallel assessments (default GOMAXPROCS)")
	assessCmd.Flags().StringVar(&assessExport, "export", "", "wrap results as a report export: json, csv or pdf")
}

func runAssess(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"-"}
	}

	inputs := make([]*core.DatasetInput, 0, len(args))
	for _, path := range args {
		input, err := readDataset(cmd, path)
		if err != nil {
			return err
		}
		inputs = append(inputs, input)
	}

	engine, err := newEngine(newLogger())
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.AssessBatch(cmd.Context(), inputs, assessConcurrency)
	if err != nil {
		return err
	}

	if assessExport == "" {
		if len(results) == 1 {
			return printJSON(cmd, results[0])
		}
		return printJSON(cmd, results)
	}

	exports := make([]*core.RiskReportExport, 0, len(results))
	for _, result := range results {
		export, err := engine.ExportRiskReport(result.ID, assessExport)
		if err != nil {
			return err
		}
		exports = append(exports, export)
	}
	if len(exports) == 1 {
		return printJSON(cmd, exports[0])
	}
	return printJSON(cmd, exports)
}

func readDataset(cmd *cobra.Command, path string) (*core.DatasetInput, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}

	var input core.DatasetInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	return &input, nil
}

// --- geo / transfer ---

var (
	transferFrom      string
	transferTo        []string
	transferFramework string

	geoCmd = &cobra.Command{
		Use:   "geo JURISDICTION...",
		Short: "Score the geographic risk of a set of jurisdictions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(newLogger())
			if err != nil {
				return err
			}
			defer engine.Close()
			return printJSON(cmd, engine.AssessGeographicRisk(args))
		},
	}

	transferCmd = &cobra.Command{
		Use:   "transfer --from DE --to US,CN",
		Short: "Score a cross-border data transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			framework, err := core.ParseFramework(transferFramework)
			if err != nil {
				return err
			}
			engine, err := newEngine(newLogger())
			if err != nil {
				return err
			}
			defer engine.Close()

			assessment, err := engine.AssessTransferRisk(transferFrom, transferTo, framework)
			if err != nil {
				return err
			}
			return printJSON(cmd, assessment)
		},
	}
)

func init() {
	transferCmd.Flags().StringVar(&transferFrom, "from", "", "source jurisdiction")
	transferCmd.Flags().StringSliceVar(&transferTo, "to", nil, "destination jurisdictions")
	transferCmd.Flags().StringVar(&transferFramework, "framework", "GDPR", "framework whose transfer rules apply")
	_ = transferCmd.MarkFlagRequired("from")
	_ = transferCmd.MarkFlagRequired("to")
}

// --- classify ---

var (
	classifyRecords int

	classifyCmd = &cobra.Command{
		Use:   "classify FIELD...",
		Short: "Classify data sensitivity from field names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(newLogger())
			if err != nil {
				return err
			}
			defer engine.Close()
			return printJSON(cmd, engine.ClassifyDataSensitivity(args, classifyRecords))
		},
	}
)

func init() {
	classifyCmd.Flags().IntVar(&classifyRecords, "records", 0, "number of records holding the fields")
}

// --- patterns ---

var (
	benchmarkSample     string
	benchmarkIterations int

	patternsCmd = &cobra.Command{
		Use:   "patterns",
		Short: "Inspect and benchmark custom patterns",
	}

	patternsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List custom patterns loaded from the pattern pack",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(newLogger())
			if err != nil {
				return err
			}
			defer engine.Close()
			return printJSON(cmd, engine.ListCustomPatterns())
		},
	}

	patternsBenchmarkCmd = &cobra.Command{
		Use:   "benchmark",
		Short: "Time every custom pattern against a sample text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if benchmarkIterations < 1 {
				return fmt.Errorf("iterations must be at least 1")
			}
			engine, err := newEngine(newLogger())
			if err != nil {
				return err
			}
			defer engine.Close()
			return printJSON(cmd, engine.BenchmarkPatterns(benchmarkSample, benchmarkIterations))
		},
	}

	patternsInitCmd = &cobra.Command{
		Use:   "init PATH",
		Short: "Write a starter pattern pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}
			if err := core.SavePatternPack(core.GenerateDefaultPatternPack(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
)

func init() {
	patternsBenchmarkCmd.Flags().StringVar(&benchmarkSample, "sample", "", "text the patterns run against")
	patternsBenchmarkCmd.Flags().IntVar(&benchmarkIterations, "iterations", 100, "executions per pattern")
	_ = patternsBenchmarkCmd.MarkFlagRequired("sample")

	patternsCmd.AddCommand(patternsListCmd, patternsBenchmarkCmd, patternsInitCmd)
}

// --- serve ---

var (
	serveRateLimit   float64
	servePatternPack string
	serveWatch       bool
	serveAuditLevel  string
	serveMetricsAddr string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the assessment tools over MCP on stdio",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", 0, "requests per second per client (negative disables)")
	serveCmd.Flags().StringVar(&servePatternPack, "pattern-pack", "", "pattern pack imported at startup")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "reload the pattern pack when the file changes")
	serveCmd.Flags().StringVar(&serveAuditLevel, "audit-level", "", "request logging: minimal, standard or verbose")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := mcpserver.LoadServerConfig(&mcpserver.ServerConfig{
		RequestsPerSecond: serveRateLimit,
		PatternPackPath:   servePatternPack,
		WatchPatternPack:  serveWatch,
		AuditLevel:        serveAuditLevel,
	})
	if err != nil {
		return err
	}

	engine, err := newEngine(logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv, err := mcpserver.NewServer(engine, cfg, mcpserver.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveMetricsAddr != "" {
		metrics := &http.Server{Addr: serveMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", serveMetricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metrics.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("serving MCP tools on stdio", "name", cfg.Name, "tools", len(srv.ToolNames()))
	return srv.ServeStdio(ctx)
}
