// Package main provides the entry point for the SupplyChainLens risk engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dogwifhat6/supplychain-lens/internal/app"
	"github.com/dogwifhat6/supplychain-lens/internal/application"
	"github.com/dogwifhat6/supplychain-lens/internal/config"
	"github.com/dogwifhat6/supplychain-lens/internal/domain"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lens",
	Short: "SupplyChainLens - satellite imagery ESG risk engine",
	Long: `SupplyChainLens detects deforestation and mining activity in satellite
imagery and scores supplier ESG risk against a geospatial reference dataset.

Features:
  - Image and batch processing with pluggable detection models
  - Protected area, country and risk zone analysis
  - Supplier risk assessment with historical context
  - Risk maps and distance queries
  - Multiple storage backends (local, AWS S3, Azure, HTTP)
  - Hot-reload of the reference dataset
  - TLS with automatic certificate management
  - Prometheus metrics and OpenTelemetry tracing`,
	SilenceUsage: true,
	RunE:         runServer,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServer,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one location against the reference dataset",
	RunE:  runAnalyze,
}

var riskMapCmd = &cobra.Command{
	Use:   "riskmap",
	Short: "Print a sampled risk grid for a bounding box",
	RunE:  runRiskMap,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "SupplyChainLens %s\n", version)
		fmt.Fprintf(out, "  Commit:     %s\n", commit)
		fmt.Fprintf(out, "  Build Date: %s\n", buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "auto", "log format (json, text, auto)")
	pf.String("storage-type", "local", "storage type (local, s3, azure, http)")
	pf.String("storage-path", "./data", "local storage path")
	pf.String("reference", "", "reference dataset key in storage (default: built-in)")

	// Server flags
	sf := serveCmd.Flags()
	sf.String("host", "0.0.0.0", "server host")
	sf.Int("port", 8000, "server port")
	sf.String("db-driver", "sqlite3", "database driver (postgres, sqlite3)")
	sf.String("db-dsn", "", "database connection string")
	sf.String("cache", "none", "analysis cache (redis, badger, none)")
	sf.Bool("tls", false, "enable TLS")
	sf.StringSlice("tls-domains", nil, "TLS domains")
	sf.String("tls-email", "", "TLS email for Let's Encrypt")
	sf.StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")
	rootCmd.Flags().AddFlagSet(sf)

	analyzeCmd.Flags().Float64("lat", 0, "latitude")
	analyzeCmd.Flags().Float64("lng", 0, "longitude")
	_ = analyzeCmd.MarkFlagRequired("lat")
	_ = analyzeCmd.MarkFlagRequired("lng")

	rf := riskMapCmd.Flags()
	rf.String("risk-type", string(domain.RiskTypeDeforestation), "risk type (deforestation, mining)")
	rf.Float64("min-lat", 0, "southern edge")
	rf.Float64("min-lng", 0, "western edge")
	rf.Float64("max-lat", 0, "northern edge")
	rf.Float64("max-lng", 0, "eastern edge")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("storage.type", pf.Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local_path", pf.Lookup("storage-path"))
	_ = viper.BindPFlag("reference.dataset", pf.Lookup("reference"))
	_ = viper.BindPFlag("server.host", sf.Lookup("host"))
	_ = viper.BindPFlag("server.port", sf.Lookup("port"))
	_ = viper.BindPFlag("database.driver", sf.Lookup("db-driver"))
	_ = viper.BindPFlag("database.dsn", sf.Lookup("db-dsn"))
	_ = viper.BindPFlag("cache.type", sf.Lookup("cache"))
	_ = viper.BindPFlag("tls.enabled", sf.Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", sf.Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", sf.Lookup("tls-email"))
	_ = viper.BindPFlag("server.cors.allowed_origins", sf.Lookup("cors"))

	rootCmd.AddCommand(serveCmd, analyzeCmd, riskMapCmd, versionCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting SupplyChainLens",
		"version", version,
		"address", cfg.Server.Address(),
		"storage_type", cfg.Storage.Type,
		"database", cfg.Database.Driver,
		"cache", cfg.Cache.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger, version)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	lat, _ := cmd.Flags().GetFloat64("lat")
	lng, _ := cmd.Flags().GetFloat64("lng")

	c := domain.NewCoordinate(lat, lng)
	if err := c.Validate(); err != nil {
		return err
	}

	engine, err := offlineEngine(cmd)
	if err != nil {
		return err
	}

	analysis := engine.AnalyzeLocation(cmd.Context(), c, domain.BoundingArea{})
	return printJSON(cmd.OutOrStdout(), analysis)
}

func runRiskMap(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	riskType, _ := flags.GetString("risk-type")

	var bounds domain.BoundingArea
	if flags.Changed("min-lat") || flags.Changed("min-lng") || flags.Changed("max-lat") || flags.Changed("max-lng") {
		box := domain.Extent{}
		box.MinLat, _ = flags.GetFloat64("min-lat")
		box.MinLng, _ = flags.GetFloat64("min-lng")
		box.MaxLat, _ = flags.GetFloat64("max-lat")
		box.MaxLng, _ = flags.GetFloat64("max-lng")
		bounds.Box = &box
	}
	if err := bounds.Validate(); err != nil {
		return err
	}

	engine, err := offlineEngine(cmd)
	if err != nil {
		return err
	}

	riskMap, err := engine.RiskMap(cmd.Context(), bounds, domain.RiskType(riskType))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), riskMap)
}

// offlineEngine loads configuration and the reference dataset without
// starting any servers. Logs go to stderr so stdout stays machine-readable.
func offlineEngine(cmd *cobra.Command) (*application.GeospatialEngine, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())

	return app.NewEngine(cmd.Context(), cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
