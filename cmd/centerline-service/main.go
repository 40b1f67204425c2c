package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	centerline "github.com/surveyline/centerline-service"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "centerline-service",
	Short: "Convert KML/KMZ route exports to DeLorme-style CSV/TXT files",
	Long: `centerline-service extracts coordinates from KML and KMZ documents and
writes them back out as CSV, TXT, and GeoJSON artifacts, with optional
duplicate filtering and S3 upload. Run "serve" to expose the converter
over HTTP, or "convert" to process files directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the logger. Every subcommand
// that touches the converter starts here.
func setup() (*centerline.Config, error) {
	cfg, err := centerline.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	centerline.SetupLogging(level, cfg.Log.Format)
	return cfg, nil
}

// openDatabase connects when a database is configured. Conversion works
// without one, so a connection failure only disables job tracking.
func openDatabase(ctx context.Context, cfg *centerline.Config) *centerline.Database {
	if !cfg.Database.Enabled {
		return nil
	}
	db, err := centerline.NewDatabase(cfg.Database)
	if err != nil {
		slog.Warn("failed to connect to database (continuing without job tracking)", "error", err)
		return nil
	}
	if err := db.InitSchema(ctx); err != nil {
		slog.Warn("failed to initialize database schema (continuing without job tracking)", "error", err)
		db.Close()
		return nil
	}
	return db
}

var (
	convertPreset   string
	convertMode     string
	convertProfile  string
	convertFormats  []string
	convertBaseName string
	convertOutDir   string
	convertCollapse bool
	convertTrim     bool
	convertDedup    bool
	convertPerSeg   bool
	convertBundle   bool
	convertUpload   bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [file...]",
	Short: "Convert one or more KML/KMZ files",
	Long: `Converts each input file and writes the resulting artifacts into the
output directory. Options start from a preset; explicit flags override
individual preset members.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVar(&convertPreset, "preset", "", "variant preset (see the presets command)")
	f.StringVar(&convertMode, "mode", "", "geometry selection mode (any, linestring, placemark-point)")
	f.StringVar(&convertProfile, "profile", "", "export profile (minimal, extended, segmented)")
	f.StringSliceVar(&convertFormats, "format", nil, "output formats (csv, txt, geojson)")
	f.StringVar(&convertBaseName, "basename", "", "base name for output files")
	f.StringVarP(&convertOutDir, "out-dir", "o", ".", "directory for output files")
	f.BoolVar(&convertCollapse, "collapse", false, "collapse runs of consecutive duplicate coordinates")
	f.BoolVar(&convertTrim, "trim-closure", false, "drop a final coordinate that closes the loop")
	f.BoolVar(&convertDedup, "global-dedup", false, "drop repeated coordinates document-wide")
	f.BoolVar(&convertPerSeg, "per-segment", false, "keep one output segment per geometry element")
	f.BoolVar(&convertBundle, "bundle", false, "also write a zip bundle of all outputs")
	f.BoolVar(&convertUpload, "upload", false, "upload artifacts to object storage")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	opts, err := resolveOptions(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := openDatabase(ctx, cfg)
	if db != nil {
		defer db.Close()
	}

	var s3Client *centerline.S3Client
	if opts.Upload {
		if !cfg.S3.Enabled {
			return fmt.Errorf("upload requested but s3 is not configured")
		}
		s3Client, err = centerline.NewS3Client(cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize s3 client: %w", err)
		}
	}

	converter := centerline.NewConverter(db, s3Client)

	if err := os.MkdirAll(convertOutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, file := range args {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		result, err := converter.Convert(ctx, centerline.ConvertRequest{
			Filename: filepath.Base(file),
			Data:     data,
			Options:  opts,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}

		for _, w := range result.Warnings {
			slog.Warn("coordinate filter warning", "file", file, "segment", w.Segment, "message", w.Message)
		}

		for _, a := range result.Artifacts {
			outPath := filepath.Join(convertOutDir, a.Name)
			if err := os.WriteFile(outPath, a.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			cmd.Printf("wrote %s (%d bytes)\n", outPath, len(a.Data))
		}

		for _, up := range result.Uploads {
			cmd.Printf("uploaded %s\n", up.Location)
		}

		slog.Info("conversion completed",
			"file", file,
			"segments", result.Stats.Segments,
			"coordinates", result.Stats.Coordinates,
			"artifacts", len(result.Artifacts),
		)
	}
	return nil
}

// resolveOptions builds the variant options for a convert run: the preset
// (or the configured default) supplies the base, flags the user actually
// set override individual members.
func resolveOptions(cmd *cobra.Command, cfg *centerline.Config) (centerline.VariantOptions, error) {
	name := convertPreset
	if name == "" {
		name = cfg.Convert.DefaultPreset
	}
	preset, ok := centerline.PresetByName(name)
	if !ok {
		return centerline.VariantOptions{}, fmt.Errorf("unknown preset %q", name)
	}
	opts := preset.Options

	if convertMode != "" {
		mode, err := centerline.ParseSelectionMode(convertMode)
		if err != nil {
			return centerline.VariantOptions{}, err
		}
		opts.Mode = mode
	}
	if convertProfile != "" {
		profile, err := centerline.ParseExportProfile(convertProfile)
		if err != nil {
			return centerline.VariantOptions{}, err
		}
		opts.Profile = profile
	}
	if len(convertFormats) > 0 {
		formats, err := centerline.ParseOutputFormats(strings.Join(convertFormats, ","))
		if err != nil {
			return centerline.VariantOptions{}, err
		}
		opts.Formats = formats
	}
	if convertBaseName != "" {
		opts.BaseName = convertBaseName
	}

	flags := cmd.Flags()
	if flags.Changed("collapse") {
		opts.Normalize.CollapseRuns = convertCollapse
	}
	if flags.Changed("trim-closure") {
		opts.Normalize.TrimClosure = convertTrim
	}
	if flags.Changed("global-dedup") {
		opts.Normalize.GlobalDedup = convertDedup
	}
	if flags.Changed("per-segment") {
		opts.Normalize.PerNodeSegments = convertPerSeg
	}
	if flags.Changed("bundle") {
		opts.Bundle = convertBundle
	}
	if flags.Changed("upload") {
		opts.Upload = convertUpload
	}
	return opts, nil
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP conversion service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	ctx := context.Background()
	db := openDatabase(ctx, cfg)
	if db != nil {
		defer db.Close()
	}

	var s3Client *centerline.S3Client
	if cfg.S3.Enabled {
		s3Client, err = centerline.NewS3Client(cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize s3 client: %w", err)
		}
	}

	converter := centerline.NewConverter(db, s3Client)
	server := centerline.NewServer(converter, cfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Listen(fmt.Sprintf(":%d", port)); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigChan:
		slog.Info("received shutdown signal, stopping server", "signal", sig)
		if err := server.Shutdown(); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}
	return nil
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the built-in conversion presets",
	Run: func(cmd *cobra.Command, _ []string) {
		for _, p := range centerline.Presets() {
			cmd.Printf("%s\n", p.Name)
			cmd.Printf("    %s\n", p.Description)
			n := p.Options.Normalize
			cmd.Printf("    mode=%s profile=%s collapse=%t trim_closure=%t global_dedup=%t per_segment=%t\n",
				p.Options.Mode, p.Options.Profile, n.CollapseRuns, n.TrimClosure, n.GlobalDedup, n.PerNodeSegments)
			cmd.Printf("    basename=%q\n", p.Options.BaseName)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("%s version %s\n", centerline.ServiceName, centerline.Version)
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(versionCmd)
}
