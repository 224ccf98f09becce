package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/TradeLens/config"
	"github.com/dyike/TradeLens/internal/chart"
	"github.com/dyike/TradeLens/internal/logger"
)

// Version is set at build time.
var Version = "v1.0.0"

// rootOptions carries the loaded configuration to every subcommand.
type rootOptions struct {
	configPath string
	debug      bool

	mgr *config.Manager
	cfg config.Config
	log *logger.Logger
}

func (o *rootOptions) load() error {
	bootLevel := "warn"
	if o.debug {
		bootLevel = "debug"
	}
	mopts := []config.ManagerOption{
		config.WithInitialConfig(config.DefaultConfig()),
		config.WithLogger(logger.New(bootLevel)),
	}
	if o.configPath != "" {
		mopts = append(mopts, config.WithConfigPath(o.configPath))
	}
	mgr, err := config.NewManager(mopts...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg := mgr.Get()
	cfg.ApplyEnv()
	if o.debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	o.mgr = mgr
	o.cfg = cfg
	o.log = logger.New(cfg.LogLevel)
	return nil
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "tradelens",
		Short: "TradeLens - trade pattern analysis",
		Long: `TradeLens uploads your trade history to the analysis service and shows
the trade patterns, clusters and personalized advice it finds.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveMode(cmd.Context(), opts)
		},
	}

	rootCmd.AddCommand(newAnalyzeCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file path")

	return rootCmd
}

type analyzeFlags struct {
	username string
	allRows  bool
	charts   bool
	save     bool
	asJSON   bool
}

// newAnalyzeCmd creates the analyze command
func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	flags := analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Upload a trade history file and analyze it",
		Long: `Log in, upload a trade history file and run the analysis.
The password is read from TRADELENS_PASSWORD or prompted for.
Example: tradelens analyze trades.csv --username alice --charts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyzeCommand(cmd.Context(), opts, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.username, "username", "u", os.Getenv("TRADELENS_USERNAME"), "Account username")
	cmd.Flags().BoolVar(&flags.allRows, "all-rows", false, "Show every trade instead of the preview")
	cmd.Flags().BoolVar(&flags.charts, "charts", false, "Save charts as PNG files")
	cmd.Flags().BoolVar(&flags.save, "save", false, "Save the result and a markdown report")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Print the raw result as JSON")

	return cmd
}

// runAnalyzeCommand executes the whole workflow once
func runAnalyzeCommand(ctx context.Context, opts *rootOptions, path string, flags analyzeFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a := newApp(opts.cfg, opts.log)
	defer a.close()

	username := strings.TrimSpace(flags.username)
	password := os.Getenv("TRADELENS_PASSWORD")
	var err error
	switch {
	case username == "":
		username, password, err = PromptForCredentials("")
	case password == "":
		password, err = PromptForPassword(username)
	}
	if err != nil {
		return err
	}

	if _, err := a.ctrl.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	DisplaySuccess(fmt.Sprintf("Logged in as %s", username))

	if err := a.ctrl.SelectPath(path); err != nil {
		return err
	}
	status, err := a.ctrl.Upload(ctx)
	fmt.Println(RenderUploadStatus(status))
	if err != nil {
		return err
	}

	line := newProgressLine(os.Stdout)
	a.ctrl.ObserveProgress(line.update)
	DisplayInfo("Analyzing trades...")
	result, err := runAnalysis(ctx, a, line)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if flags.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	p := a.ctrl.Presenter()
	p.SetExpanded(flags.allRows)
	DisplayResult(p)

	if flags.save {
		s, err := a.results.Save(result)
		if err != nil {
			return err
		}
		DisplaySuccess(fmt.Sprintf("Saved result %s to %s", s.ID, s.Dir))
	}
	if flags.charts {
		return saveCharts(a)
	}
	return nil
}

func saveCharts(a *app) error {
	paths, err := chart.RenderAll(a.ctrl.Presenter().Projection(), a.cfg.ChartsDir)
	for _, p := range paths {
		DisplaySuccess("Chart saved: " + p)
	}
	if err != nil {
		return fmt.Errorf("failed to save charts: %w", err)
	}
	if len(paths) == 0 {
		DisplayInfo("No charts had enough data to render")
	}
	return nil
}

// newHistoryCmd creates the history command
func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var oldestFirst bool
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List saved results",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(opts.cfg, opts.log)
			defer a.close()
			runs, err := a.results.List(oldestFirst)
			if err != nil {
				return err
			}
			fmt.Println(RenderHistory(runs, opts.cfg.Currency))
			return nil
		},
	}
	historyCmd.Flags().BoolVar(&oldestFirst, "oldest-first", false, "Sort oldest results first")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show a saved result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(opts.cfg, opts.log)
			defer a.close()
			result, err := a.results.Load(args[0])
			if err != nil {
				return err
			}
			a.ctrl.Presenter().SetResult(result)
			DisplayResult(a.ctrl.Presenter())
			return nil
		},
	})

	historyCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(opts.cfg, opts.log)
			defer a.close()
			if err := a.results.Delete(args[0]); err != nil {
				return err
			}
			DisplaySuccess("Deleted " + args[0])
			return nil
		},
	})

	var maxAge time.Duration
	var keep int
	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove old saved results",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(opts.cfg, opts.log)
			defer a.close()
			removed, err := a.results.Cleanup(maxAge, keep)
			if err != nil {
				return err
			}
			DisplaySuccess(fmt.Sprintf("Removed %d saved results", removed))
			return nil
		},
	}
	cleanCmd.Flags().DurationVar(&maxAge, "max-age", 0, "Remove results older than this (e.g. 720h)")
	cleanCmd.Flags().IntVar(&keep, "keep", 0, "Keep at most this many of the newest results")
	historyCmd.AddCommand(cleanCmd)

	return historyCmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("TradeLens %s\n", Version)
			fmt.Println("Trade pattern analysis client")
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Manage TradeLens configuration settings",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(opts.cfg, opts.mgr.Path())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(opts.cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(opts.mgr.Path())
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: `Set a configuration value by its dotted JSON key. The value is parsed as
JSON and falls back to a plain string.

Examples:
  tradelens config set preview_rows 10
  tradelens config set progress.tick_ms 250
  tradelens config set cluster_labels.2 "Swing"`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			if opts.mgr == nil {
				if err := opts.load(); err != nil {
					return nil, cobra.ShellCompDirectiveError
				}
			}
			return opts.mgr.Keys(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.mgr.Set(args[0], args[1]); err != nil {
				return err
			}
			DisplaySuccess(fmt.Sprintf("%s updated", args[0]))
			return nil
		},
	})

	return configCmd
}

// showConfig displays the current configuration
func showConfig(cfg config.Config, path string) {
	fmt.Println("📋 Current TradeLens Configuration:")
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("Config File:          %s\n", path)
	fmt.Printf("Project Directory:    %s\n", cfg.ProjectDir)
	fmt.Printf("Results Directory:    %s\n", cfg.ResultsDir)
	fmt.Printf("Charts Directory:     %s\n", cfg.ChartsDir)
	fmt.Println()
	fmt.Printf("Service URL:          %s\n", cfg.BaseURL)
	fmt.Printf("Endpoints:            login %s, upload %s, analyze %s\n",
		cfg.Endpoints.Login, cfg.Endpoints.Upload, cfg.Endpoints.Analyze)
	fmt.Printf("Login Timeout:        %ds\n", cfg.LoginTimeoutSec)
	fmt.Printf("Upload Timeout:       %ds\n", cfg.UploadTimeoutSec)
	fmt.Printf("Analyze Timeout:      %ds\n", cfg.AnalyzeTimeoutSec)
	fmt.Printf("Requests / Second:    %g\n", cfg.RequestsPerSecond)
	fmt.Printf("Allowed Files:        %s\n", strings.Join(cfg.AllowedExtensions, ", "))
	fmt.Println()
	fmt.Printf("Preview Rows:         %d\n", cfg.PreviewRows)
	fmt.Printf("Currency:             %s\n", cfg.Currency)
	for key, label := range cfg.ClusterLabels {
		fmt.Printf("Cluster %-13s %s\n", key+":", label)
	}
	fmt.Println()
	fmt.Printf("Progress Tick:        %s\n", cfg.Progress.Tick())
	fmt.Printf("Progress Ceiling:     %d%%\n", cfg.Progress.Ceiling)
	for _, b := range cfg.Progress.Bands {
		fmt.Printf("  %3d%%  %-11s %s\n", b.From, b.Stage, b.Caption)
	}
	fmt.Println()
	fmt.Printf("Log Level:            %s\n", cfg.LogLevel)
	fmt.Printf("Debug Mode:           %t\n", cfg.Debug)
}

// validateConfig validates the configuration
func validateConfig(cfg config.Config) error {
	fmt.Println("🔍 Validating TradeLens Configuration...")
	fmt.Println("═══════════════════════════════════════")

	fmt.Print("📁 Checking directories... ")
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Println("❌")
		return fmt.Errorf("directory validation failed: %w", err)
	}
	fmt.Println("✅")

	fmt.Print("⚙️  Checking configuration values... ")
	if err := cfg.Validate(); err != nil {
		fmt.Println("❌")
		return err
	}
	fmt.Println("✅")

	fmt.Println()
	fmt.Println("✅ Configuration validation completed successfully!")
	fmt.Println()
	fmt.Println("💡 Tips:")
	fmt.Println("  • Set TRADELENS_BASE_URL to point at your analysis service")
	fmt.Println("  • Set TRADELENS_USERNAME and TRADELENS_PASSWORD for non-interactive runs")
	fmt.Println("  • Use 'tradelens analyze trades.csv' to start your first analysis")
	return nil
}
