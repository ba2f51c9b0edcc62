package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/goldpulse/internal/config"
	"github.com/TobiSchelling/goldpulse/internal/curate"
	"github.com/TobiSchelling/goldpulse/internal/database"
	"github.com/TobiSchelling/goldpulse/internal/logging"
	"github.com/TobiSchelling/goldpulse/internal/pipeline"
	"github.com/TobiSchelling/goldpulse/internal/prompts"
	"github.com/TobiSchelling/goldpulse/internal/scheduler"
	"github.com/TobiSchelling/goldpulse/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	envFile    string
	cfg        *config.Config
)

func main() {
	err := rootCmd.Execute()
	logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "goldpulse",
	Short:   "London gold price and tech news digest",
	Long:    "goldpulse polls web search for the London gold price and themed tech news, derives a short forecast, and serves the results over a JSON API.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Configure(logging.Options{Verbose: verbose}); err != nil {
			return err
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		l := cfg.Logging
		return logging.Configure(logging.Options{
			Level:      l.Level,
			File:       l.File,
			MaxSizeMB:  l.MaxSizeMB,
			MaxBackups: l.MaxBackups,
			MaxAgeDays: l.MaxAgeDays,
			Verbose:    verbose,
		})
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file with API keys")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(promptsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("goldpulse", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/goldpulse/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure topics, search providers and schedules.")
		fmt.Println("Put TAVILY_API_KEY in the environment or a .env file to enable the Tavily gateway.")
		return nil
	},
}

var statusDate string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if statusDate != "" {
			return printSnapshot(db, statusDate)
		}

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n", database.FormatDateDisplay(database.GetToday()))
		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Price snapshots:")
		fmt.Printf("  Total: %d\n", stats.PriceSnapshots)
		fmt.Printf("  Fallback: %d\n", stats.FallbackSnapshots)
		if stats.LatestPriceDate != "" {
			fmt.Printf("  Latest: %s\n", database.FormatDateDisplay(stats.LatestPriceDate))
		}
		if snap, err := db.LatestPriceSnapshot(); err == nil && snap != nil {
			fmt.Printf("  Price: %.2f USD/oz", snap.PriceBase)
			if snap.PriceDerived != nil {
				fmt.Printf(" (%.2f %s/g)", *snap.PriceDerived, cfg.Conversion.Currency)
			}
			fmt.Println()
		}
		fmt.Println("\nNews:")
		fmt.Printf("  Stories: %d\n", stats.NewsItems)
		fmt.Printf("  Categories: %d\n", stats.NewsCategories)
		fmt.Println("\nCycles:")
		fmt.Printf("  Total: %d\n", stats.Cycles)
		fmt.Printf("  With errors: %d\n", stats.FailedCycles)

		reports, err := db.RecentCycleReports(1)
		if err == nil && len(reports) > 0 {
			r := reports[0]
			fmt.Printf("  Last: %s %s (%s)\n", r.Kind, r.FinishedAt, r.TriggeredBy)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDate, "date", "", "Show the price snapshot for a date (YYYY-MM-DD)")
}

func printSnapshot(db *database.DB, date string) error {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	snap, err := db.GetPriceSnapshot(date)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	if snap == nil {
		fmt.Printf("No price snapshot for %s.\n", database.FormatDateDisplay(date))
		return nil
	}

	fmt.Printf("Snapshot: %s\n", database.FormatDateDisplay(snap.Date))
	fmt.Printf("  Price: %.2f USD/oz", snap.PriceBase)
	if snap.PriceDerived != nil {
		fmt.Printf(" (%.2f %s/g)", *snap.PriceDerived, cfg.Conversion.Currency)
	}
	fmt.Println()
	fmt.Printf("  Change: %+.2f%%\n", snap.ChangeFraction*100)
	if snap.Source != nil {
		fmt.Printf("  Source: %s\n", *snap.Source)
	}
	if snap.Sentiment != nil {
		fmt.Printf("  Sentiment: %s\n", *snap.Sentiment)
	}
	if snap.Forecast != nil {
		f := snap.Forecast
		fmt.Printf("  Support/resistance: %.2f / %.2f\n", f.Support, f.Resistance)
		for _, p := range f.Series {
			fmt.Printf("    %-6s %s  %.2f\n", p.Label, p.WallClock, p.Price)
		}
	}
	if snap.ForecastSummary != nil {
		fmt.Printf("\n%s\n", *snap.ForecastSummary)
	}
	return nil
}

// --- refresh command ---

var newsOnly bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh cycle now: price snapshot and news topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var result *pipeline.Result
		if newsOnly {
			result = pipe.RunNews(ctx, "cli")
		} else {
			result = pipe.RunFull(ctx, "cli")
		}

		fmt.Printf("Cycle %s (%s)\n", result.CycleID, result.Kind)
		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		if result.Snapshot != nil && result.Snapshot.ForecastSummary != nil {
			fmt.Printf("\n%s\n", *result.Snapshot.ForecastSummary)
		}

		if result.Errors() > 0 {
			return fmt.Errorf("%d step(s) failed", result.Errors())
		}
		return nil
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&newsOnly, "news-only", false, "Refresh news topics only")
}

// --- serve command ---

var (
	servePort   int
	noScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the refresh scheduler and the JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}
		topics, err := curate.Resolve(cfg.Topics)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var trigger server.Trigger
		if !noScheduler {
			sched, err := scheduler.New(pipe, cfg.Schedule)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
			trigger = sched
		}

		srv, err := server.New(db, pipe.Templates(), trigger, topics)
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if servePort != 0 {
			port = servePort
		}
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(port))
		fmt.Printf("Starting server at http://%s\n", addr)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, addr)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
	serveCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Serve the API without scheduled refreshes")
}

// --- news command ---

var newsLimit int

var newsCmd = &cobra.Command{
	Use:   "news [category]",
	Short: "List recent news stories",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			topic, ok := curate.Lookup(args[0])
			if !ok {
				return fmt.Errorf("%w: %q", curate.ErrUnknownTopic, args[0])
			}
			item, err := db.LatestNewsByCategory(topic.Slug)
			if err != nil {
				return err
			}
			if item == nil {
				fmt.Printf("No stories for %s yet.\n", topic.Name)
				return nil
			}
			printNews(*item)
			return nil
		}

		items, err := db.RecentNews(newsLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No stories yet. Run: goldpulse refresh")
			return nil
		}
		for _, item := range items {
			printNews(item)
		}
		return nil
	},
}

func init() {
	newsCmd.Flags().IntVarP(&newsLimit, "limit", "n", 10, "Number of stories to show")
}

func printNews(item database.NewsItem) {
	date := ""
	if item.PublishedDate != nil {
		date = *item.PublishedDate
	}
	fmt.Printf("[%s] %s  %s\n", item.Category, date, item.Title)
	fmt.Printf("  %s\n", item.URL)
	if item.Summary != nil && *item.Summary != "" {
		fmt.Printf("  %s\n", *item.Summary)
	}
	fmt.Println()
}

// --- prompts command ---

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Print the effective search templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := prompts.New(cfg.Prompts.Path).Load()
		if err != nil {
			return err
		}
		fmt.Printf("Source: %s", set.Source)
		if set.Path != "" {
			fmt.Printf(" (%s)", set.Path)
		}
		fmt.Print("\n\n")
		fmt.Println(set.Markdown)
		return nil
	},
}

// --- helpers ---

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(cfg.DBPath())
}
