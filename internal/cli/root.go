// Package cli provides the command-line interface for unichat.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/unisale/unichat-go/internal/chat"
	"github.com/unisale/unichat-go/internal/config"
	"github.com/unisale/unichat-go/internal/db"
	"github.com/unisale/unichat-go/internal/market"
	"github.com/unisale/unichat-go/internal/metrics"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose  bool
	userFlag string

	// Global config and db client
	cfg      config.Config
	dbClient *db.Client

	// Shared chat components, wired in PersistentPreRunE
	logger    *slog.Logger
	store     *chat.Store
	feed      *chat.LiveFeed
	collector *metrics.Collector
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "unichat",
	Short: "Buyer-seller chat for the UniSale marketplace",
	Long: `Unichat is the real-time chat client for the UniSale student
marketplace. Each conversation binds a buyer and a seller to one product
listing, so the same two people negotiating two listings get two separate
threads.

Messages are stored in SurrealDB and delivered live over its websocket
protocol.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level := cfg.Level()
		if verbose {
			level = slog.LevelDebug
		}
		var cleanup func() error
		logger, cleanup = config.SetupLogger(cfg.LogFile, level)
		logCleanup = cleanup

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		collector = metrics.NewCollector()
		store = chat.NewStore(dbClient, collector, logger)
		feed = chat.NewLiveFeed(dbClient, store, collector, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

var logCleanup func() error

// marketClient creates the marketplace REST client on demand.
func marketClient() *market.Client {
	return market.NewClient(cfg.MarketURL, nil)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "acting user id (default $UNICHAT_USER)")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(signupCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
