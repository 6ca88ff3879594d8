// Package cmd defines and implements the CLI commands for the quotes-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/app"
	"github.com/JakeFAU/quotes-crawler/internal/config"
	"github.com/JakeFAU/quotes-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newRootCmd creates the root command bound to v. Flags registered by
// subcommands are bound into the same Viper instance.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "quotes-crawler",
		Short: "Concurrent crawler for quotes.toscrape.com",
		Long: `quotes-crawler walks the paginated quote listing of quotes.toscrape.com,
fetches each author's biography once, and writes quotes.json and authors.json.`,
		SilenceUsage: true,

		// Runs after flags are parsed and before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.AddCommand(newCrawlCmd(v))
	return cmd
}

// closeApp shuts services down. It runs from RunE because cobra skips post-run
// hooks when RunE fails.
func closeApp(appInstance *app.App) {
	_ = appInstance.Close()
	_ = appInstance.Logger().Sync()
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	root := newRootCmd(config.New())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "quotes-crawler: %v\n", err)
		zap.L().Debug("command failed", zap.Error(err))
		return 1
	}
	return 0
}
