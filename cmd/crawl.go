package cmd

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// crawlFlags maps flag names onto config keys.
var crawlFlags = map[string]string{
	"base-url":         "site.base_url",
	"start-path":       "site.start_path",
	"concurrency":      "crawler.concurrency",
	"respect-robots":   "crawler.respect_robots",
	"max-pages":        "crawler.max_pages",
	"max-retries":      "crawler.max_retries",
	"output-dir":       "output.dir",
	"output-backend":   "output.backend",
	"metrics-textfile": "metrics.textfile",
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the quote listing and write the JSON outputs",
		Long: `Walks the listing chain from the start page, resolves every author once
under a bounded concurrency budget, and writes quotes.json and authors.json.
The command fails, writing nothing, when the first listing page cannot be
fetched or parsed. Later page and author failures are logged and summarized.`,
		RunE: runCrawlCommand,
	}

	flags := cmd.Flags()
	flags.String("base-url", "", "site root, e.g. https://quotes.toscrape.com")
	flags.String("start-path", "", "path of the first listing page")
	flags.Int("concurrency", crawler.DefaultCapacity, "maximum concurrent fetches")
	flags.Bool("respect-robots", true, "honor robots.txt")
	flags.Int("max-pages", 0, "stop after this many listing pages (0 = unlimited)")
	flags.Int("max-retries", 0, "retries for transient fetch failures")
	flags.String("output-dir", "", "directory for the local output backend")
	flags.String("output-backend", "", "output backend: local, gcs or memory")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file after the run")
	bindFlags(v, flags)
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range crawlFlags {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(appInstance)
	logger := appInstance.Logger()

	engine, err := appInstance.Engine()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	report, runErr := engine.Run(cmd.Context())

	if path := appInstance.Config().Metrics.Textfile; path != "" {
		if err := prometheus.WriteToTextfile(path, appInstance.Registry()); err != nil {
			logger.Warn("metrics textfile not written", zap.String("path", path), zap.Error(err))
		}
	}

	if runErr != nil {
		if errors.Is(runErr, crawler.ErrRootPage) {
			logger.Error("crawl aborted", zap.Error(runErr))
		}
		return fmt.Errorf("run crawler: %w", runErr)
	}
	if report.BranchErrors != nil {
		logger.Warn("crawl finished with branch failures",
			zap.Int64("failed_pages", report.FailedPages),
			zap.Strings("failed_authors", report.FailedAuthors),
			zap.Error(report.BranchErrors),
		)
	}
	logger.Info("crawl command finished", zap.Strings("outputs", report.Outputs))
	return nil
}
