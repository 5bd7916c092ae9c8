package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ai_art_description/config"
	"ai_art_description/generator"
	"ai_art_description/jobs"
	"ai_art_description/logging"
	"ai_art_description/publisher"
)

// CLI flags
var (
	configPath string
	logLevel   string
	dryRun     bool
	mockLLM    bool
)

var rootCmd = &cobra.Command{
	Use:   "ai-art-description",
	Short: "Generate gallery, SEO and social copy for artworks from their images",
	Long: `ai-art-description reads an artwork product from WordPress, sends its image and
prompt templates to OpenAI, and writes the generated excerpt, SERP sentence,
Facebook preview and tweet back to the product.

Examples:
  ai-art-description generate 4211 --roles ai-premium
  ai-art-description bulk 4211 4212 4213 --workers 4
  ai-art-description serve --addr :8080
  ai-art-description enqueue 4211 4212
  ai-art-description worker`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.json", "path to config.json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log writes instead of updating WordPress")
	rootCmd.PersistentFlags().BoolVar(&mockLLM, "mock", false, "use a canned model client instead of OpenAI")

	rootCmd.AddCommand(generateCmd(), bulkCmd(), serveCmd(), workerCmd(), enqueueCmd(), hookCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel == "" && cfg.LogLevel != "" {
		logging.Init(cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func buildClient(cfg config.Config) generator.Client {
	if mockLLM {
		log.Warn().Msg("Using mock model client")
		return &generator.MockClient{}
	}
	return generator.NewOpenAIClient(cfg.LLMSettings())
}

func buildPublisher(cfg config.Config) (*publisher.Publisher, error) {
	agent, err := generator.NewAgent(buildClient(cfg), cfg.AgentOptions())
	if err != nil {
		return nil, err
	}
	var store publisher.Store
	store, err = publisher.NewWordPressStore(cfg.WordPress, nil)
	if err != nil {
		return nil, err
	}
	if dryRun {
		store = publisher.DryRunStore{Store: store}
	}
	return publisher.New(store, agent, publisher.Options{
		Policy:          cfg.Policy(),
		RawResponseKey:  cfg.RawResponseKey,
		RequireCategory: cfg.RequireCategory,
	})
}

// buildQueue uses Redis when configured and an in-process queue otherwise.
func buildQueue(ctx context.Context, cfg config.Config) (jobs.Queue, func(), error) {
	if cfg.RedisURL == "" {
		q := jobs.NewMemoryQueue(1024)
		return q, q.Close, nil
	}
	q, err := jobs.NewRedisQueue(ctx, cfg.RedisURL, "")
	if err != nil {
		return nil, nil, err
	}
	return q, func() { _ = q.Close() }, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
