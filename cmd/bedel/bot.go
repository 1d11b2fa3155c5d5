package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovalle/bedel/internal/apiclient"
	"github.com/ovalle/bedel/internal/config"
	"github.com/ovalle/bedel/internal/convo"
	discordadapter "github.com/ovalle/bedel/internal/convo/discord"
	slackadapter "github.com/ovalle/bedel/internal/convo/slack"
	"github.com/ovalle/bedel/internal/llm"
)

func newBotCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Start the Bedel chat daemon",
		Long:  "Connects to the configured chat platform, classifies student messages, and runs the guided ticket flow.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "bedel.yaml", "path to Bedel config file")
	return cmd
}

func runBot(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Platform == "" {
		return fmt.Errorf("bot: no platform configured in %s (add platform: discord or platform: slack)", configPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.GeminiAPIKey() == "" {
		return fmt.Errorf("bot: Gemini API key not set (export %s)", cfg.Gemini.APIKeyEnv)
	}
	llmSvc, err := llm.New(ctx, llmOpts(cfg))
	if err != nil {
		return err
	}

	backend, err := apiclient.New(backendOpts(cfg))
	if err != nil {
		return err
	}

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	daemon, err := convo.NewDaemon(convo.DaemonOpts{
		Config:     cfg,
		Adapter:    adapter,
		Classifier: llmSvc,
		Generator:  llmSvc,
		Backend:    backend,
		Out:        cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return daemon.Run(ctx)
}

// llmOpts builds the Gemini client options, carrying the configured
// timeout through to the service.
func llmOpts(cfg *config.Config) llm.Opts {
	return llm.Opts{
		APIKey:  cfg.GeminiAPIKey(),
		Model:   cfg.Gemini.Model,
		Timeout: time.Duration(cfg.Gemini.TimeoutSec) * time.Second,
	}
}

// backendOpts builds the backend client options from the config.
func backendOpts(cfg *config.Config) apiclient.Opts {
	return apiclient.Opts{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: time.Duration(cfg.Backend.TimeoutSec) * time.Second,
	}
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (convo.Adapter, error) {
	switch cfg.Platform {
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.ChannelID,
		})
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken:  cfg.Slack.AppToken,
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.Slack.ChannelID,
		})
	default:
		return nil, fmt.Errorf("bot: unsupported platform %q", cfg.Platform)
	}
}
