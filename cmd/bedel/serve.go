package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ovalle/bedel/internal/config"
	"github.com/ovalle/bedel/internal/db"
	"github.com/ovalle/bedel/internal/ticketapi"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ticket/FAQ backend API server",
		Long:  "Serves the HTTP API the chat daemon uses to create tickets and look up FAQ answers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "bedel.yaml", "path to Bedel config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return ticketapi.Start(ctx, ticketapi.StartOpts{
		DB:   gormDB,
		Port: cfg.API.Port,
		Out:  cmd.OutOrStdout(),
	})
}
