package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ovalle/bedel/internal/config"
	"github.com/ovalle/bedel/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Bedel database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "bedel.yaml", "path to Bedel config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if cfg.DB.Driver == "sqlite" {
		fmt.Fprintf(out, "Connected to sqlite database %s\n", cfg.DB.Path)
	} else {
		fmt.Fprintf(out, "Connected to %s at %s:%d\n", cfg.DB.Database, cfg.DB.Host, cfg.DB.Port)
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop all Bedel tables and re-create the schema",
		Long:  "Drops every Bedel table (tickets, FAQs) and re-runs the migration. All data is lost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "bedel.yaml", "path to Bedel config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !skipConfirm && !confirmReset(cmd) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}

	for _, model := range db.AllModels() {
		if err := gormDB.Migrator().DropTable(model); err != nil {
			return fmt.Errorf("drop table for %T: %w", model, err)
		}
	}
	fmt.Fprintf(out, "Dropped %d tables\n", len(db.AllModels()))

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Re-created %d tables\n", len(db.AllModels()))
	return nil
}

func confirmReset(cmd *cobra.Command) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintln(out, "WARNING: This will permanently delete all tickets and FAQ entries.")
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
