package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ovalle/bedel/internal/config"
	"github.com/ovalle/bedel/internal/db"
	"github.com/ovalle/bedel/internal/models"
)

func newFAQCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faq",
		Short: "Manage the FAQ knowledge base",
	}

	cmd.AddCommand(newFAQSeedCmd())
	cmd.AddCommand(newFAQListCmd())
	return cmd
}

func newFAQSeedCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load FAQ entries from a YAML file",
		Long:  "Reads a YAML list of FAQ entries (question, answer, category, keywords) and inserts the ones not already present.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFAQSeed(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "bedel.yaml", "path to Bedel config file")
	return cmd
}

func runFAQSeed(cmd *cobra.Command, configPath, seedPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seeds []db.FAQSeed
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parse seed file %s: %w", seedPath, err)
	}
	if len(seeds) == 0 {
		return fmt.Errorf("seed file %s contains no FAQ entries", seedPath)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	inserted, err := db.SeedFAQs(gormDB, seeds)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d of %d FAQ entries (%d already present)\n",
		inserted, len(seeds), len(seeds)-inserted)
	return nil
}

func newFAQListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List FAQ entries in the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFAQList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "bedel.yaml", "path to Bedel config file")
	return cmd
}

func runFAQList(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}

	var faqs []models.FAQ
	if err := gormDB.Order("category, id").Find(&faqs).Error; err != nil {
		return fmt.Errorf("list faqs: %w", err)
	}
	if len(faqs) == 0 {
		fmt.Fprintln(out, "No FAQ entries found.")
		return nil
	}

	for _, f := range faqs {
		category := f.Category
		if category == "" {
			category = "general"
		}
		fmt.Fprintf(out, "[%d] (%s) %s\n", f.ID, category, f.Question)
	}
	fmt.Fprintf(out, "\n%d FAQ entries\n", len(faqs))
	return nil
}
