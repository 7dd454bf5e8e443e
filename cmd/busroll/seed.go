package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/busroll/internal/config"
	"github.com/BrandonDHaskell/busroll/internal/db"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a dev bus with a driver, a door camera, and subjects",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("group", "bus-01", "Bus (group) ID")
	seedCmd.Flags().StringSlice("subjects", nil, "Subject IDs to enroll")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.Env != "dev" {
		return fmt.Errorf("seed only runs with BUSROLL_ENV=dev")
	}
	if cfg.Store != "sqlite" {
		return fmt.Errorf("seed needs the sqlite store")
	}
	group, _ := cmd.Flags().GetString("group")
	subjects, _ := cmd.Flags().GetStringSlice("subjects")

	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.SeedDev(ctx, conn, db.SeedDevOptions{GroupID: group, Subjects: subjects}); err != nil {
		return err
	}
	fmt.Printf("Seeded %s with %d subjects\n", group, len(subjects))
	return nil
}
