package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/busroll/internal/config"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Manage the face gallery",
}

var galleryBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Extract embeddings for every enrolled subject and write the gallery cache",
	RunE:  runGalleryBuild,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryBuildCmd)
	galleryBuildCmd.Flags().BoolP("verbose", "v", false, "Log skipped photos")
}

func runGalleryBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := log.New(io.Discard, "", 0)
	if verbose {
		logger = log.New(os.Stderr, "", 0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var bar *progressbar.ProgressBar
	report, err := a.gallery.RebuildWithProgress(ctx, func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Extracting faces"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetItsString("subjects"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionFullWidth(),
			)
		}
		_ = bar.Set(done)
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return err
	}

	fmt.Printf("Subjects with faces: %d\n", report.Subjects)
	fmt.Printf("Vectors:             %d\n", report.Vectors)
	fmt.Printf("Skipped photos:      %d\n", report.SkippedImages)
	if len(report.NoEncoding) > 0 {
		fmt.Printf("No usable photo:     %v\n", report.NoEncoding)
	}
	if cfg.GalleryCache != "" {
		fmt.Printf("Cache written to %s\n", cfg.GalleryCache)
	}
	return nil
}
