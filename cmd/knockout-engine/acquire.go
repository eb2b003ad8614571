// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knockout-engine/internal/acquire"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire <bigg-id|url>...",
	Short: "Download published models by BiGG id or URL",
	Long: `Acquire downloads metabolic models into the models directory. A BiGG
id such as e_coli_core or iML1515 resolves to the BiGG Models JSON export;
an http(s) URL to a COBRA JSON or YAML document is fetched directly.
Each download is parsed before it is kept and gets a metadata record
under metadata/. Models already present are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().String("models-dir", "", "directory for downloaded models (default models)")
	acquireCmd.Flags().String("base-url", "", "BiGG Models server (default http://bigg.ucsd.edu)")
	acquireCmd.Flags().Duration("http-timeout", 0, "HTTP request timeout (default 2m)")
	acquireCmd.Flags().Duration("delay", 0, "delay between consecutive downloads (default 1s)")
	acquireCmd.Flags().Int("retries", 0, "retries on rate limiting or unavailability (default 5)")

	rootCmd.AddCommand(acquireCmd)
}

func runAcquire(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := cfg.Acquisition
	result := acquire.AcquireBatch(ctx, acquire.NewClient(a), args, a, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d model(s) failed acquisition", result.Failed)
	}
	return ctx.Err()
}
