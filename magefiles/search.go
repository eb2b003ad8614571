//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Search builds the CLI and runs a knockout search on $MODEL for $TARGET,
// saving the run under runs/ and recording it in runs/history.db.
// MAX_SIZE sets the largest knockout set (default 2).
func Search() error {
	mg.Deps(Build, Init)

	model, target := os.Getenv("MODEL"), os.Getenv("TARGET")
	if model == "" || target == "" {
		return fmt.Errorf("set MODEL and TARGET, e.g. MODEL=e_coli_core.json TARGET=EX_ac_e mage search")
	}
	maxSize := os.Getenv("MAX_SIZE")
	if maxSize == "" {
		maxSize = "2"
	}

	runFile := filepath.Join("runs", time.Now().Format("20060102-150405")+".yaml")
	return sh.RunV(filepath.Join(binDir, binName), "search", model,
		"--target", target,
		"--max-size", maxSize,
		"--history", filepath.Join("runs", "history.db"),
		"--checkpoint-dir", "checkpoints",
		"--save", runFile,
	)
}
