// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/knockout-engine/internal/model"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

// setDefaults registers every configuration key so environment variables
// resolve even when no config file is present.
func setDefaults() {
	d := types.DefaultSearchConfig()
	viper.SetDefault("search.model", "")
	viper.SetDefault("search.production_target", "")
	viper.SetDefault("search.growth_objective", "")
	viper.SetDefault("search.growth_floor_fraction", d.GrowthFloorFraction)
	viper.SetDefault("search.max_knockout_size", d.MaxKnockoutSize)
	viper.SetDefault("search.pool_kind", string(d.PoolKind))
	viper.SetDefault("search.pool_source", string(d.PoolSource))
	viper.SetDefault("search.pool", []string{})
	viper.SetDefault("search.exclude_prefixes", d.ExcludePrefixes)
	viper.SetDefault("search.pool_sample_ceiling", d.PoolSampleCeiling)
	viper.SetDefault("search.sampling", string(d.Sampling))
	viper.SetDefault("search.seed", d.Seed)
	viper.SetDefault("search.production_margin", d.ProductionMargin)
	viper.SetDefault("search.top_n", d.TopN)
	viper.SetDefault("search.timeout_per_candidate", d.TimeoutPerCandidate)
	viper.SetDefault("search.workers", d.Workers)
	viper.SetDefault("search.method", string(d.Method))
	viper.SetDefault("search.prune_lethal", d.PruneLethal)
	viper.SetDefault("search.add_demand", d.AddDemand)
	viper.SetDefault("history.path", "")
	viper.SetDefault("checkpoint.dir", "")

	a := types.DefaultAcquisitionConfig()
	viper.SetDefault("acquisition.models_dir", a.ModelsDir)
	viper.SetDefault("acquisition.base_url", a.BaseURL)
	viper.SetDefault("acquisition.timeout", a.Timeout)
	viper.SetDefault("acquisition.user_agent", a.UserAgent+"/"+version)
	viper.SetDefault("acquisition.download_delay", a.DownloadDelay)
	viper.SetDefault("acquisition.max_retries", a.MaxRetries)
}

// flagKeys maps command flags to configuration keys.
var flagKeys = map[string]string{
	"model":          "search.model",
	"target":         "search.production_target",
	"objective":      "search.growth_objective",
	"growth-floor":   "search.growth_floor_fraction",
	"max-size":       "search.max_knockout_size",
	"kind":           "search.pool_kind",
	"source":         "search.pool_source",
	"pool":           "search.pool",
	"exclude-prefix": "search.exclude_prefixes",
	"ceiling":        "search.pool_sample_ceiling",
	"sampling":       "search.sampling",
	"seed":           "search.seed",
	"margin":         "search.production_margin",
	"top":            "search.top_n",
	"timeout":        "search.timeout_per_candidate",
	"workers":        "search.workers",
	"method":         "search.method",
	"prune":          "search.prune_lethal",
	"add-demand":     "search.add_demand",
	"history":        "history.path",
	"checkpoint-dir": "checkpoint.dir",
	"models-dir":     "acquisition.models_dir",
	"base-url":       "acquisition.base_url",
	"http-timeout":   "acquisition.timeout",
	"delay":          "acquisition.download_delay",
	"retries":        "acquisition.max_retries",
}

// addTargetFlags registers the flags shared by search and baseline.
func addTargetFlags(fs *pflag.FlagSet) {
	d := types.DefaultSearchConfig()
	fs.String("model", "", "COBRA JSON or YAML model file")
	fs.String("target", "", "production target: reaction id, or metabolite id resolved to its export reaction")
	fs.String("objective", "", "growth objective reaction (default: the model's objective)")
	fs.Float64("growth-floor", d.GrowthFloorFraction, "minimum growth as a fraction of wild-type growth")
	fs.String("method", string(d.Method), "production solve: fba or pfba")
	fs.Bool("add-demand", false, "add a demand reaction when a metabolite target has no export")
}

// bindFlags binds the command's flags to their configuration keys. Binding
// happens when the command runs so commands sharing a key do not override
// each other.
func bindFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// loadConfig resolves the pipeline configuration from flags, environment
// and config file. A positional model path overrides search.model.
func loadConfig(cmd *cobra.Command, args []string) (types.PipelineConfig, error) {
	if err := bindFlags(cmd); err != nil {
		return types.PipelineConfig{}, err
	}
	var cfg types.PipelineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.PipelineConfig{}, fmt.Errorf("reading configuration: %w", err)
	}
	if len(args) > 0 {
		cfg.Search.ModelPath = args[0]
	}
	return cfg, nil
}

func loadModel(path string) (*model.Model, error) {
	if path == "" {
		return nil, fmt.Errorf("model file required: pass it as an argument, with --model, or as search.model in the config file")
	}
	m, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("model loaded", "path", path, "id", m.ID(),
		"reactions", len(m.Reactions()), "metabolites", len(m.Metabolites()), "genes", len(m.Genes()))
	return m, nil
}
