package types

import (
	"fmt"
	"strings"
	"time"
)

// TargetKind selects what a knockout candidate removes: whole reactions or
// genes (which disable reactions through their gene-reaction rules).
type TargetKind string

const (
	TargetReaction TargetKind = "reaction"
	TargetGene     TargetKind = "gene"
)

// PoolSource selects how the candidate pool is assembled.
type PoolSource string

const (
	// PoolAll uses every eligible reaction (or every gene that controls a reaction).
	PoolAll PoolSource = "all"

	// PoolNeighborhood uses reactions touching the reactants of the
	// production reaction, or the genes of those reactions.
	PoolNeighborhood PoolSource = "neighborhood"

	// PoolList uses the explicit Pool entries only.
	PoolList PoolSource = "list"
)

// SamplingPolicy decides what happens when the pool exceeds PoolSampleCeiling.
type SamplingPolicy string

const (
	// SamplingUnset rejects an oversized pool as a configuration error.
	SamplingUnset SamplingPolicy = ""

	// SamplingSample keeps a fixed-seed random sample of ceiling size.
	SamplingSample SamplingPolicy = "sample"

	// SamplingReject fails with a PoolTooLargeError so the caller narrows the pool.
	SamplingReject SamplingPolicy = "reject"
)

// EvaluationMethod selects the production solve used for each candidate.
type EvaluationMethod string

const (
	MethodFBA  EvaluationMethod = "fba"
	MethodPFBA EvaluationMethod = "pfba"
)

// DefaultExcludePrefixes are reaction id prefixes for boundary reactions
// that are never knockout candidates in a reaction pool.
var DefaultExcludePrefixes = []string{"EX_", "DM_", "sink_"}

// SearchConfig holds settings for one knockout search run.
type SearchConfig struct {
	// ModelPath is the COBRA JSON or YAML model file.
	ModelPath string `json:"model" yaml:"model" mapstructure:"model"`

	// ProductionTarget is a reaction id, or a metabolite id resolved to its
	// boundary (export) reaction.
	ProductionTarget string `json:"production_target" yaml:"production_target" mapstructure:"production_target" validate:"required"`

	// GrowthObjective is the biomass reaction id. Empty uses the model's
	// single objective reaction.
	GrowthObjective string `json:"growth_objective" yaml:"growth_objective" mapstructure:"growth_objective"`

	// GrowthFloorFraction is the minimum growth kept, as a fraction of
	// wild-type optimal growth (default 0.8).
	GrowthFloorFraction float64 `json:"growth_floor_fraction" yaml:"growth_floor_fraction" mapstructure:"growth_floor_fraction" validate:"fraction"`

	// MaxKnockoutSize bounds the number of targets per candidate (default 1).
	MaxKnockoutSize int `json:"max_knockout_size" yaml:"max_knockout_size" mapstructure:"max_knockout_size" validate:"gte=1"`

	// PoolKind is reaction or gene.
	PoolKind TargetKind `json:"pool_kind" yaml:"pool_kind" mapstructure:"pool_kind" validate:"oneof=reaction gene"`

	// PoolSource is all, neighborhood, or list.
	PoolSource PoolSource `json:"pool_source" yaml:"pool_source" mapstructure:"pool_source" validate:"oneof=all neighborhood list"`

	// Pool lists explicit pool members. Required when PoolSource is list.
	Pool []string `json:"pool,omitempty" yaml:"pool,omitempty" mapstructure:"pool" validate:"required_if=PoolSource list"`

	// ExcludePrefixes drops reactions with these id prefixes from reaction pools.
	ExcludePrefixes []string `json:"exclude_prefixes,omitempty" yaml:"exclude_prefixes,omitempty" mapstructure:"exclude_prefixes"`

	// PoolSampleCeiling is the largest pool evaluated as is. Zero disables the check.
	PoolSampleCeiling int `json:"pool_sample_ceiling" yaml:"pool_sample_ceiling" mapstructure:"pool_sample_ceiling" validate:"gte=0"`

	// Sampling is the policy applied when the pool exceeds the ceiling.
	Sampling SamplingPolicy `json:"sampling,omitempty" yaml:"sampling,omitempty" mapstructure:"sampling" validate:"omitempty,oneof=sample reject"`

	// Seed drives pool sampling.
	Seed int64 `json:"seed" yaml:"seed" mapstructure:"seed"`

	// ProductionMargin is the relative improvement over baseline production
	// a candidate must exceed (default 0.05).
	ProductionMargin float64 `json:"production_margin" yaml:"production_margin" mapstructure:"production_margin" validate:"gte=0"`

	// TopN caps the ranked list (default 10).
	TopN int `json:"top_n" yaml:"top_n" mapstructure:"top_n" validate:"gte=1"`

	// TimeoutPerCandidate bounds the solves of one candidate. Zero means no limit.
	TimeoutPerCandidate time.Duration `json:"timeout_per_candidate" yaml:"timeout_per_candidate" mapstructure:"timeout_per_candidate" validate:"gte=0"`

	// Workers is the number of parallel evaluators, each with its own
	// network clone. Zero uses the number of CPUs.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers" validate:"gte=0"`

	// Method is fba or pfba.
	Method EvaluationMethod `json:"method" yaml:"method" mapstructure:"method" validate:"oneof=fba pfba"`

	// PruneLethal skips candidates that contain a smaller knockout set
	// already found below the growth floor.
	PruneLethal bool `json:"prune_lethal" yaml:"prune_lethal" mapstructure:"prune_lethal"`

	// AddDemand adds a demand reaction when a metabolite target has no
	// boundary reaction.
	AddDemand bool `json:"add_demand" yaml:"add_demand" mapstructure:"add_demand"`
}

// DefaultSearchConfig returns the settings used by the original screening
// workflow: 80% growth floor, 5% production margin, single knockouts, top 10.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		GrowthFloorFraction: 0.8,
		MaxKnockoutSize:     1,
		PoolKind:            TargetReaction,
		PoolSource:          PoolAll,
		ExcludePrefixes:     append([]string(nil), DefaultExcludePrefixes...),
		ProductionMargin:    0.05,
		TopN:                10,
		Method:              MethodFBA,
		PruneLethal:         true,
	}
}

// HistoryConfig holds settings for the run history database.
type HistoryConfig struct {
	// Path is the SQLite database file (e.g. "runs/history.db"). Empty disables recording.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// CheckpointConfig holds settings for the evaluation checkpoint cache.
type CheckpointConfig struct {
	// Dir is the badger directory. Empty disables checkpointing.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// InMemory keeps the cache in memory (tests).
	InMemory bool `json:"in_memory,omitempty" yaml:"in_memory,omitempty" mapstructure:"in_memory"`
}

// AcquisitionConfig holds settings for downloading published models.
type AcquisitionConfig struct {
	// ModelsDir receives downloaded models and their metadata/ records.
	ModelsDir string `json:"models_dir" yaml:"models_dir" mapstructure:"models_dir"`

	// BaseURL is the BiGG Models server (default "http://bigg.ucsd.edu").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// DownloadDelay is the pause between consecutive downloads.
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay" mapstructure:"download_delay"`

	// MaxRetries bounds retries on rate limiting and unavailable responses.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// DefaultAcquisitionConfig returns download settings for the public BiGG server.
func DefaultAcquisitionConfig() AcquisitionConfig {
	return AcquisitionConfig{
		ModelsDir:     "models",
		BaseURL:       "http://bigg.ucsd.edu",
		Timeout:       2 * time.Minute,
		UserAgent:     "knockout-engine",
		DownloadDelay: time.Second,
		MaxRetries:    5,
	}
}

// PipelineConfig groups all configuration read from knockout-engine.yaml.
type PipelineConfig struct {
	Search      SearchConfig      `json:"search" yaml:"search" mapstructure:"search"`
	History     HistoryConfig     `json:"history" yaml:"history" mapstructure:"history"`
	Checkpoint  CheckpointConfig  `json:"checkpoint" yaml:"checkpoint" mapstructure:"checkpoint"`
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition" mapstructure:"acquisition"`
}

// ConfigError reports a configuration that is rejected before any solver call.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ConfigErrors collects several ConfigError values found in one validation pass.
type ConfigErrors []*ConfigError

func (es ConfigErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes each ConfigError to errors.As.
func (es ConfigErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}
