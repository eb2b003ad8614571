// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads published metabolic models and records where
// they came from. A BiGG id ("e_coli_core") resolves to the BiGG Models
// JSON export; a URL is fetched as is. Every download is parsed before it
// is kept, so a models directory only holds loadable networks.
package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/knockout-engine/internal/httputil"
	"github.com/pdiddy/knockout-engine/internal/model"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

const metadataDir = "metadata"

// maxModelBytes bounds a single download. The largest BiGG models are
// tens of megabytes.
const maxModelBytes = 512 << 20

// Record describes an acquired model. It is written next to the model
// under metadata/<slug>.yaml.
type Record struct {
	ID          string    `json:"id" yaml:"id"`
	Source      string    `json:"source" yaml:"source"`
	SourceURL   string    `json:"source_url" yaml:"source_url"`
	Path        string    `json:"path" yaml:"path"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	Reactions   int       `json:"reactions" yaml:"reactions"`
	Metabolites int       `json:"metabolites" yaml:"metabolites"`
	Genes       int       `json:"genes" yaml:"genes"`
	Acquired    time.Time `json:"acquired" yaml:"acquired"`
}

// BatchResult holds the outcome of a batch acquisition run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Models     []*Record
}

// Total returns the total number of identifiers processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any model failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// NewClient returns an HTTP client with the configured timeout.
func NewClient(cfg types.AcquisitionConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

// AcquireModel resolves a single identifier, downloads and validates the
// model, and writes its metadata record. If the model file already exists
// the download is skipped.
func AcquireModel(ctx context.Context, client *http.Client, identifier string, cfg types.AcquisitionConfig, w io.Writer) (rec *Record, skipped bool, err error) {
	idType, normalized := Classify(identifier)
	if idType == TypeUnknown {
		return nil, false, fmt.Errorf("unrecognized model identifier %q: use a BiGG id or an http(s) URL", identifier)
	}

	slug := Slug(idType, normalized)
	modelPath := filepath.Join(cfg.ModelsDir, slug+Ext(idType, normalized))
	metaPath := filepath.Join(cfg.ModelsDir, metadataDir, slug+".yaml")

	if _, err := os.Stat(modelPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", slug)
		r, readErr := readRecord(metaPath)
		if readErr != nil {
			r = &Record{ID: slug, Path: modelPath}
		}
		return r, true, nil
	}

	for _, dir := range []string{cfg.ModelsDir, filepath.Join(cfg.ModelsDir, metadataDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, false, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	src := ModelURL(cfg.BaseURL, idType, normalized)
	fmt.Fprintf(w, "downloading: %s (%s)\n", slug, idType)

	m, err := download(ctx, client, src, modelPath, cfg)
	if err != nil {
		return nil, false, fmt.Errorf("downloading %s: %w", slug, err)
	}

	rec = &Record{
		ID:          m.ID(),
		Source:      idType.String(),
		SourceURL:   src,
		Path:        modelPath,
		Fingerprint: m.Fingerprint(),
		Reactions:   len(m.Reactions()),
		Metabolites: len(m.Metabolites()),
		Genes:       len(m.Genes()),
		Acquired:    time.Now().UTC(),
	}
	if rec.ID == "" {
		rec.ID = slug
	}
	if err := writeRecord(rec, metaPath); err != nil {
		return nil, false, fmt.Errorf("writing metadata for %s: %w", slug, err)
	}
	return rec, false, nil
}

// AcquireBatch processes several identifiers, printing per-item status and
// returning a summary. It continues after individual failures, waits
// DownloadDelay between downloads, and stops early when ctx is cancelled.
func AcquireBatch(ctx context.Context, client *http.Client, identifiers []string, cfg types.AcquisitionConfig, w io.Writer) BatchResult {
	var result BatchResult
	for i, id := range identifiers {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && cfg.DownloadDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(cfg.DownloadDelay):
			}
		}
		rec, wasSkipped, err := AcquireModel(ctx, client, id, cfg, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
			result.Failed++
			continue
		}
		if wasSkipped {
			result.Skipped++
		} else {
			result.Downloaded++
		}
		result.Models = append(result.Models, rec)
	}
	fmt.Fprintf(w, "\nBatch summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result
}

// download fetches url, parses it as a model, and only then moves it to
// destPath through a temporary file.
func download(ctx context.Context, client *http.Client, url, destPath string, cfg types.AcquisitionConfig) (*model.Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.1")

	resp, err := httputil.DoWithRetry(ctx, client, req, cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxModelBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(data) > maxModelBytes {
		return nil, fmt.Errorf("model larger than %d bytes", maxModelBytes)
	}

	m, err := model.Parse(data, filepath.Ext(destPath))
	if err != nil {
		return nil, fmt.Errorf("parsing downloaded model: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("writing download: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("renaming temp file: %w", err)
	}
	return m, nil
}

func writeRecord(rec *Record, path string) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
