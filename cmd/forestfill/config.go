package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"
)

// Config is the CLI run description. JSON, TOML and YAML are accepted, picked
// by file extension.
type Config struct {
	Input struct {
		Path      string `json:"path" toml:"path" yaml:"path"`
		Type      string `json:"type" toml:"type" yaml:"type"` // csv|jsonl|parquet; default from extension
		HasHeader bool   `json:"has_header" toml:"has_header" yaml:"has_header"`
		Delimiter string `json:"delimiter" toml:"delimiter" yaml:"delimiter"`
	} `json:"input" toml:"input" yaml:"input"`
	Output struct {
		Path      string `json:"path" toml:"path" yaml:"path"`
		Type      string `json:"type" toml:"type" yaml:"type"`
		Delimiter string `json:"delimiter" toml:"delimiter" yaml:"delimiter"`
	} `json:"output" toml:"output" yaml:"output"`
	Impute struct {
		Target         string   `json:"target" toml:"target" yaml:"target"`
		Trees          int      `json:"trees" toml:"trees" yaml:"trees"`
		TreeGrowth     int      `json:"tree_growth" toml:"tree_growth" yaml:"tree_growth"`
		Window         int      `json:"window" toml:"window" yaml:"window"`
		Resilience     int      `json:"resilience" toml:"resilience" yaml:"resilience"`
		Tolerance      float64  `json:"tolerance" toml:"tolerance" yaml:"tolerance"`
		SampleFraction float64  `json:"sample_fraction" toml:"sample_fraction" yaml:"sample_fraction"`
		Forbidden      []string `json:"forbidden" toml:"forbidden" yaml:"forbidden"`
		Ordinal        []string `json:"ordinal" toml:"ordinal" yaml:"ordinal"`
		MaxDepth       int      `json:"max_depth" toml:"max_depth" yaml:"max_depth"`
		MinSplit       int      `json:"min_split" toml:"min_split" yaml:"min_split"`
		MinLeaf        int      `json:"min_leaf" toml:"min_leaf" yaml:"min_leaf"`
		MaxFeatures    int      `json:"max_features" toml:"max_features" yaml:"max_features"`
		Workers        int      `json:"workers" toml:"workers" yaml:"workers"`
		Seed           int64    `json:"seed" toml:"seed" yaml:"seed"`
	} `json:"impute" toml:"impute" yaml:"impute"`
	// PlotDir, when set, receives per-cell convergence history PNGs.
	PlotDir string `json:"plot_dir" toml:"plot_dir" yaml:"plot_dir"`
	// MDSPath, when set, receives a 2-D MDS scatter of the sample structure.
	MDSPath string `json:"mds_path" toml:"mds_path" yaml:"mds_path"`
}

func loadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	switch filepath.Ext(path) {
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ioType resolves an explicit type or falls back to the file extension.
func ioType(explicit, path string) string {
	if explicit != "" {
		return explicit
	}
	switch filepath.Ext(path) {
	case ".jsonl", ".ndjson":
		return "jsonl"
	case ".parquet":
		return "parquet"
	}
	return "csv"
}
