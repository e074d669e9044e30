package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "run.json", `{
		"input": {"path": "in.csv", "has_header": true},
		"output": {"path": "out.csv"},
		"impute": {"target": "age", "trees": 40, "window": 3, "tolerance": 0.05}
	}`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Input.Path != "in.csv" || !cfg.Input.HasHeader {
		t.Fatalf("input %+v", cfg.Input)
	}
	if cfg.Impute.Target != "age" || cfg.Impute.Trees != 40 || cfg.Impute.Tolerance != 0.05 {
		t.Fatalf("impute %+v", cfg.Impute)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeConfig(t, "run.toml", `
plot_dir = "plots"

[input]
path = "in.parquet"
type = "parquet"

[impute]
target = "color"
ordinal = ["size"]
seed = 9
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Input.Type != "parquet" || cfg.PlotDir != "plots" {
		t.Fatalf("config %+v", cfg)
	}
	if len(cfg.Impute.Ordinal) != 1 || cfg.Impute.Ordinal[0] != "size" || cfg.Impute.Seed != 9 {
		t.Fatalf("impute %+v", cfg.Impute)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "run.yaml", `
input:
  path: in.jsonl
impute:
  target: y
  sample_fraction: 0.5
  forbidden: [height]
mds_path: mds.png
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Input.Path != "in.jsonl" || cfg.MDSPath != "mds.png" {
		t.Fatalf("config %+v", cfg)
	}
	if cfg.Impute.SampleFraction != 0.5 || len(cfg.Impute.Forbidden) != 1 {
		t.Fatalf("impute %+v", cfg.Impute)
	}
}

func TestLoadConfigBad(t *testing.T) {
	path := writeConfig(t, "run.json", `{not json`)
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestIOType(t *testing.T) {
	cases := []struct {
		explicit, path, want string
	}{
		{"parquet", "data.csv", "parquet"},
		{"", "data.jsonl", "jsonl"},
		{"", "data.ndjson", "jsonl"},
		{"", "data.parquet", "parquet"},
		{"", "data.csv", "csv"},
		{"", "data", "csv"},
	}
	for _, c := range cases {
		if got := ioType(c.explicit, c.path); got != c.want {
			t.Fatalf("ioType(%q, %q) = %q, want %q", c.explicit, c.path, got, c.want)
		}
	}
}
