package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"

	ff "github.com/wdm0006/forestfill/pkg/forestfill"
	"github.com/wdm0006/forestfill/pkg/impute"
	"github.com/wdm0006/forestfill/pkg/io/csvio"
	"github.com/wdm0006/forestfill/pkg/io/jsonlio"
	"github.com/wdm0006/forestfill/pkg/io/parquetio"
	"github.com/wdm0006/forestfill/pkg/mds"
	fplot "github.com/wdm0006/forestfill/pkg/plot"
)

var version = "0.1.0-dev"

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "Path to run config (JSON, TOML or YAML)")
	verbose := flag.Bool("verbose", false, "Log per-round progress and show estimate sparklines")
	flag.Parse()

	if *showVersion {
		fmt.Println("forestfill", version)
		return
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "no config provided; try --config <file> or --version")
		os.Exit(2)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if !*verbose {
		log = log.Level(zerolog.WarnLevel)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	frame, err := readDataset(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("read dataset")
	}
	log.Info().Int("rows", frame.Rows()).Int("cols", frame.Cols()).Msg("dataset loaded")

	session, err := impute.NewSession(frame, impute.Config{
		Target:         cfg.Impute.Target,
		Trees:          cfg.Impute.Trees,
		TreeGrowth:     cfg.Impute.TreeGrowth,
		Window:         cfg.Impute.Window,
		Resilience:     cfg.Impute.Resilience,
		Tolerance:      cfg.Impute.Tolerance,
		SampleFraction: cfg.Impute.SampleFraction,
		Forbidden:      cfg.Impute.Forbidden,
		Ordinal:        cfg.Impute.Ordinal,
		MaxDepth:       cfg.Impute.MaxDepth,
		MinSplit:       cfg.Impute.MinSplit,
		MinLeaf:        cfg.Impute.MinLeaf,
		MaxFeatures:    cfg.Impute.MaxFeatures,
		Workers:        cfg.Impute.Workers,
		Seed:           cfg.Impute.Seed,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("session setup")
	}
	session.Log = log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := session.Run(ctx)
	switch {
	case errors.Is(err, impute.ErrCanceled):
		log.Warn().Int("rounds", res.Rounds).Msg("canceled; keeping last completed round")
	case err != nil:
		log.Fatal().Err(err).Msg("imputation failed")
	}

	if err := writeDataset(cfg, res.Frame); err != nil {
		log.Fatal().Err(err).Msg("write dataset")
	}

	printSummary(res)
	if *verbose {
		printSparklines(res)
	}

	if cfg.PlotDir != "" {
		if err := fplot.Histories(cfg.PlotDir, res); err != nil {
			log.Error().Err(err).Msg("history plots")
		}
	}
	if cfg.MDSPath != "" && res.Distance != nil {
		coords, err := mds.Scale(res.Distance, 2)
		if err != nil {
			log.Error().Err(err).Msg("mds")
		} else if err := fplot.MDSScatter(cfg.MDSPath, coords, missingRows(res)); err != nil {
			log.Error().Err(err).Msg("mds scatter")
		}
	}
}

func readDataset(cfg *Config) (*ff.Frame, error) {
	switch ioType(cfg.Input.Type, cfg.Input.Path) {
	case "csv":
		delim := ','
		if cfg.Input.Delimiter != "" {
			delim = rune(cfg.Input.Delimiter[0])
		}
		rdr, err := csvio.Open(cfg.Input.Path, csvio.ReaderOptions{HasHeader: cfg.Input.HasHeader, Delimiter: delim, SampleRows: 100})
		if err != nil {
			return nil, err
		}
		defer func() { _ = rdr.Close() }()
		schema, err := rdr.InferSchema()
		if err != nil {
			return nil, err
		}
		return rdr.ReadAll(schema)
	case "jsonl":
		jr, err := jsonlio.Open(cfg.Input.Path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = jr.Close() }()
		schema, err := jr.InferSchema(100)
		if err != nil {
			return nil, err
		}
		return jr.ReadAll(schema)
	case "parquet":
		pr, err := parquetio.OpenReader(cfg.Input.Path, 100)
		if err != nil {
			return nil, err
		}
		defer func() { _ = pr.Close() }()
		return pr.ReadAll()
	}
	return nil, fmt.Errorf("unsupported input type %q", cfg.Input.Type)
}

func writeDataset(cfg *Config, f *ff.Frame) error {
	switch ioType(cfg.Output.Type, cfg.Output.Path) {
	case "csv":
		delim := ','
		if cfg.Output.Delimiter != "" {
			delim = rune(cfg.Output.Delimiter[0])
		}
		return csvio.WriteAll(cfg.Output.Path, f, csvio.WriterOptions{Delimiter: delim})
	case "jsonl":
		return jsonlio.WriteAll(cfg.Output.Path, f)
	case "parquet":
		return parquetio.WriteAll(cfg.Output.Path, f)
	}
	return fmt.Errorf("unsupported output type %q", cfg.Output.Type)
}

// printSummary writes a per-column table of missing-cell outcomes.
func printSummary(res *impute.Result) {
	type rowStat struct{ missing, convergent int }
	stats := map[string]*rowStat{}
	for c, h := range res.Histories {
		st, ok := stats[c.Column]
		if !ok {
			st = &rowStat{}
			stats[c.Column] = st
		}
		st.missing++
		if h.Status == impute.Convergent {
			st.convergent++
		}
	}
	cols := make([]string, 0, len(stats))
	for name := range stats {
		cols = append(cols, name)
	}
	sort.Strings(cols)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Column", "Type", "Missing", "Convergent", "Divergent"})
	for _, name := range cols {
		st := stats[name]
		table.Append([]string{
			name,
			res.Types[name].String(),
			strconv.Itoa(st.missing),
			strconv.Itoa(st.convergent),
			strconv.Itoa(st.missing - st.convergent),
		})
	}
	table.SetFooter([]string{"", "", "", "rounds", strconv.Itoa(res.Rounds)})
	table.Render()
}

// printSparklines draws the estimate trajectory of a handful of numerical
// cells, most volatile first.
func printSparklines(res *impute.Result) {
	type hist struct {
		cell impute.Cell
		est  []float64
	}
	var numeric []hist
	for c, h := range res.Histories {
		if h.Type == ff.Numerical && len(h.Estimates) > 1 {
			numeric = append(numeric, hist{cell: c, est: h.Estimates})
		}
	}
	sort.Slice(numeric, func(i, j int) bool {
		if numeric[i].cell.Column != numeric[j].cell.Column {
			return numeric[i].cell.Column < numeric[j].cell.Column
		}
		return numeric[i].cell.Row < numeric[j].cell.Row
	})
	const maxShown = 5
	if len(numeric) > maxShown {
		numeric = numeric[:maxShown]
	}
	for _, h := range numeric {
		fmt.Printf("\n%s[%d]:\n%s\n", h.cell.Column, h.cell.Row,
			asciigraph.Plot(h.est, asciigraph.Height(6)))
	}
}

func missingRows(res *impute.Result) map[int]bool {
	rows := map[int]bool{}
	for c := range res.Histories {
		rows[c.Row] = true
	}
	return rows
}
