package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"sparsekit/internal/datafeed"
	"sparsekit/internal/modifier"
	"sparsekit/internal/sensitivity"
	"sparsekit/internal/storage"
	sparseapi "sparsekit/pkg/sparsekit"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "approx":
		return runApprox(ctx, args[1:])
	case "oneshot":
		return runOneShot(ctx, args[1:])
	case "report":
		return runReport(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "model-info":
		return runModelInfo(ctx, args[1:])
	case "recipe":
		return runRecipe(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runApprox(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("approx", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: "+storage.BackendMemory+"|"+storage.BackendSQLite)
	dbPath := fs.String("db-path", "sparsekit.db", "sqlite database path")
	reportsDir := fs.String("reports-dir", "reports", "directory for report artifacts")
	modelPath := fs.String("model", "", "model spec JSON path")
	runID := fs.String("run-id", "", "run id (generated when empty)")
	levelsFlag := fs.String("levels", "", "comma separated sparsity levels")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return usageError("approx requires -model")
	}

	net, modelName, err := loadNetworkFromConfig(*modelPath)
	if err != nil {
		return err
	}
	levels, err := parseLevels(*levelsFlag)
	if err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *reportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.RunApproxSensitivity(ctx, sparseapi.ApproxRequest{
		RunID:     *runID,
		ModelName: modelName,
		Model:     net,
		Levels:    levels,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
	printAnalysis(summary.Analysis)
	return nil
}

func runOneShot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("oneshot", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: "+storage.BackendMemory+"|"+storage.BackendSQLite)
	dbPath := fs.String("db-path", "sparsekit.db", "sqlite database path")
	reportsDir := fs.String("reports-dir", "reports", "directory for report artifacts")
	modelPath := fs.String("model", "", "model spec JSON path")
	dataPath := fs.String("data", "", "dataset CSV path")
	features := fs.Int("features", 0, "feature columns per CSV row")
	targets := fs.Int("targets", 1, "target columns per CSV row")
	batchSize := fs.Int("batch-size", 32, "rows per batch")
	batchLimit := fs.Int("batch-limit", 0, "max cached batches, 0 for all")
	steps := fs.Int("steps", 5, "batches scored per layer and level")
	maxSteps := fs.Int("max-steps", 0, "total forward pass cap, 0 for none")
	lossName := fs.String("loss", "", "loss function: mse|cross-entropy")
	runID := fs.String("run-id", "", "run id (generated when empty)")
	levelsFlag := fs.String("levels", "", "comma separated sparsity levels")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" || *dataPath == "" {
		return usageError("oneshot requires -model and -data")
	}

	net, modelName, err := loadNetworkFromConfig(*modelPath)
	if err != nil {
		return err
	}
	levels, err := parseLevels(*levelsFlag)
	if err != nil {
		return err
	}
	source, err := datafeed.NewCSVSource(*dataPath, *features, *targets, *batchSize)
	if err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *reportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("measuring %d layers, %s weights\n",
			len(net.PrunableLayers()), humanize.Comma(int64(net.ParamCount())))
	}

	summary, err := client.RunOneShotSensitivity(ctx, sparseapi.OneShotRequest{
		RunID:               *runID,
		ModelName:           modelName,
		Model:               net,
		Levels:              levels,
		Source:              source,
		BatchLimit:          *batchLimit,
		StepsPerMeasurement: *steps,
		MaxSteps:            *maxSteps,
		LossName:            *lossName,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
	printAnalysis(summary.Analysis)
	return nil
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: "+storage.BackendMemory+"|"+storage.BackendSQLite)
	dbPath := fs.String("db-path", "sparsekit.db", "sqlite database path")
	reportsDir := fs.String("reports-dir", "reports", "directory for report artifacts")
	runID := fs.String("run-id", "", "run id to report")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("report requires -run-id")
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *reportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	record, ok, err := client.GetAnalysis(ctx, *runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("analysis not found: %s", *runID)
	}

	fmt.Printf("run_id=%s kind=%s created=%s\n", record.RunID, record.Kind, record.CreatedAt.Format("2006-01-02 15:04:05"))
	printAnalysis(&sensitivity.Analysis{LossKey: record.LossKey, Results: record.Results})
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: "+storage.BackendMemory+"|"+storage.BackendSQLite)
	dbPath := fs.String("db-path", "sparsekit.db", "sqlite database path")
	reportsDir := fs.String("reports-dir", "reports", "directory for report artifacts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(ctx, *storeKind, *dbPath, *reportsDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	ids, err := client.ListAnalyses(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runModelInfo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("model-info", flag.ContinueOnError)
	modelPath := fs.String("model", "", "model spec JSON path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return usageError("model-info requires -model")
	}

	net, modelName, err := loadNetworkFromConfig(*modelPath)
	if err != nil {
		return err
	}

	fmt.Printf("model=%s layers=%d params=%s\n",
		modelName, len(net.Layers), humanize.Comma(int64(net.ParamCount())))
	for i, layer := range net.Layers {
		params := 0
		if layer.Weights != nil {
			params = layer.Weights.Len()
		}
		prunable := " "
		if layer.Prunable() {
			prunable = "*"
		}
		fmt.Printf("%s %2d %-16s %-8s %s params\n",
			prunable, i, layer.Name, layer.OpType, humanize.Comma(int64(params)))
	}
	return nil
}

func runRecipe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recipe", flag.ContinueOnError)
	recipePath := fs.String("recipe", "", "pruning recipe YAML path")
	modelPath := fs.String("model", "", "model spec JSON path, optional for param matching")
	stepsPerEpoch := fs.Int("steps-per-epoch", 100, "optimizer steps per epoch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *recipePath == "" {
		return usageError("recipe requires -recipe")
	}

	recipe, err := modifier.LoadRecipe(*recipePath)
	if err != nil {
		return err
	}

	var available []string
	if *modelPath != "" {
		net, _, err := loadNetworkFromConfig(*modelPath)
		if err != nil {
			return err
		}
		for _, layer := range net.PrunableLayers() {
			available = append(available, layer.Name+".weight")
		}
	}

	for i := range recipe.PruningModifiers {
		m := &recipe.PruningModifiers[i]
		if _, err := m.Schedule(*stepsPerEpoch); err != nil {
			return err
		}
		fmt.Printf("pruning[%d]: sparsity %g -> %g, steps %d..%d\n",
			i, m.InitSparsity, m.FinalSparsity,
			epochStep(m.StartEpoch, *stepsPerEpoch), epochStep(m.EndEpoch, *stepsPerEpoch))
		if available != nil {
			matched, err := modifier.MatchParams(m.Params, available)
			if err != nil {
				return err
			}
			fmt.Printf("  params: %s\n", strings.Join(matched, ", "))
		}
	}
	for i := range recipe.ConstantModifiers {
		m := &recipe.ConstantModifiers[i]
		if _, err := m.Schedule(*stepsPerEpoch); err != nil {
			return err
		}
		fmt.Printf("constant[%d]: epochs %g..%g\n", i, m.StartEpoch, m.EndEpoch)
	}
	return nil
}

func newClient(ctx context.Context, storeKind, dbPath, reportsDir string) (*sparseapi.Client, error) {
	client, err := sparseapi.New(sparseapi.Options{
		StoreKind:  storeKind,
		DBPath:     dbPath,
		ReportsDir: reportsDir,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func printAnalysis(analysis *sensitivity.Analysis) {
	for _, result := range analysis.Results {
		parts := make([]string, 0, len(result.Measurements))
		for _, m := range result.Measurements {
			parts = append(parts, fmt.Sprintf("%g:%.6g", m.Sparsity, m.Mean()))
		}
		fmt.Printf("  %-24s %s\n", result.Param, strings.Join(parts, " "))
	}
}

func parseLevels(raw string) ([]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	fields := strings.Split(raw, ",")
	levels := make([]float64, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("parse level %q: %w", field, err)
		}
		levels = append(levels, value)
	}
	sort.Float64s(levels)
	return levels, nil
}

func epochStep(epoch float64, stepsPerEpoch int) int {
	return int(epoch*float64(stepsPerEpoch) + 0.5)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: sparsekitctl <approx|oneshot|report|runs|model-info|recipe> [flags]", msg)
}
