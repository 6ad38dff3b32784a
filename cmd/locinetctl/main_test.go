package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"locinet/internal/model"
	"locinet/internal/stats"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})
	return workdir
}

func writeInputs(t *testing.T, dir string) (string, string) {
	t.Helper()
	lociPath := filepath.Join(dir, "loci.gmt")
	edgesPath := filepath.Join(dir, "interactions.txt")
	loci := "L1\tchr1\ta\tb\tc\n" +
		"L2\tchr2\tx\ty\tz\n"
	edges := "a\tx\t1.0\n" +
		"b\ty\t2.0\n" +
		"c\tz\t0.1\n"
	if err := os.WriteFile(lociPath, []byte(loci), 0o644); err != nil {
		t.Fatalf("write loci: %v", err)
	}
	if err := os.WriteFile(edgesPath, []byte(edges), 0o644); err != nil {
		t.Fatalf("write interactions: %v", err)
	}
	return lociPath, edgesPath
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.Bytes()
	}()
	runErr := fn()
	_ = w.Close()
	os.Stdout = orig
	return string(<-done), runErr
}

func TestRunCommandWritesArtifactsAndQueriesThem(t *testing.T) {
	workdir := chdirTemp(t)
	lociPath, edgesPath := writeInputs(t, workdir)
	ctx := context.Background()

	out, err := captureStdout(t, func() error {
		return run(ctx, []string{
			"run",
			"--store", "memory",
			"--loci", lociPath,
			"--interactions", edgesPath,
			"--run-id", "cli-run",
			"--pop", "60",
			"--gens", "30",
			"--bins", "2",
			"--null-trials", "20",
			"--seed", "11",
			"--workers", "2",
			"--log-level", "error",
		})
	})
	if err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out, "run_id=cli-run") || !strings.Contains(out, "p_value=") {
		t.Fatalf("unexpected run output: %q", out)
	}
	if !strings.Contains(out, "locus=L1 rank=1") {
		t.Fatalf("expected per-locus genes in output: %q", out)
	}

	entries, err := stats.ListRunIndex(runsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "cli-run" {
		t.Fatalf("unexpected run index: %+v", entries)
	}
	for _, file := range []string{
		"config.json",
		"density_history.json",
		"generation_diagnostics.json",
		"top_subnetworks.json",
		"gene_scores.json",
		"significance.json",
	} {
		if _, err := os.Stat(filepath.Join(runsDir, "cli-run", file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}

	out, err = captureStdout(t, func() error {
		return run(ctx, []string{"density", "--store", "memory", "--latest", "--json"})
	})
	if err != nil {
		t.Fatalf("density command: %v", err)
	}
	var history []float64
	if err := json.Unmarshal([]byte(out), &history); err != nil {
		t.Fatalf("decode density history: %v\n%s", err, out)
	}
	if len(history) == 0 || history[len(history)-1] < history[0] {
		t.Fatalf("unexpected density history: %v", history)
	}

	out, err = captureStdout(t, func() error {
		return run(ctx, []string{"top", "--store", "memory", "--run-id", "cli-run", "--json", "--limit", "2"})
	})
	if err != nil {
		t.Fatalf("top command: %v", err)
	}
	var top []model.RankedSubnetworkRecord
	if err := json.Unmarshal([]byte(out), &top); err != nil {
		t.Fatalf("decode top subnetworks: %v\n%s", err, out)
	}
	if len(top) == 0 || len(top) > 2 || top[0].Rank != 1 {
		t.Fatalf("unexpected top subnetworks: %+v", top)
	}

	out, err = captureStdout(t, func() error {
		return run(ctx, []string{"genes", "--store", "memory", "--latest", "--per-locus", "1"})
	})
	if err != nil {
		t.Fatalf("genes command: %v", err)
	}
	if got := strings.Count(out, "gene="); got != 2 {
		t.Fatalf("expected one gene per locus, got %d lines: %q", got, out)
	}

	out, err = captureStdout(t, func() error {
		return run(ctx, []string{"pvalue", "--store", "memory", "--latest", "--json"})
	})
	if err != nil {
		t.Fatalf("pvalue command: %v", err)
	}
	var significance model.SignificanceRecord
	if err := json.Unmarshal([]byte(out), &significance); err != nil {
		t.Fatalf("decode significance: %v\n%s", err, out)
	}
	if significance.Trials != 20 || significance.PValue < 0 || significance.PValue > 1 {
		t.Fatalf("unexpected significance: %+v", significance)
	}

	for _, args := range [][]string{
		{"diagnostics", "--store", "memory", "--latest"},
		{"runs"},
	} {
		out, err = captureStdout(t, func() error { return run(ctx, args) })
		if err != nil {
			t.Fatalf("%s command: %v", args[0], err)
		}
		if strings.TrimSpace(out) == "" {
			t.Fatalf("%s command printed nothing", args[0])
		}
	}

	exportDir := filepath.Join(workdir, "out")
	out, err = captureStdout(t, func() error {
		return run(ctx, []string{"export", "--latest", "--out", exportDir})
	})
	if err != nil {
		t.Fatalf("export command: %v", err)
	}
	if !strings.Contains(out, "exported run_id=cli-run") {
		t.Fatalf("unexpected export output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "cli-run", "top_subnetworks.json")); err != nil {
		t.Fatalf("expected exported top subnetworks: %v", err)
	}
}

func TestRunCommandFromConfigWithFlagOverride(t *testing.T) {
	workdir := chdirTemp(t)
	writeInputs(t, workdir)
	configPath := filepath.Join(workdir, "run.yaml")
	config := "loci: loci.gmt\n" +
		"interactions: interactions.txt\n" +
		"population: 30\n" +
		"max_generations: 10\n" +
		"skip_significance: true\n" +
		"seed: 3\n"
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := captureStdout(t, func() error {
		return run(context.Background(), []string{
			"run",
			"--store", "memory",
			"--config", configPath,
			"--run-id", "from-config",
			"--log-level", "error",
		})
	})
	if err != nil {
		t.Fatalf("run command: %v", err)
	}

	cfg, ok, err := stats.ReadRunConfig(runsDir, "from-config")
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%v err=%v", ok, err)
	}
	if cfg.PopulationSize != 30 || cfg.Seed != 3 || !cfg.SkipSignificance {
		t.Fatalf("config values not applied: %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(runsDir, "from-config", "significance.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no significance artifact when skipped, got %v", err)
	}
}

func TestCommandValidation(t *testing.T) {
	chdirTemp(t)
	ctx := context.Background()

	if err := run(ctx, nil); err == nil || !strings.Contains(err.Error(), "usage:") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(ctx, []string{"evolve"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if err := run(ctx, []string{"run", "--store", "memory"}); err == nil {
		t.Fatal("expected missing inputs error")
	}
	if err := run(ctx, []string{"top", "--store", "memory"}); err == nil || !strings.Contains(err.Error(), "--run-id or --latest") {
		t.Fatalf("expected query selector error, got %v", err)
	}
	if err := run(ctx, []string{"density", "--store", "memory", "--run-id", "x", "--latest"}); err == nil {
		t.Fatal("expected mutually exclusive selector error")
	}
	if err := run(ctx, []string{"export"}); err == nil {
		t.Fatal("expected export selector error")
	}
	if err := run(ctx, []string{"runs", "--limit", "0"}); err == nil {
		t.Fatal("expected limit error")
	}
	if err := run(ctx, []string{"pvalue", "--store", "memory", "--latest"}); err == nil {
		t.Fatal("expected no runs error")
	}
}

func TestInitAndResetCommands(t *testing.T) {
	chdirTemp(t)
	out, err := captureStdout(t, func() error {
		return run(context.Background(), []string{"init", "--store", "memory"})
	})
	if err != nil || !strings.Contains(out, "initialized store=memory") {
		t.Fatalf("init: out=%q err=%v", out, err)
	}
	out, err = captureStdout(t, func() error {
		return run(context.Background(), []string{"reset", "--store", "memory"})
	})
	if err != nil || !strings.Contains(out, "reset store=memory") {
		t.Fatalf("reset: out=%q err=%v", out, err)
	}
}
