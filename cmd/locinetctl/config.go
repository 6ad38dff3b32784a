package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"locinet/pkg/locinet"
)

// loadRunRequestFromConfig reads a run config in JSON or YAML, picked by file
// extension. Keys use snake_case; unknown keys are ignored.
func loadRunRequestFromConfig(path string) (locinet.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return locinet.RunRequest{}, err
	}
	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return locinet.RunRequest{}, err
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return locinet.RunRequest{}, err
		}
	}

	var req locinet.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["loci"]); ok {
		req.LociPath = resolveConfigPath(path, v)
	}
	if v, ok := asString(raw["interactions"]); ok {
		req.InteractionsPath = resolveConfigPath(path, v)
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["max_generations"]); ok {
		req.MaxGenerations = v
	}
	if v, ok := asFloat64(raw["convergence_threshold"]); ok {
		req.ConvergenceThreshold = v
	}
	if v, ok := asInt(raw["mutation_rate"]); ok {
		req.MutationRate = &v
	}
	if v, ok := asString(raw["selection"]); ok {
		req.Selection = v
	}
	if v, ok := asFloat64(raw["selection_scale"]); ok {
		req.SelectionScale = v
	}
	if v, ok := asInt(raw["tournament_size"]); ok {
		req.TournamentSize = v
	}
	if v, ok := asString(raw["bin_mode"]); ok {
		req.BinMode = v
	}
	if v, ok := asInt(raw["bins"]); ok {
		req.Bins = v
	}
	if v, ok := asInt(raw["null_trials"]); ok {
		req.NullTrials = v
	}
	if v, ok := asBool(raw["skip_significance"]); ok {
		req.SkipSignificance = v
	}
	if v, ok := asInt(raw["top_subnetworks"]); ok {
		req.TopSubnetworks = v
	}
	if v, ok := asInt(raw["genes_per_locus"]); ok {
		req.GenesPerLocus = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	return req, nil
}

// resolveConfigPath makes input paths in a config file relative to the
// config file itself.
func resolveConfigPath(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies only the flags that were set explicitly on the
// command line on top of a config-file request.
func overrideFromFlags(req *locinet.RunRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "loci":
			req.LociPath = v.(string)
		case "interactions":
			req.InteractionsPath = v.(string)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.MaxGenerations = v.(int)
		case "threshold":
			req.ConvergenceThreshold = v.(float64)
		case "mutation-rate":
			rate := v.(int)
			req.MutationRate = &rate
		case "selection":
			req.Selection = v.(string)
		case "selection-scale":
			req.SelectionScale = v.(float64)
		case "tournament-size":
			req.TournamentSize = v.(int)
		case "bin-mode":
			req.BinMode = v.(string)
		case "bins":
			req.Bins = v.(int)
		case "null-trials":
			req.NullTrials = v.(int)
		case "skip-significance":
			req.SkipSignificance = v.(bool)
		case "top":
			req.TopSubnetworks = v.(int)
		case "genes-per-locus":
			req.GenesPerLocus = v.(int)
		case "workers":
			req.Workers = v.(int)
		case "seed":
			req.Seed = v.(int64)
		}
	}
}

func loadOrDefaultRunRequest(configPath string) (locinet.RunRequest, error) {
	if configPath == "" {
		return locinet.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return locinet.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
