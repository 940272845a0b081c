// Command metric_parity replays a list of metric queries against both the
// legacy analytics backend and this engine and reports result divergence.
// Volatile fields (cache flags, computation timestamps, response meta) are
// stripped before comparison so only metric semantics are diffed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

type target struct {
	MetricID string `json:"metric_id"`
	Query    string `json:"query"`
	Critical bool   `json:"critical"`
}

type targetsFile struct {
	Targets []target `json:"targets"`
}

type comparison struct {
	Target         target
	LegacyStatus   int
	EngineStatus   int
	StatusMatch    bool
	BodyMatch      bool
	Error          error
	DurationEngine time.Duration
	DurationLegacy time.Duration
}

// volatileKeys differ legitimately between backends and between runs.
var volatileKeys = map[string]bool{
	"meta":        true,
	"computed_at": true,
	"from_cache":  true,
}

func main() {
	var (
		engineBase  string
		legacyBase  string
		token       string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&engineBase, "engine-base", "http://localhost:8080", "Engine base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:8501", "Legacy analytics backend base URL")
	flag.StringVar(&token, "token", os.Getenv("PARITY_TOKEN"), "Bearer token used against both backends")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "metric_parity", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)

	for _, t := range targets {
		comp := compareTarget(client, engineBase, legacyBase, token, t)
		if comp.Error != nil || !comp.StatusMatch || !comp.BodyMatch {
			if t.Critical {
				breaking++
			} else if comp.Error == nil {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg targetsFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func compareTarget(client *http.Client, engineBase, legacyBase, token string, tgt target) comparison {
	comp := comparison{Target: tgt}

	engineBody, engineStatus, engineDur, err := resolve(client, engineBase, token, tgt)
	if err != nil {
		comp.Error = fmt.Errorf("engine request failed: %w", err)
		return comp
	}
	legacyBody, legacyStatus, legacyDur, err := resolve(client, legacyBase, token, tgt)
	if err != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", err)
		return comp
	}

	comp.EngineStatus = engineStatus
	comp.LegacyStatus = legacyStatus
	comp.DurationEngine = engineDur
	comp.DurationLegacy = legacyDur
	comp.StatusMatch = engineStatus == legacyStatus
	comp.BodyMatch = bodiesEqual(engineBody, legacyBody)
	return comp
}

func resolve(client *http.Client, base, token string, tgt target) ([]byte, int, time.Duration, error) {
	url := strings.TrimRight(base, "/") + "/api/v1/metrics/" + tgt.MetricID
	if tgt.Query != "" {
		url += "?" + tgt.Query
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, err
	}
	return body, resp.StatusCode, time.Since(start), nil
}

func bodiesEqual(a, b []byte) bool {
	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	normalize(&aj)
	normalize(&bj)
	return reflect.DeepEqual(aj, bj)
}

// normalize strips volatile fields and collapses whole-number floats so the
// two backends' JSON encodings compare structurally.
func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k := range val {
			if volatileKeys[k] {
				delete(val, k)
			}
		}
		for k, v2 := range val {
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func printReport(results []comparison) {
	fmt.Println("Metric Parity Report")
	fmt.Println("====================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s?%s\n", status, res.Target.MetricID, res.Target.Query)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Engine: %d (%s) | Legacy: %d (%s)\n", res.EngineStatus, res.DurationEngine, res.LegacyStatus, res.DurationLegacy)
		fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
	}
}
