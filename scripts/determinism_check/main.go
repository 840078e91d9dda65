package main

import (
	"bytes"
	"encoding/json"
	"errors"
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
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type comparison struct {
	Target      target
	FirstStatus int
	FreshStatus int
	StatusMatch bool
	DataMatch   bool
	Error       error
	DurationHit time.Duration
	DurationRaw time.Duration
}

// Fetches every target twice, once possibly from cache and once after an
// invalidation, and fails when the data payloads differ.
func main() {
	var (
		base        string
		token       string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&token, "token", os.Getenv("DAMP_TOKEN"), "admin bearer token")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "determinism_check", "targets.json"), "Path to JSON targets file")
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
		comp := compareTarget(client, base, token, t)
		if comp.Error != nil || !comp.StatusMatch || !comp.DataMatch {
			if t.Critical {
				breaking++
			} else {
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
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func compareTarget(client *http.Client, base, token string, tgt target) comparison {
	comp := comparison{Target: tgt}

	firstStatus, firstBody, firstDur, err := fetch(client, http.MethodGet, base, tgt.Path, token)
	if err != nil {
		comp.Error = fmt.Errorf("first request failed: %w", err)
		return comp
	}
	if status, _, _, err := fetch(client, http.MethodPost, base, "/analytics/cache/invalidate", token); err != nil || status != http.StatusNoContent {
		comp.Error = fmt.Errorf("cache invalidation failed: status %d: %v", status, err)
		return comp
	}
	freshStatus, freshBody, freshDur, err := fetch(client, http.MethodGet, base, tgt.Path, token)
	if err != nil {
		comp.Error = fmt.Errorf("fresh request failed: %w", err)
		return comp
	}

	comp.FirstStatus = firstStatus
	comp.FreshStatus = freshStatus
	comp.DurationHit = firstDur
	comp.DurationRaw = freshDur
	comp.StatusMatch = firstStatus == freshStatus
	comp.DataMatch = dataEqual(firstBody, freshBody)
	return comp
}

func fetch(client *http.Client, method, base, path, token string) (int, []byte, time.Duration, error) {
	if client == nil {
		return 0, nil, 0, errors.New("nil client")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, 0, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// dataEqual compares envelopes while ignoring meta, which carries timings and cache flags.
func dataEqual(a, b []byte) bool {
	var aj, bj map[string]interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	delete(aj, "meta")
	delete(bj, "meta")
	return reflect.DeepEqual(aj, bj)
}

func printReport(results []comparison) {
	fmt.Println("Determinism Check Report")
	fmt.Println("========================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.DataMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] GET %s\n", status, res.Target.Path)
		fmt.Printf("  First: %d (%s)\n", res.FirstStatus, res.DurationHit)
		fmt.Printf("  Fresh: %d (%s)\n", res.FreshStatus, res.DurationRaw)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Status match: %t | Data match: %t | Critical: %t\n", res.StatusMatch, res.DataMatch, res.Target.Critical)
		}
	}
}
