// Command prefixgen downloads a BGP routing-table feed, filters IPv4
// prefixes announced by the configured ASN sets, and rewrites one sorted,
// deduplicated artifact file per set. It is meant to run unattended from a
// scheduler; a failed or empty run exits non-zero so automation notices.
package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bgplists/prefixgen/internal/config"
	"github.com/bgplists/prefixgen/internal/feed"
	"github.com/bgplists/prefixgen/internal/output"
	"github.com/bgplists/prefixgen/internal/pipeline"
)

const perSetFetchLimit = 4

var errAllSetsEmpty = errors.New("every target set produced an empty result")

// swapped out by tests that need controlled timestamps
var timeNow = time.Now

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using process environment")
	}

	configPath := pflag.StringP("config", "c", configDefault(), "path to TOML configuration")
	fetchPerSet := pflag.Bool("fetch-per-set", false, "fetch the feed once per target set instead of sharing one pass")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug logging")
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if ua := os.Getenv("PREFIXGEN_USER_AGENT"); ua != "" {
		cfg.Settings.UserAgent = ua
	}

	start := time.Now()
	client := feed.NewClient(cfg.Settings.UserAgent, cfg.FetchTimeout())
	ctx := context.Background()

	if *fetchPerSet {
		err = runPerSet(ctx, client, cfg)
	} else {
		err = runShared(ctx, client, cfg)
	}
	if err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
	log.Info("run completed", "elapsed", time.Since(start).Round(time.Millisecond))
}

func configDefault() string {
	if path := os.Getenv("PREFIXGEN_CONFIG"); path != "" {
		return path
	}
	return config.DefaultPath
}

// runShared fetches the feed once and filters it into every target set in a
// single pass. A fetch failure aborts the whole run since every set depends
// on the same stream.
func runShared(ctx context.Context, client *feed.Client, cfg *config.Config) error {
	sets := cfg.TargetSets()
	log.Info("fetching feed", "url", cfg.Settings.BGPURL, "sets", len(sets))

	body, err := client.Open(ctx, cfg.Settings.BGPURL)
	if err != nil {
		return err
	}
	defer body.Close()

	agg := pipeline.NewAggregator(sets)
	stats, err := agg.Run(body)
	if err != nil {
		return err
	}
	log.Info("feed processed",
		"lines", stats.Lines, "records", stats.Records,
		"malformed", stats.Malformed, "matched", stats.Matched)

	written := 0
	for _, result := range agg.Results() {
		if err := output.Write(result.Set, cfg.Settings.BGPURL, result.Prefixes, timeNow()); err != nil {
			return err
		}
		if len(result.Prefixes) > 0 {
			written++
		}
	}
	if written == 0 {
		return errAllSetsEmpty
	}
	return nil
}

// runPerSet gives every target set its own fetch and pipeline. The sets own
// disjoint collections and distinct artifacts, so the pipelines run in
// parallel and a failure in one never touches its siblings: every pipeline
// runs to completion on the parent context, failures are collected, and the
// run exits non-zero if any pipeline failed.
func runPerSet(ctx context.Context, client *feed.Client, cfg *config.Config) error {
	var (
		written atomic.Int64
		mu      sync.Mutex
		errs    []error
	)

	var g errgroup.Group
	g.SetLimit(perSetFetchLimit)
	for _, set := range cfg.TargetSets() {
		set := set
		g.Go(func() error {
			if err := runSet(ctx, client, cfg, set, &written); err != nil {
				log.Error("pipeline failed", "set", set.Name, "error", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if written.Load() == 0 {
		return errAllSetsEmpty
	}
	return nil
}

func runSet(ctx context.Context, client *feed.Client, cfg *config.Config, set config.TargetSet, written *atomic.Int64) error {
	log.Info("fetching feed", "url", cfg.Settings.BGPURL, "set", set.Name)
	body, err := client.Open(ctx, cfg.Settings.BGPURL)
	if err != nil {
		return err
	}
	defer body.Close()

	agg := pipeline.NewAggregator([]config.TargetSet{set})
	stats, err := agg.Run(body)
	if err != nil {
		return err
	}
	log.Info("feed processed", "set", set.Name,
		"lines", stats.Lines, "matched", stats.Matched)

	result := agg.Results()[0]
	if err := output.Write(result.Set, cfg.Settings.BGPURL, result.Prefixes, timeNow()); err != nil {
		return err
	}
	if len(result.Prefixes) > 0 {
		written.Add(1)
	}
	return nil
}
