package pipeline

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/bgplists/prefixgen/internal/config"
	"github.com/bgplists/prefixgen/internal/feed"
)

const (
	// Cap on per-line malformed warnings. A feed that switched format or
	// mixes address families can be malformed for thousands of lines in a
	// row; after the cap the run only counts them.
	maxMalformedWarnings = 100

	progressEvery = 100000
)

// Aggregator feeds every record of one pass to every target set it was built
// with, so overlapping ASN memberships land the same prefix in several
// result collections.
type Aggregator struct {
	sets    []config.TargetSet
	byASN   map[uint32][]int
	results []map[string]struct{}

	malformedWarned int
}

// Stats summarizes one completed pass over a feed.
type Stats struct {
	Lines     int
	Records   int
	Malformed int
	Matched   int
}

func NewAggregator(sets []config.TargetSet) *Aggregator {
	a := &Aggregator{
		sets:    sets,
		byASN:   make(map[uint32][]int),
		results: make([]map[string]struct{}, len(sets)),
	}
	for i, set := range sets {
		a.results[i] = make(map[string]struct{})
		for _, asn := range set.ASNs {
			a.byASN[asn] = append(a.byASN[asn], i)
		}
	}
	return a
}

// Add offers one record to every interested set. Insertion has set
// semantics: a prefix already collected for a set is a no-op. Reports
// whether any set admitted the record.
func (a *Aggregator) Add(rec Record) bool {
	indexes, ok := a.byASN[rec.ASN]
	if !ok || !LooksIPv4(rec.Prefix) {
		return false
	}
	for _, i := range indexes {
		a.results[i][rec.Prefix] = struct{}{}
	}
	return true
}

// Run consumes r to end-of-stream. Malformed lines never abort the pass;
// only a read error from the underlying stream does.
func (a *Aggregator) Run(r io.Reader) (Stats, error) {
	var stats Stats
	scanner := feed.Lines(r)
	for scanner.Scan() {
		stats.Lines++
		if stats.Lines%progressEvery == 0 {
			log.Info("processing feed", "lines", stats.Lines)
		}

		rec, outcome := ParseLine(scanner.Text())
		switch outcome {
		case SkipBlank:
			continue
		case SkipMalformed:
			stats.Malformed++
			if a.malformedWarned < maxMalformedWarnings {
				a.malformedWarned++
				log.Warn("skipping malformed feed line", "line", scanner.Text())
				if a.malformedWarned == maxMalformedWarnings {
					log.Warn("malformed line warning limit reached, suppressing further warnings",
						"limit", maxMalformedWarnings)
				}
			}
			continue
		}

		stats.Records++
		if a.Add(rec) {
			stats.Matched++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read feed: %w", err)
	}
	if stats.Malformed > 0 {
		log.Warn("feed contained malformed lines", "count", stats.Malformed)
	}
	return stats, nil
}

// SetResult pairs a target set with its collected prefixes, sorted in
// ascending lexicographic string order. The ordering is byte-wise on the
// prefix text, not numeric: "10.0.0.0/8" sorts before "2.0.0.0/8". That is
// the long-standing artifact order and consumers diff against it.
type SetResult struct {
	Set      config.TargetSet
	Prefixes []string
}

// Results snapshots every set's collection in the aggregator's set order.
func (a *Aggregator) Results() []SetResult {
	out := make([]SetResult, len(a.sets))
	for i, set := range a.sets {
		prefixes := make([]string, 0, len(a.results[i]))
		for prefix := range a.results[i] {
			prefixes = append(prefixes, prefix)
		}
		sort.Strings(prefixes)
		out[i] = SetResult{Set: set, Prefixes: prefixes}
	}
	return out
}
