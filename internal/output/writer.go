// Package output serializes filtered prefix lists into their artifact files.
package output

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thcyron/cidrmerge"

	"github.com/bgplists/prefixgen/internal/config"
)

const (
	disclaimer = "# WARNING: ASN Geo-location is not always precise. This list is based on ASN registration."
	separator  = "#-----------------------------------------------------------"
)

// Write replaces the target set's artifact with the given prefixes under the
// standard header block. An empty prefix list is a no-op so that a previous
// artifact survives a broken or empty feed. Sets with merged enabled also
// get an <output>.merged companion with adjacent networks collapsed.
func Write(set config.TargetSet, sourceURL string, prefixes []string, now time.Time) error {
	if len(prefixes) == 0 {
		log.Warn("no prefixes to write, leaving artifact untouched",
			"set", set.Name, "output", set.Output)
		return nil
	}

	if err := writeList(set.Output, header(set, sourceURL, now, false), prefixes); err != nil {
		return err
	}
	log.Info("wrote artifact", "set", set.Name, "output", set.Output, "prefixes", len(prefixes))

	if !set.Merged {
		return nil
	}
	merged := mergePrefixes(prefixes)
	path := set.Output + ".merged"
	if err := writeList(path, header(set, sourceURL, now, true), merged); err != nil {
		return err
	}
	log.Info("wrote merged artifact", "set", set.Name, "output", path, "networks", len(merged))
	return nil
}

func header(set config.TargetSet, sourceURL string, now time.Time, merged bool) []string {
	title := fmt.Sprintf("# IPv4 CIDRs for ASNs %s (%s)", set.ASNList(), set.Name)
	if merged {
		title += " [merged networks]"
	}
	return []string{
		title,
		fmt.Sprintf("# Data sourced from %s", sourceURL),
		fmt.Sprintf("# Last updated: %s", now.UTC().Format(time.RFC3339)),
		disclaimer,
		separator,
	}
}

func writeList(path string, header, lines []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	writer := bufio.NewWriter(file)
	for _, line := range header {
		if _, err := writer.WriteString(line + "\n"); err != nil {
			file.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	for _, line := range lines {
		if _, err := writer.WriteString(line + "\n"); err != nil {
			file.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// mergePrefixes collapses adjacent and overlapping networks. Prefixes that
// do not parse as CIDR are kept out of the merged list only; the primary
// artifact carries the feed's exact spelling regardless.
func mergePrefixes(prefixes []string) []string {
	networks := make([]*net.IPNet, 0, len(prefixes))
	for _, prefix := range prefixes {
		_, network, err := net.ParseCIDR(prefix)
		if err != nil {
			log.Debug("prefix not mergeable", "prefix", prefix, "error", err)
			continue
		}
		networks = append(networks, network)
	}
	merged := cidrmerge.Merge(networks)
	out := make([]string, len(merged))
	for i, network := range merged {
		out[i] = network.String()
	}
	sort.Strings(out)
	return out
}
