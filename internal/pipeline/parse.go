// Package pipeline turns a raw routing-table feed into per-set, sorted,
// deduplicated IPv4 prefix lists.
package pipeline

import (
	"strconv"
	"strings"
)

// Outcome classifies one raw feed line.
type Outcome int

const (
	// OK means the line produced a Record.
	OK Outcome = iota
	// SkipBlank covers empty lines and comments; dropped silently.
	SkipBlank
	// SkipMalformed covers lines with too few fields or a non-numeric ASN
	// field; dropped with a bounded warning.
	SkipMalformed
)

// Record is one (prefix, origin ASN) entry from the feed. It lives only for
// the duration of the filtering step.
type Record struct {
	Prefix string
	ASN    uint32
}

// ParseLine classifies one raw line. Feed lines look like
// "1.2.3.0/24 4134", possibly with extra trailing fields, which are ignored.
// No classification outcome is ever fatal to a run.
func ParseLine(line string) (Record, Outcome) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] == '#' {
		return Record{}, SkipBlank
	}
	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return Record{}, SkipMalformed
	}
	asn, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return Record{}, SkipMalformed
	}
	return Record{Prefix: fields[0], ASN: uint32(asn)}, OK
}

// LooksIPv4 is the syntactic address-family check applied to feed prefixes:
// a period and no colon. It deliberately does not parse the CIDR; identity
// of a prefix is its exact feed spelling.
func LooksIPv4(prefix string) bool {
	return strings.Contains(prefix, ".") && !strings.Contains(prefix, ":")
}
