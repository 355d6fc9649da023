// Package adoption models the audited hierarchy (organization, project,
// repository, pipeline), classifies resolved template references against
// the tracked set, and aggregates compliance bottom-up under a
// configurable threshold policy.
package adoption

import (
	"fmt"
	"math"
	"strings"
)

// Mode is the threshold policy applied when folding child compliance
// into a parent verdict.
type Mode int

const (
	// ModeAny: compliant when at least one eligible child is compliant.
	ModeAny Mode = iota
	// ModeMajority: compliant when at least half of the eligible
	// children are compliant.
	ModeMajority
	// ModeAll: compliant when every eligible child is compliant.
	ModeAll
)

// ParseMode converts a string to a Mode.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(value) {
	case "any":
		return ModeAny, nil
	case "majority":
		return ModeMajority, nil
	case "all":
		return ModeAll, nil
	}
	return 0, fmt.Errorf("invalid compliance mode %q: must be one of: any, majority, all", value)
}

func (m Mode) String() string {
	switch m {
	case ModeAny:
		return "any"
	case ModeMajority:
		return "majority"
	case ModeAll:
		return "all"
	}
	return "unknown"
}

// Compliant is the pure threshold predicate. A node with no eligible
// children is never compliant.
func Compliant(compliant, total int, mode Mode) bool {
	if total == 0 {
		return false
	}
	switch mode {
	case ModeAny:
		return compliant >= 1
	case ModeMajority:
		return float64(compliant)/float64(total) >= 0.5
	case ModeAll:
		return compliant == total
	}
	return false
}

// Stats holds per-node adoption counts. The rate is always recomputed
// from the counts, never stored.
type Stats struct {
	Compliant int
	Total     int
}

// Rate returns the adoption rate in [0,1], zero when Total is zero.
func (s Stats) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Compliant) / float64(s.Total)
}

// Percent returns the rate as a percentage rounded half-up to two
// decimal places.
func (s Stats) Percent() float64 {
	return math.Floor(s.Rate()*10000+0.5) / 100
}

func (s Stats) String() string {
	return fmt.Sprintf("%d/%d", s.Compliant, s.Total)
}
