package service

import (
	"fmt"
	"time"

	"github.com/sifan077/ShortLife/config"
)

// Policy decides how a requested value is combined with its configured default.
type Policy string

const (
	// PolicyCap treats the configured value as a ceiling: min(requested, configured).
	PolicyCap Policy = config.PolicyCap
	// PolicyFloor treats the configured value as a floor: max(requested, configured).
	PolicyFloor Policy = config.PolicyFloor
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyCap, PolicyFloor:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown policy %q", s)
	}
}

func combine[T int | time.Duration](p Policy, requested, configured T) T {
	if p == PolicyFloor {
		return max(requested, configured)
	}
	return min(requested, configured)
}
