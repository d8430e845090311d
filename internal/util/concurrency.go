package util

import (
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// alias so tests can mock it
var runtimeNumCPU = runtime.NumCPU

const positiveInfinity = 1

// ParseConcurrency parses a --concurrency value, either a bare integer or a
// percentage of available CPU cores (e.g. "50%").
func ParseConcurrency(raw string) (int, error) {
	if strings.HasSuffix(raw, "%") {
		percent, err := strconv.ParseFloat(raw[:len(raw)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid value for --concurrency flag, expected a number or a percentage like 50%%: %w", err)
		}
		if percent > 0 && !math.IsInf(percent, positiveInfinity) {
			return int(math.Max(1, float64(runtimeNumCPU())*percent/100)), nil
		}
		return 0, fmt.Errorf("invalid percentage value %q for --concurrency flag, expected between 1%% and 100%%", raw)
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid value for --concurrency flag, expected a positive integer: %w", err)
	}
	if i < 1 {
		return 0, fmt.Errorf("invalid value %d for --concurrency flag, must be >= 1", i)
	}
	return i, nil
}

// ConcurrencyValue adapts ParseConcurrency to pflag.Value so it can be bound
// directly to a cobra flag.
type ConcurrencyValue struct {
	Value *int
	raw   string
}

var _ pflag.Value = &ConcurrencyValue{}

func (cv *ConcurrencyValue) String() string { return cv.raw }

func (cv *ConcurrencyValue) Set(value string) error {
	parsed, err := ParseConcurrency(value)
	if err != nil {
		return err
	}
	cv.raw = value
	*cv.Value = parsed
	return nil
}

func (cv *ConcurrencyValue) Type() string { return "number|percentage" }
