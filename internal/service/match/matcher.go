// Package match maps free-text messages onto canonical catalog questions
// with a normalized similarity ratio.
package match

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Matcher finds the closest canonical question for an incoming message.
type Matcher struct {
	keys      []string
	threshold float64
	metric    *metrics.SorensenDice
}

// New builds a matcher over the given keys. Keys are expected in the
// catalog's sorted iteration order; on a score tie the first key wins, which
// keeps matches reproducible. A threshold outside (0,1] falls back to 0.6.
func New(keys []string, threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.6
	}
	return &Matcher{
		keys:      append([]string(nil), keys...),
		threshold: threshold,
		metric:    metrics.NewSorensenDice(),
	}
}

// Match returns the best-scoring key at or above the threshold.
func (m *Matcher) Match(message string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" || len(m.keys) == 0 {
		return "", false
	}

	bestKey := ""
	bestScore := 0.0
	for _, key := range m.keys {
		score := strutil.Similarity(normalized, strings.ToLower(key), m.metric)
		if score > bestScore {
			bestKey = key
			bestScore = score
		}
	}

	if bestScore < m.threshold {
		return "", false
	}
	return bestKey, true
}
