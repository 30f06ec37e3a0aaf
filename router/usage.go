package router

import (
	"encoding/json"

	"go.uber.org/zap"
)

// TokenUsage is the canonical token accounting record. TotalTokens equals
// InputTokens+OutputTokens unless the backend supplied its own total, which
// is kept as reported.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// UsageOptions tunes normalization. ToleranceTokens is the allowed gap
// between a backend-reported total and the computed input+output sum before
// a consistency warning is logged; zero means exact match expected.
type UsageOptions struct {
	ToleranceTokens int
}

// NormalizeUsage maps a backend's usage vocabulary onto TokenUsage. The
// second return value reports whether usage data was present at all; absent
// usage yields zeros rather than an error, since accounting must not block
// answering. The function is pure apart from the consistency warning and is
// idempotent over the same input.
func NormalizeUsage(raw map[string]any, version Version, opts UsageOptions, logger *zap.Logger) (TokenUsage, bool) {
	sub, ok := raw["usage"].(map[string]any)
	if !ok || len(sub) == 0 {
		return TokenUsage{}, false
	}

	var usage TokenUsage
	switch version {
	case V2Remote:
		// The remote schema is not guaranteed stable; accept either name
		// for the output count, first match wins.
		usage.InputTokens = intField(sub, "prompt_tokens")
		usage.OutputTokens = intField(sub, "completion_tokens", "output_tokens")
		usage.TotalTokens = intField(sub, "total_tokens")
	default:
		usage.InputTokens = intField(sub, "prompt_tokens")
		usage.OutputTokens = intField(sub, "completion_tokens")
		usage.TotalTokens = intField(sub, "total_tokens")
	}

	computed := usage.InputTokens + usage.OutputTokens
	if usage.TotalTokens == 0 && computed > 0 {
		usage.TotalTokens = computed
	} else if diff := usage.TotalTokens - computed; logger != nil && abs(diff) > opts.ToleranceTokens && computed > 0 {
		// Backends that count overhead tokens may legitimately disagree;
		// this is observability, never a failure.
		logger.Warn("Backend-reported total_tokens disagrees with computed sum",
			zap.String("version", version.String()),
			zap.Int("reported", usage.TotalTokens),
			zap.Int("computed", computed),
			zap.Int("tolerance", opts.ToleranceTokens))
	}

	return usage, true
}

// intField reads the first present key, coercing the numeric forms JSON
// decoding can produce. Missing or negative values read as zero.
func intField(m map[string]any, keys ...string) int {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		var n int
		switch t := v.(type) {
		case float64:
			n = int(t)
		case int:
			n = t
		case int64:
			n = int(t)
		case json.Number:
			if i, err := t.Int64(); err == nil {
				n = int(i)
			}
		default:
			continue
		}
		if n < 0 {
			n = 0
		}
		return n
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
