package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawToolCall is the minimal shape needed to detect the legacy
// corruption sentinel without depending on the full tool-call schema
// (which lives in internal/provider, a package store must not import).
type rawToolCall struct {
	Arguments json.RawMessage `json:"arguments"`
}

// messageIsCorrupted reports whether any entry in a message's
// tool_calls JSON has arguments exactly equal to the literal sentinel
// {"redacted":true} — the legacy artifact DESIGN NOTES §9 calls out.
func messageIsCorrupted(toolCallsJSON string) bool {
	var calls []rawToolCall
	if err := json.Unmarshal([]byte(toolCallsJSON), &calls); err != nil {
		return false
	}
	for _, c := range calls {
		var args map[string]interface{}
		if err := json.Unmarshal(c.Arguments, &args); err != nil {
			continue
		}
		if len(args) == 1 {
			if v, ok := args["redacted"]; ok {
				if b, ok := v.(bool); ok && b {
					return true
				}
			}
		}
	}
	return false
}

// inClause builds a "col IN (?,?,?)"-style query for a slice of ids.
func inClause(template string, ids []int64) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return fmt.Sprintf(template, strings.Join(placeholders, ",")), args
}

// CompressIDRanges renders a sorted, unique slice of ids as compact
// ranges ("a, b-c, d"), used by the Context Document's redacted-id
// summary (§4.6). Round-trips with ExpandIDRanges (R1).
func CompressIDRanges(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}

	var parts []string
	start := ids[0]
	prev := ids[0]

	flush := func(end int64) {
		if start == end {
			parts = append(parts, fmt.Sprintf("%d", start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, end))
		}
	}

	for _, id := range ids[1:] {
		if id == prev+1 {
			prev = id
			continue
		}
		flush(prev)
		start = id
		prev = id
	}
	flush(prev)

	return strings.Join(parts, ", ")
}

// ExpandIDRanges parses the CompressIDRanges output back into a sorted
// slice of ids.
func ExpandIDRanges(ranges string) ([]int64, error) {
	ranges = strings.TrimSpace(ranges)
	if ranges == "" {
		return nil, nil
	}

	var ids []int64
	for _, part := range strings.Split(ranges, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if dash := strings.IndexByte(part, '-'); dash >= 0 {
			var lo, hi int64
			if _, err := fmt.Sscanf(part, "%d-%d", &lo, &hi); err != nil {
				return nil, fmt.Errorf("invalid range %q: %w", part, err)
			}
			for i := lo; i <= hi; i++ {
				ids = append(ids, i)
			}
			continue
		}
		var v int64
		if _, err := fmt.Sscanf(part, "%d", &v); err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		ids = append(ids, v)
	}
	return ids, nil
}
