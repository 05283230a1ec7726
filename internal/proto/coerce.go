package proto

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// maxExactInt is the largest integer a JSON client can send without losing
// precision (2^53 - 1).
const maxExactInt = 1<<53 - 1

// String reads a loosely typed text field. Strings are returned as is, numbers
// in their literal form and true as "true". Missing, null, false and
// structured values yield "".
func String(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 't':
		if string(raw) == "true" {
			return "true"
		}
		return ""
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		return n.String()
	default:
		return ""
	}
}

// Int reads a loosely typed numeric field. JSON numbers and numeric strings
// are accepted and truncated toward zero. Missing, non-numeric, non-finite or
// out of range input yields fallback.
func Int(raw json.RawMessage, fallback int) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fallback
	}

	var text string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return fallback
		}
		text = strings.TrimSpace(text)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(raw)
	default:
		return fallback
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	f = math.Trunc(f)
	if f > maxExactInt || f < -maxExactInt {
		return fallback
	}
	return int(f)
}
