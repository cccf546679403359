package server

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// numericString accepts a JSON number or a JSON string, and a plain form or
// query value.
type numericString string

func (n *numericString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = numericString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		// Booleans, objects and arrays carry no count.
		*n = ""
		return nil
	}
	*n = numericString(num.String())
	return nil
}

func (n *numericString) UnmarshalParam(param string) error {
	*n = numericString(param)
	return nil
}

// Int64 parses the value, truncating decimals. Empty or unparseable values
// yield def.
func (n numericString) Int64(def int64) int64 {
	trimmed := strings.TrimSpace(string(n))
	if trimmed == "" {
		return def
	}
	if parsed, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return parsed
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return def
	}
	switch {
	case parsed >= math.MaxInt64:
		return math.MaxInt64
	case parsed <= math.MinInt64:
		return math.MinInt64
	}
	return int64(parsed)
}
