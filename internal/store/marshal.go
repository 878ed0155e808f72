package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// normalizeLabel NFC-normalizes and trims a run label.
func normalizeLabel(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}

// marshalParams converts Params to JSON TEXT for storage.
// Uses json.Encoder with HTML escaping disabled so stored text matches what
// the user typed.
func marshalParams(p Params) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalParams parses JSON TEXT to Params.
func unmarshalParams(data string) (Params, error) {
	var p Params
	if data == "" || data == "{}" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Params{}, fmt.Errorf("unmarshal params: %w", err)
	}
	return p, nil
}

// Timestamps are stored as Unix nanoseconds.
func toUnix(t time.Time) int64 { return t.UnixNano() }

func fromUnix(ns int64) time.Time { return time.Unix(0, ns).UTC() }
