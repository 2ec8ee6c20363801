package log

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const textTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// TextFormatter renders entries as a single human-readable line:
//
//	2026-01-02T15:04:05.000Z INFO  store opened  component=updatelog dir=/tmp/x
type TextFormatter struct {
	// DisableTimestamp drops the leading timestamp, useful in tests.
	DisableTimestamp bool
}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var b strings.Builder
	if !f.DisableTimestamp {
		b.WriteString(entry.Timestamp.Format(textTimeFormat))
		b.WriteByte(' ')
	}
	b.WriteString(fmt.Sprintf("%-5s", entry.Level.String()))
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		b.WriteByte(' ')
		for _, k := range sortedKeys(entry.Fields) {
			b.WriteByte(' ')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(formatValue(entry.Fields[k]))
		}
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// sortedKeys orders field names with the component tag hoisted to the front.
func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == ComponentKey {
			return true
		}
		if keys[j] == ComponentKey {
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		if strings.ContainsAny(t, " \t\"=") {
			return fmt.Sprintf("%q", t)
		}
		return t
	case error:
		return fmt.Sprintf("%q", t.Error())
	case time.Duration:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// JSONFormatter renders entries as single-line JSON objects with the fields
// flattened into the top level.
type JSONFormatter struct {
	// PrettyPrint indents the output, useful when eyeballing logs locally.
	PrettyPrint bool
}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	m := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		m[k] = v
	}
	m["ts"] = entry.Timestamp.Format(time.RFC3339Nano)
	m["level"] = entry.Level.String()
	m["msg"] = entry.Message
	if entry.Caller != "" {
		m["caller"] = entry.Caller
	}

	var (
		out []byte
		err error
	)
	if f.PrettyPrint {
		out, err = json.MarshalIndent(m, "", "  ")
	} else {
		out, err = json.Marshal(m)
	}
	if err != nil {
		return nil, fmt.Errorf("format log entry: %w", err)
	}
	return append(out, '\n'), nil
}
