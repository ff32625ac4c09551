package events

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format represents the output format for events.
type Format uint8

const (
	FormatAuto   Format = iota // pick from the output path
	FormatText                 // human-readable text
	FormatNDJSON               // newline-delimited JSON
)

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson":
		return FormatNDJSON, nil
	default:
		return FormatAuto, fmt.Errorf("invalid event format: %q (expected: auto|text|ndjson)", s)
	}
}

// FormatEvent formats an event according to the specified format.
func FormatEvent(ev Event, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(ev)
	default:
		return formatText(ev)
	}
}

func formatNDJSON(ev Event) []byte {
	type jsonEvent struct {
		Time     string `json:"time"`
		Seq      uint64 `json:"seq"`
		Kind     string `json:"kind"`
		Location uint64 `json:"location,omitempty"`
		Detail   string `json:"detail,omitempty"`
		Stage    string `json:"stage,omitempty"`
	}

	j := jsonEvent{
		Time:     ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Location: ev.Location,
		Detail:   ev.Detail,
		Stage:    ev.Stage,
	}

	data, _ := json.Marshal(j)
	data = append(data, '\n')
	return data
}

// formatText renders an event as one line:
//
//	jit-event: start-tracing loc=3
//
// IR dumps are fenced so the listing can be extracted mechanically:
//
//	--- Begin trace ---
//	...
//	--- End trace ---
func formatText(ev Event) []byte {
	var sb strings.Builder

	if ev.Kind == KindIRDump {
		fmt.Fprintf(&sb, "--- Begin %s ---\n", ev.Stage)
		sb.WriteString(ev.Detail)
		if !strings.HasSuffix(ev.Detail, "\n") {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "--- End %s ---\n", ev.Stage)
		return []byte(sb.String())
	}

	sb.WriteString("jit-event: ")
	sb.WriteString(ev.Kind.String())
	if ev.Location != 0 {
		fmt.Fprintf(&sb, " loc=%d", ev.Location)
	}
	if ev.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(ev.Detail)
	}
	sb.WriteString("\n")
	return []byte(sb.String())
}
