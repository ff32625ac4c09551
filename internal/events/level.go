package events

import "fmt"

// Level controls event-stream verbosity.
type Level uint8

const (
	// LevelOff disables the event stream.
	LevelOff Level = iota
	// LevelError emits only aborted recordings and failed compilations.
	LevelError
	// LevelEvent emits lifecycle transitions as well.
	LevelEvent
	// LevelDebug emits everything, including IR dumps.
	LevelDebug
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelEvent:
		return "event"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "off", "OFF":
		return LevelOff, nil
	case "error", "ERROR":
		return LevelError, nil
	case "event", "EVENT":
		return LevelEvent, nil
	case "debug", "DEBUG":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid event level: %q (expected: off|error|event|debug)", s)
	}
}

// ShouldEmit returns true if events of the given class pass this level.
func (l Level) ShouldEmit(class Class) bool {
	switch l {
	case LevelOff:
		return false
	case LevelError:
		return class <= ClassError
	case LevelEvent:
		return class <= ClassLifecycle
	case LevelDebug:
		return true
	}
	return false
}
