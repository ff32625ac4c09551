package ir

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Schema version for trace dumps - increment when the Op layout changes.
const dumpSchemaVersion uint16 = 1

// dumpEnvelope wraps a serialized trace with its schema version so stale
// dumps are rejected instead of being misread.
type dumpEnvelope struct {
	Schema uint16
	Ops    []Op
}

// Encode writes the trace to w in msgpack form. Used by the CLI dump command
// and by tests that round-trip recorded traces.
func Encode(w io.Writer, t *Trace) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(&dumpEnvelope{Schema: dumpSchemaVersion, Ops: t.Ops})
}

// Decode reads a trace previously written by Encode. The decoded trace is
// returned sealed: a dump is a finished recording, never a live one.
func Decode(r io.Reader) (*Trace, error) {
	var env dumpEnvelope
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode trace dump: %w", err)
	}
	if env.Schema != dumpSchemaVersion {
		return nil, fmt.Errorf("trace dump schema %d not supported (want %d)", env.Schema, dumpSchemaVersion)
	}
	t := &Trace{Ops: env.Ops}
	t.Seal()
	return t, nil
}
