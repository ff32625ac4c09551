package events

import "sync/atomic"

var seqCounter atomic.Uint64

// NextSeq returns a monotonically increasing sequence number shared by all
// tracers in the process.
func NextSeq() uint64 {
	return seqCounter.Add(1)
}
