package demux

import (
	"ipcamconv/pkg/video/h264"
)

// Aggregator joins parameter set payloads with the following
// payload into a single access unit.
//
// Idle -> Accumulating on a SPS or PPS payload.
// Any other payload flushes the buffer and returns to Idle.
type Aggregator struct {
	buf Buffer
}

// Reserve appends n bytes to the pending unit and returns
// them for the caller to fill.
func (a *Aggregator) Reserve(n int) []byte {
	return a.buf.Extend(n)
}

// Commit classifies the payload from the last Reserve. If it is not a
// parameter set the pending unit is returned and the aggregator resets.
// The unit is valid until the next Reserve. Payloads too short to carry
// a NALU header flush like any other unit, an empty unit is never returned.
func (a *Aggregator) Commit(payload []byte) ([]byte, bool) {
	if typ, ok := h264.LeadingType(payload); ok && typ.IsParameterSet() {
		return nil, false
	}
	au := a.buf.Bytes()
	a.buf.Reset()
	return au, len(au) != 0
}

// Add copies a payload and commits it.
func (a *Aggregator) Add(payload []byte) ([]byte, bool) {
	tail := a.Reserve(len(payload))
	copy(tail, payload)
	return a.Commit(tail)
}

// Pending returns the number of buffered bytes.
func (a *Aggregator) Pending() int {
	return a.buf.Len()
}

// Drop discards the pending unit and returns its size.
func (a *Aggregator) Drop() int {
	n := a.buf.Len()
	a.buf.Reset()
	return n
}
