package probe

// RunningAverage is an incremental arithmetic mean.
type RunningAverage struct {
	Count int
	Value float64
}

// Add includes a sample in the average.
func (a *RunningAverage) Add(sample float64) {
	a.Value = (a.Value*float64(a.Count) + sample) / float64(a.Count+1)
	a.Count++
}

// timeline tracks one stream's epoch and previous timestamp.
type timeline struct {
	started bool
	epoch   uint32
	prev    int64 // Relative to epoch.
}

// advance returns the elapsed milliseconds since the previous record,
// it is zero for the first record. The previous cursor is always moved.
func (t *timeline) advance(raw uint32) int64 {
	if !t.started {
		t.started = true
		t.epoch = raw
		t.prev = 0
		return 0
	}
	ts := Normalize(raw, t.epoch)
	elapsed := ts - t.prev
	t.prev = ts
	return elapsed
}
