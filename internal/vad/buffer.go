package vad

// AudioBuffer holds the samples received since the last decoder reset.
// Only the carry-over window at its tail is ever read, so the session
// compacts it to that window after every decode pass. SnapshotTail returns
// the same samples as it would for the full history.
type AudioBuffer struct {
	samples []float32
}

func (b *AudioBuffer) Append(chunk []float32) {
	b.samples = append(b.samples, chunk...)
}

func (b *AudioBuffer) Len() int {
	return len(b.samples)
}

// SnapshotTail returns a copy of the last n samples.
// When fewer samples are buffered the result is zero-padded at the front so
// that its length is always n.
func (b *AudioBuffer) SnapshotTail(n int) []float32 {
	tail := make([]float32, n)
	if len(b.samples) >= n {
		copy(tail, b.samples[len(b.samples)-n:])
	} else {
		copy(tail[n-len(b.samples):], b.samples)
	}
	return tail
}

// Replace discards the buffered history in favour of the given samples.
func (b *AudioBuffer) Replace(samples []float32) {
	b.samples = append(b.samples[:0:0], samples...)
}

// Compact drops all but the last n samples.
func (b *AudioBuffer) Compact(n int) {
	if len(b.samples) <= n {
		return
	}
	b.samples = append(make([]float32, 0, 2*n), b.samples[len(b.samples)-n:]...)
}
