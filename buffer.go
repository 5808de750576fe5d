package rarity

// AudioBuffer is a fixed-length circular stereo buffer: capacity frames of
// interleaved L,R float64 samples, addressed by a frame cursor that wraps
// modulo capacity. It is exclusively owned by the Graph that creates it.
type AudioBuffer struct {
	data     []float64 // interleaved L,R,L,R,...
	cursor   int        // frame index, always in [0, capacity)
	capacity int        // frames
}

// NewAudioBuffer returns a zeroed AudioBuffer of the given frame capacity.
// Panics if capacity is zero — a buffer with no room for a view is a
// construction bug, not a runtime condition to recover from.
func NewAudioBuffer(capacity int) *AudioBuffer {
	if capacity <= 0 {
		panic("rarity: AudioBuffer capacity must be > 0")
	}
	return &AudioBuffer{data: make([]float64, capacity*2), capacity: capacity}
}

// Capacity returns the buffer's frame capacity.
func (b *AudioBuffer) Capacity() int { return b.capacity }

// Cursor returns the buffer's current frame cursor.
func (b *AudioBuffer) Cursor() int { return b.cursor }

// Forward advances the cursor by n frames modulo capacity. It does not touch
// sample data.
func (b *AudioBuffer) Forward(n int) {
	b.cursor = (b.cursor + n) % b.capacity
}

// split computes the head/tail interleaved sub-slices for a window of frames
// starting at the cursor, wrapping at capacity. Shared by the ref/mut paths
// below since slicing is the same arithmetic either way.
func (b *AudioBuffer) split(frames int) (head, tail []float64) {
	if frames > b.capacity {
		panic("rarity: requested window exceeds buffer capacity")
	}
	start := b.cursor * 2
	if len(b.data) >= (b.cursor+frames)*2 {
		return b.data[start : start+frames*2], nil
	}
	rest := (b.cursor + frames) - b.capacity
	return b.data[start:], b.data[:rest*2]
}

// NextNFramesRef returns a read-only view of the next n frames starting at
// the cursor. The view holds one slice if the window doesn't wrap, two if it
// crosses the capacity boundary.
func (b *AudioBuffer) NextNFramesRef(frames int) AudioBufferRef {
	head, tail := b.split(frames)
	return AudioBufferRef{head: head, tail: tail}
}

// NextNFramesMut returns an exclusive, writable view of the next n frames
// starting at the cursor.
func (b *AudioBuffer) NextNFramesMut(frames int) AudioBufferMut {
	head, tail := b.split(frames)
	return AudioBufferMut{head: head, tail: tail}
}

// AudioBufferRef is a shared (read-only) view over up to two interleaved
// sample slices whose concatenation is the logical frame sequence.
type AudioBufferRef struct {
	head, tail []float64
}

// Len returns the number of frames the view covers.
func (v AudioBufferRef) Len() int { return (len(v.head) + len(v.tail)) / 2 }

// IsEmpty reports whether the view covers zero frames.
func (v AudioBufferRef) IsEmpty() bool { return len(v.head) == 0 && len(v.tail) == 0 }

// Frame returns the L and R sample at frame index i (0-based within the
// view), resolving across the head/tail wrap boundary transparently.
func (v AudioBufferRef) Frame(i int) (l, r float64) {
	s := v.sliceAt(i)
	return s[0], s[1]
}

func (v AudioBufferRef) sliceAt(i int) []float64 {
	headFrames := len(v.head) / 2
	if i < headFrames {
		return v.head[i*2 : i*2+2]
	}
	j := i - headFrames
	return v.tail[j*2 : j*2+2]
}

// SplitAt splits the view at frame mid into (left, right) views whose
// concatenated iteration equals the original's, handling the case where mid
// falls inside head, inside tail, or exactly at the head/tail seam.
func (v AudioBufferRef) SplitAt(mid int) (left, right AudioBufferRef) {
	if mid < 0 || mid > v.Len() {
		panic("rarity: split_at index out of range")
	}
	headFrames := len(v.head) / 2
	switch {
	case mid < headFrames:
		return AudioBufferRef{head: v.head[:mid*2]},
			AudioBufferRef{head: v.head[mid*2:], tail: v.tail}
	case mid == headFrames:
		return AudioBufferRef{head: v.head}, AudioBufferRef{head: v.tail}
	default:
		j := (mid - headFrames) * 2
		return AudioBufferRef{head: v.head, tail: v.tail[:j]},
			AudioBufferRef{head: v.tail[j:]}
	}
}

// AudioBufferMut is an exclusive (writable) view over up to two interleaved
// sample slices.
type AudioBufferMut struct {
	head, tail []float64
}

// Len returns the number of frames the view covers.
func (v AudioBufferMut) Len() int { return (len(v.head) + len(v.tail)) / 2 }

// IsEmpty reports whether the view covers zero frames.
func (v AudioBufferMut) IsEmpty() bool { return len(v.head) == 0 && len(v.tail) == 0 }

// Clear zeroes every sample the view covers.
func (v AudioBufferMut) Clear() {
	for i := range v.head {
		v.head[i] = 0
	}
	for i := range v.tail {
		v.tail[i] = 0
	}
}

// Frame returns pointers to the L and R sample at frame index i, letting the
// caller read or write in place — the Go rendering of the source's unsafe
// (&mut L, &mut R) pair construction (see spec Design Notes): ordinary slice
// indexing already gives disjoint, aliasable element addresses, so no unsafe
// is needed.
func (v AudioBufferMut) Frame(i int) (l, r *float64) {
	s := v.sliceAt(i)
	return &s[0], &s[1]
}

func (v AudioBufferMut) sliceAt(i int) []float64 {
	headFrames := len(v.head) / 2
	if i < headFrames {
		return v.head[i*2 : i*2+2]
	}
	j := i - headFrames
	return v.tail[j*2 : j*2+2]
}

// Ref returns a read-only view over the same underlying samples, for callers
// that hold a mutable view but need to read it back (e.g. after writing).
func (v AudioBufferMut) Ref() AudioBufferRef {
	return AudioBufferRef{head: v.head, tail: v.tail}
}

// SplitAt splits the view at frame mid into (left, right) exclusive views
// whose concatenation equals the original.
func (v AudioBufferMut) SplitAt(mid int) (left, right AudioBufferMut) {
	if mid < 0 || mid > v.Len() {
		panic("rarity: split_at index out of range")
	}
	headFrames := len(v.head) / 2
	switch {
	case mid < headFrames:
		return AudioBufferMut{head: v.head[:mid*2]},
			AudioBufferMut{head: v.head[mid*2:], tail: v.tail}
	case mid == headFrames:
		return AudioBufferMut{head: v.head}, AudioBufferMut{head: v.tail}
	default:
		j := (mid - headFrames) * 2
		return AudioBufferMut{head: v.head, tail: v.tail[:j]},
			AudioBufferMut{head: v.tail[j:]}
	}
}

// AddFrom adds src's samples into v in place (used by AudioMerge/AudioToOutput
// accumulation). Panics if the lengths differ.
func (v AudioBufferMut) AddFrom(src AudioBufferRef) {
	if v.Len() != src.Len() {
		panic("rarity: AddFrom length mismatch")
	}
	n := v.Len()
	for i := 0; i < n; i++ {
		l, r := v.Frame(i)
		sl, sr := src.Frame(i)
		*l += sl
		*r += sr
	}
}

// CopyFrom overwrites v's samples with src's (used by AudioClone/
// AudioFromInput). Panics if the lengths differ.
func (v AudioBufferMut) CopyFrom(src AudioBufferRef) {
	if v.Len() != src.Len() {
		panic("rarity: CopyFrom length mismatch")
	}
	n := v.Len()
	for i := 0; i < n; i++ {
		l, r := v.Frame(i)
		sl, sr := src.Frame(i)
		*l, *r = sl, sr
	}
}
