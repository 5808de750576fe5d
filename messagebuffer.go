package rarity

import "sort"

// entry pairs a frame offset with the message delivered at it.
type entry struct {
	frame int
	msg   Message
}

// MessageBuffer is a stable-sorted list of (frameOffset, Message) pairs
// windowed to [0, frameWindow). Stability matters: for equal frame offsets,
// insertion order is preserved, so a NoteOff at sample f that arrived after a
// NoteOn at the same f is always delivered after it.
type MessageBuffer struct {
	entries []entry
	window  int
}

// NewMessageBuffer returns an empty MessageBuffer with a zero frame window.
// The scheduler calls SetWindow before using a buffer for a block.
func NewMessageBuffer() *MessageBuffer {
	return &MessageBuffer{}
}

// Len returns the number of buffered messages.
func (b *MessageBuffer) Len() int { return len(b.entries) }

// IsEmpty reports whether the buffer holds no messages.
func (b *MessageBuffer) IsEmpty() bool { return len(b.entries) == 0 }

// FrameWindow returns the current block's frame window.
func (b *MessageBuffer) FrameWindow() int { return b.window }

// SetWindow sets the buffer's frame window. Exported so Graph and
// MessageCollector can re-window a buffer between blocks without exposing a
// full constructor-time dependency.
func (b *MessageBuffer) SetWindow(frames int) { b.window = frames }

// Clear empties the buffer without changing its window.
func (b *MessageBuffer) Clear() { b.entries = b.entries[:0] }

// Add inserts (frame, msg) at the stable-upper-bound position for frame: the
// position just after the last existing entry with an equal or smaller
// frame. This preserves FIFO order for ties. Panics if frame is outside
// [0, window) — a graph scheduling bug, not a caller error to recover from.
func (b *MessageBuffer) Add(frame int, msg Message) {
	if frame < 0 || frame >= b.window {
		panic("rarity: message frame out of window range")
	}
	idx := sort.Search(len(b.entries), func(i int) bool { return b.entries[i].frame > frame })
	b.entries = append(b.entries, entry{})
	copy(b.entries[idx+1:], b.entries[idx:])
	b.entries[idx] = entry{frame: frame, msg: msg}
}

// At returns the frame offset and message at index i, for range-style
// iteration: for i := 0; i < mb.Len(); i++ { f, m := mb.At(i); ... }.
func (b *MessageBuffer) At(i int) (int, Message) {
	e := b.entries[i]
	return e.frame, e.msg
}

// All returns an iterator (Go 1.23 range-over-func) over (frame, Message)
// pairs in stable-sorted order, the idiomatic replacement for the source's
// borrowing iterator.
func (b *MessageBuffer) All() func(yield func(int, Message) bool) {
	return func(yield func(int, Message) bool) {
		for _, e := range b.entries {
			if !yield(e.frame, e.msg) {
				return
			}
		}
	}
}
