package rarity

import (
	"fmt"
	"sort"
	"sync"
)

// port is one named inbound channel for control messages. Sends never block
// and are never dropped: unlike the audio-frame channels host programs use
// for best-effort delivery, control messages (note-on, parameter changes)
// must all arrive, so a port is a mutex-guarded, unbounded queue rather than
// a buffered Go channel with a select/default drop path.
type port struct {
	addr  []string
	mu    sync.Mutex
	queue []entry
}

// SendHandle is the producer-side handle returned by MessageCollector.AddPort.
// It is safe to hold and call Send from any goroutine.
type SendHandle struct {
	p *port
}

// Send enqueues msg to be delivered at absolute sample frame. frame is
// measured against the same clock the collector's DrainFrames calls advance,
// not relative to the next block — callers translate wall-clock arrival time
// to a sample frame before calling Send.
func (h SendHandle) Send(frame int, msg Message) {
	h.p.mu.Lock()
	h.p.queue = append(h.p.queue, entry{frame: frame, msg: msg})
	h.p.mu.Unlock()
}

// MessageCollector is the rendezvous point between producer-domain senders
// (network threads, MIDI input, OSC listeners) and the audio-domain
// scheduler: Collect pulls everything producers have queued since the last
// call, and DrainFrames hands the audio thread a MessageBuffer windowed to
// exactly the next block.
type MessageCollector struct {
	team []entry
	curr int
	ports []*port
}

// NewMessageCollector returns an empty MessageCollector.
func NewMessageCollector() *MessageCollector {
	return &MessageCollector{}
}

// AddPort registers a new named port and returns the handle producers use to
// send through it. addr is prepended to every message's Addr during Collect,
// so a port's name identifies where in the graph its messages enter. Panics
// if addr duplicates an existing port's — a wiring bug, caught at setup.
func (c *MessageCollector) AddPort(addr []string) SendHandle {
	for _, p := range c.ports {
		if sameAddr(p.addr, addr) {
			panic(fmt.Sprintf("rarity: duplicate message port address %v", addr))
		}
	}
	p := &port{addr: addr}
	c.ports = append(c.ports, p)
	return SendHandle{p: p}
}

func sameAddr(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Collect drains every port's queued messages into the collector's internal
// stable-sorted timeline, prepending each port's address to the message's
// own Addr. Call this once per block, from the audio thread, before
// DrainFrames.
func (c *MessageCollector) Collect() {
	for _, p := range c.ports {
		p.mu.Lock()
		drained := p.queue
		p.queue = nil
		p.mu.Unlock()

		for _, e := range drained {
			full := make([]string, 0, len(p.addr)+len(e.msg.Addr))
			full = append(full, p.addr...)
			full = append(full, e.msg.Addr...)
			e.msg.Addr = full
			c.insert(e.frame, e.msg)
		}
	}
}

// insert performs the same stable-upper-bound insertion MessageBuffer.Add
// uses, against the collector's absolute-frame timeline.
func (c *MessageCollector) insert(frame int, msg Message) {
	idx := sort.Search(len(c.team), func(i int) bool { return c.team[i].frame > frame })
	c.team = append(c.team, entry{})
	copy(c.team[idx+1:], c.team[idx:])
	c.team[idx] = entry{frame: frame, msg: msg}
}

// DrainFrames removes and returns every queued message whose absolute frame
// falls within the next `frames` samples, rebased to a window starting at 0.
// Messages that arrived late — already behind the collector's current
// position — are clamped to frame 0 rather than dropped. The collector's
// position always advances by exactly frames, regardless of how many
// messages were pending.
func (c *MessageCollector) DrainFrames(frames int) *MessageBuffer {
	cutoff := c.curr + frames
	idx := sort.Search(len(c.team), func(i int) bool { return c.team[i].frame >= cutoff })

	mb := NewMessageBuffer()
	mb.SetWindow(frames)
	for _, e := range c.team[:idx] {
		f := e.frame
		if f < c.curr {
			f = c.curr
		}
		mb.Add(f-c.curr, e.msg)
	}
	c.team = append(c.team[:0:0], c.team[idx:]...)
	c.curr = cutoff
	return mb
}
