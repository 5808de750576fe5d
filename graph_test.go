package rarity

import "testing"

// constSource is a minimal AudioSource that writes a fixed value to both
// channels every frame, for wiring tests that don't need real DSP.
type constSource struct {
	name  string
	value float64
}

func (s *constSource) Name() string { return s.name }
func (s *constSource) Desc() Desc   { return Desc{} }

func (s *constSource) Process(ph *PlayHead, frames int, audioOut AudioBufferMut, messageIn *MessageBuffer) {
	for i := 0; i < frames; i++ {
		l, r := audioOut.Frame(i)
		*l, *r = s.value, s.value
	}
}

// gainEffect scales its single audio input by a fixed factor.
type gainEffect struct {
	name string
	gain float64
}

func (e *gainEffect) Name() string { return e.name }
func (e *gainEffect) Desc() Desc    { return Desc{AudioIn: 1} }

func (e *gainEffect) Process(ph *PlayHead, frames int, audioIn []AudioBufferRef, audioOut AudioBufferMut, messageIn *MessageBuffer) {
	for i := 0; i < frames; i++ {
		l, r := audioIn[0].Frame(i)
		ol, or := audioOut.Frame(i)
		*ol, *or = l*e.gain, r*e.gain
	}
}

// recordingSource stashes the first message it sees each block, so tests
// can verify what Graph.Process actually routed to a named node.
type recordingSource struct {
	name string
	got  *Message
}

func (s *recordingSource) Name() string { return s.name }
func (s *recordingSource) Desc() Desc   { return Desc{} }

func (s *recordingSource) Process(ph *PlayHead, frames int, audioOut AudioBufferMut, messageIn *MessageBuffer) {
	for _, m := range messageIn.All() {
		mc := m
		s.got = &mc
		break
	}
}

func TestGraphSourceEffectToOutput(t *testing.T) {
	g := NewGraph("test")
	if err := g.AddAudioSource(&constSource{name: "src", value: 1}); err != nil {
		t.Fatalf("AddAudioSource: %v", err)
	}
	if err := g.AddAudioEffect(&gainEffect{name: "gain", gain: 2}); err != nil {
		t.Fatalf("AddAudioEffect: %v", err)
	}
	if err := g.AddAudioLink("src", "gain"); err != nil {
		t.Fatalf("AddAudioLink src->gain: %v", err)
	}
	if err := g.AddAudioLink("gain", AOut); err != nil {
		t.Fatalf("AddAudioLink gain->AOut: %v", err)
	}
	if err := g.Compile(64); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	in := NewAudioBuffer(64)
	out := NewAudioBuffer(64)
	mb := NewMessageBuffer()
	mb.SetWindow(16)

	ph := &PlayHead{Upper: 4, Lower: 4, Div: 4}
	g.Process(ph, 16, in.NextNFramesRef(16), out.NextNFramesMut(16), mb)

	ref := out.NextNFramesRef(16)
	for i := 0; i < 16; i++ {
		l, r := ref.Frame(i)
		if l != 2 || r != 2 {
			t.Fatalf("frame %d: expected (2,2), got (%v,%v)", i, l, r)
		}
	}
}

func TestGraphRejectsReservedName(t *testing.T) {
	g := NewGraph("test")
	err := g.AddAudioSource(&constSource{name: AOut})
	if err == nil {
		t.Fatal("expected error registering a reserved node name")
	}
}

func TestGraphRejectsDuplicateName(t *testing.T) {
	g := NewGraph("test")
	if err := g.AddAudioSource(&constSource{name: "src"}); err != nil {
		t.Fatalf("AddAudioSource: %v", err)
	}
	if err := g.AddAudioSource(&constSource{name: "src"}); err == nil {
		t.Fatal("expected error registering a duplicate node name")
	}
}

func TestGraphRejectsUnknownLinkTarget(t *testing.T) {
	g := NewGraph("test")
	if err := g.AddAudioSource(&constSource{name: "src"}); err != nil {
		t.Fatalf("AddAudioSource: %v", err)
	}
	if err := g.AddAudioLink("src", "nonexistent"); err == nil {
		t.Fatal("expected error linking to an unknown node")
	}
}

func TestGraphDetectsCycle(t *testing.T) {
	g := NewGraph("test")
	if err := g.AddAudioEffect(&gainEffect{name: "a", gain: 1}); err != nil {
		t.Fatalf("AddAudioEffect a: %v", err)
	}
	if err := g.AddAudioEffect(&gainEffect{name: "b", gain: 1}); err != nil {
		t.Fatalf("AddAudioEffect b: %v", err)
	}
	if err := g.AddAudioLink("a", "b"); err != nil {
		t.Fatalf("AddAudioLink a->b: %v", err)
	}
	if err := g.AddAudioLink("b", "a"); err != nil {
		t.Fatalf("AddAudioLink b->a: %v", err)
	}
	if err := g.Compile(64); err == nil {
		t.Fatal("expected Compile to detect a cycle")
	}
}

// TestGraphFanOutCloneFanInMerge exercises property #6: a source fanning
// out to two sinks via AudioClone, which then fan back into one node via
// AudioMerge, must deliver the sum of both paths.
func TestGraphFanOutCloneFanInMerge(t *testing.T) {
	g := NewGraph("test")
	if err := g.AddAudioSource(&constSource{name: "s", value: 2}); err != nil {
		t.Fatalf("AddAudioSource: %v", err)
	}
	if err := g.AddAudioEffect(&gainEffect{name: "a", gain: 1}); err != nil {
		t.Fatalf("AddAudioEffect a: %v", err)
	}
	if err := g.AddAudioEffect(&gainEffect{name: "b", gain: 1}); err != nil {
		t.Fatalf("AddAudioEffect b: %v", err)
	}
	if err := g.AddAudioEffect(&gainEffect{name: "c", gain: 1}); err != nil {
		t.Fatalf("AddAudioEffect c: %v", err)
	}
	for _, l := range [][2]string{{"s", "a"}, {"s", "b"}, {"a", "c"}, {"b", "c"}, {"c", AOut}} {
		if err := g.AddAudioLink(l[0], l[1]); err != nil {
			t.Fatalf("AddAudioLink %s->%s: %v", l[0], l[1], err)
		}
	}
	if err := g.Compile(64); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	in := NewAudioBuffer(64)
	out := NewAudioBuffer(64)
	mb := NewMessageBuffer()
	mb.SetWindow(16)
	ph := &PlayHead{Upper: 4, Lower: 4, Div: 4}
	g.Process(ph, 16, in.NextNFramesRef(16), out.NextNFramesMut(16), mb)

	ref := out.NextNFramesRef(16)
	for i := 0; i < 16; i++ {
		l, r := ref.Frame(i)
		if l != 4 || r != 4 {
			t.Fatalf("frame %d: expected (4,4) from s=2 cloned to a,b then merged into c, got (%v,%v)", i, l, r)
		}
	}
}

// TestGraphRoutesMessageToNamedNodeStrippingAddr exercises property #7: a
// message addressed by trailing node name reaches that node with the
// matching segment popped off.
func TestGraphRoutesMessageToNamedNodeStrippingAddr(t *testing.T) {
	g := NewGraph("test")
	rec := &recordingSource{name: "simple_saw"}
	if err := g.AddAudioSource(rec); err != nil {
		t.Fatalf("AddAudioSource: %v", err)
	}
	if err := g.AddAudioLink("simple_saw", AOut); err != nil {
		t.Fatalf("AddAudioLink: %v", err)
	}
	if err := g.Compile(64); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	in := NewAudioBuffer(64)
	out := NewAudioBuffer(64)
	hostMsg := NewMessageBuffer()
	hostMsg.SetWindow(16)
	hostMsg.Add(0, Message{Addr: []string{"x", "simple_saw"}, Value: FloatValue{Name: "gain"}})

	ph := &PlayHead{Upper: 4, Lower: 4, Div: 4}
	g.Process(ph, 16, in.NextNFramesRef(16), out.NextNFramesMut(16), hostMsg)

	if rec.got == nil {
		t.Fatal("expected simple_saw to receive a routed message")
	}
	if len(rec.got.Addr) != 1 || rec.got.Addr[0] != "x" {
		t.Errorf("expected remaining Addr [x] after routing strips the node's own name, got %v", rec.got.Addr)
	}
}

// TestGraphProcessAdvancesInternalCursorsByFrames exercises property #8:
// every internal AudioBuffer's cursor advances by exactly the block size
// after Process, regardless of how many operations touched it.
func TestGraphProcessAdvancesInternalCursorsByFrames(t *testing.T) {
	g := NewGraph("test")
	if err := g.AddAudioSource(&constSource{name: "src", value: 1}); err != nil {
		t.Fatalf("AddAudioSource: %v", err)
	}
	if err := g.AddAudioEffect(&gainEffect{name: "gain", gain: 2}); err != nil {
		t.Fatalf("AddAudioEffect: %v", err)
	}
	if err := g.AddAudioLink("src", "gain"); err != nil {
		t.Fatalf("AddAudioLink src->gain: %v", err)
	}
	if err := g.AddAudioLink("gain", AOut); err != nil {
		t.Fatalf("AddAudioLink gain->AOut: %v", err)
	}
	if err := g.Compile(64); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	in := NewAudioBuffer(64)
	out := NewAudioBuffer(64)
	mb := NewMessageBuffer()
	mb.SetWindow(16)
	ph := &PlayHead{Upper: 4, Lower: 4, Div: 4}

	for _, b := range g.audioBuffers {
		if b.Cursor() != 0 {
			t.Fatalf("expected every internal buffer to start at cursor 0, got %d", b.Cursor())
		}
	}

	g.Process(ph, 16, in.NextNFramesRef(16), out.NextNFramesMut(16), mb)

	for i, b := range g.audioBuffers {
		if b.Cursor() != 16 {
			t.Errorf("internal buffer %d: expected cursor 16 after processing 16 frames, got %d", i, b.Cursor())
		}
	}
}
