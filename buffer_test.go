package rarity

import "testing"

func TestAudioBufferNoWrapRoundTrip(t *testing.T) {
	b := NewAudioBuffer(8)
	mut := b.NextNFramesMut(4)
	for i := 0; i < 4; i++ {
		l, r := mut.Frame(i)
		*l, *r = float64(i), float64(i)*2
	}
	ref := b.NextNFramesRef(4)
	for i := 0; i < 4; i++ {
		l, r := ref.Frame(i)
		if l != float64(i) || r != float64(i)*2 {
			t.Fatalf("frame %d: got (%v,%v)", i, l, r)
		}
	}
}

func TestAudioBufferWrapsAcrossCapacity(t *testing.T) {
	b := NewAudioBuffer(4)
	b.Forward(3) // cursor at 3, window of 2 frames must wrap

	mut := b.NextNFramesMut(2)
	if mut.Len() != 2 {
		t.Fatalf("expected len 2, got %d", mut.Len())
	}
	l0, r0 := mut.Frame(0)
	*l0, *r0 = 1, 2
	l1, r1 := mut.Frame(1)
	*l1, *r1 = 3, 4

	ref := b.NextNFramesRef(2)
	if l, r := ref.Frame(0); l != 1 || r != 2 {
		t.Errorf("frame 0: got (%v,%v)", l, r)
	}
	if l, r := ref.Frame(1); l != 3 || r != 4 {
		t.Errorf("frame 1: got (%v,%v)", l, r)
	}
}

func TestAudioBufferSplitAtMatchesWholeIteration(t *testing.T) {
	b := NewAudioBuffer(4)
	b.Forward(3)
	mut := b.NextNFramesMut(3)
	for i := 0; i < 3; i++ {
		l, r := mut.Frame(i)
		*l, *r = float64(i), float64(i)
	}

	ref := b.NextNFramesRef(3)
	left, right := ref.SplitAt(2)
	if left.Len() != 2 || right.Len() != 1 {
		t.Fatalf("split lengths: left=%d right=%d", left.Len(), right.Len())
	}
	for i := 0; i < 2; i++ {
		wl, wr := ref.Frame(i)
		ll, lr := left.Frame(i)
		if wl != ll || wr != lr {
			t.Errorf("left frame %d mismatch", i)
		}
	}
	wl, wr := ref.Frame(2)
	rl, rr := right.Frame(0)
	if wl != rl || wr != rr {
		t.Errorf("right frame 0 mismatch")
	}
}

func TestAudioBufferAddFromAndClear(t *testing.T) {
	b := NewAudioBuffer(4)
	src := NewAudioBuffer(4)

	srcMut := src.NextNFramesMut(4)
	for i := 0; i < 4; i++ {
		l, r := srcMut.Frame(i)
		*l, *r = 1, 1
	}

	dstMut := b.NextNFramesMut(4)
	dstMut.AddFrom(src.NextNFramesRef(4))
	dstMut.AddFrom(src.NextNFramesRef(4))

	ref := b.NextNFramesRef(4)
	for i := 0; i < 4; i++ {
		l, r := ref.Frame(i)
		if l != 2 || r != 2 {
			t.Fatalf("frame %d: expected doubled sum, got (%v,%v)", i, l, r)
		}
	}

	dstMut.Clear()
	for i := 0; i < 4; i++ {
		l, r := ref.Frame(i)
		if l != 0 || r != 0 {
			t.Fatalf("frame %d: expected cleared, got (%v,%v)", i, l, r)
		}
	}
}

func TestAudioBufferForwardWrapsCursor(t *testing.T) {
	b := NewAudioBuffer(4)
	b.Forward(4)
	if b.Cursor() != 0 {
		t.Errorf("expected cursor to wrap to 0, got %d", b.Cursor())
	}
	b.Forward(6)
	if b.Cursor() != 2 {
		t.Errorf("expected cursor 2, got %d", b.Cursor())
	}
}
