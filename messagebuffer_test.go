package rarity

import "testing"

func TestMessageBufferAddIsStableSortedByFrame(t *testing.T) {
	b := NewMessageBuffer()
	b.SetWindow(100)

	b.Add(10, Message{Value: FloatValue{Name: "second"}})
	b.Add(5, Message{Value: FloatValue{Name: "first"}})
	b.Add(10, Message{Value: FloatValue{Name: "third"}}) // same frame as "second", arrives later

	if b.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", b.Len())
	}

	f0, m0 := b.At(0)
	f1, m1 := b.At(1)
	f2, m2 := b.At(2)

	if f0 != 5 || m0.Value.(FloatValue).Name != "first" {
		t.Errorf("entry 0: want frame=5 name=first, got frame=%d msg=%v", f0, m0)
	}
	if f1 != 10 || m1.Value.(FloatValue).Name != "second" {
		t.Errorf("entry 1: want frame=10 name=second, got frame=%d msg=%v", f1, m1)
	}
	if f2 != 10 || m2.Value.(FloatValue).Name != "third" {
		t.Errorf("entry 2: want frame=10 name=third (FIFO tie-break), got frame=%d msg=%v", f2, m2)
	}
}

func TestMessageBufferAddOutOfWindowPanics(t *testing.T) {
	b := NewMessageBuffer()
	b.SetWindow(10)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-window frame")
		}
	}()
	b.Add(10, Message{Value: FloatValue{Name: "oops"}})
}

func TestMessageBufferClearPreservesWindow(t *testing.T) {
	b := NewMessageBuffer()
	b.SetWindow(50)
	b.Add(1, Message{Value: FloatValue{Name: "x"}})
	b.Clear()

	if !b.IsEmpty() {
		t.Error("expected buffer to be empty after Clear")
	}
	if b.FrameWindow() != 50 {
		t.Errorf("expected window to survive Clear, got %d", b.FrameWindow())
	}
}

func TestMessageBufferAllIteratesInOrder(t *testing.T) {
	b := NewMessageBuffer()
	b.SetWindow(20)
	b.Add(15, Message{Value: FloatValue{Name: "c"}})
	b.Add(1, Message{Value: FloatValue{Name: "a"}})
	b.Add(7, Message{Value: FloatValue{Name: "b"}})

	var names []string
	for _, m := range b.All() {
		names = append(names, m.Value.(FloatValue).Name)
	}
	want := []string{"a", "b", "c"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("index %d: want %q, got %q", i, n, names[i])
		}
	}
}

func TestMessagePopConsumesTrailingSegment(t *testing.T) {
	msg := Message{Addr: []string{"outer", "inner"}, Value: FloatValue{Name: "gain"}}
	segment, rest := msg.Pop()

	if segment != "inner" {
		t.Errorf("expected popped segment %q, got %q", "inner", segment)
	}
	if len(rest.Addr) != 1 || rest.Addr[0] != "outer" {
		t.Errorf("expected remaining Addr [outer], got %v", rest.Addr)
	}
	// original must be untouched — Pop returns a copy, never mutates in place.
	if len(msg.Addr) != 2 {
		t.Errorf("expected original Addr untouched, got %v", msg.Addr)
	}
}

func TestMessagePopOnEmptyAddrIsNoop(t *testing.T) {
	msg := Message{Value: FloatValue{Name: "x"}}
	segment, rest := msg.Pop()
	if segment != "" {
		t.Errorf("expected empty segment, got %q", segment)
	}
	if len(rest.Addr) != 0 {
		t.Errorf("expected empty Addr, got %v", rest.Addr)
	}
}
