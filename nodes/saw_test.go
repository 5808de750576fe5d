package nodes

import (
	"testing"

	rarity "github.com/rarityaudio/rarity"
)

func TestSawSilentWithoutNoteOn(t *testing.T) {
	const frames = 64
	saw := NewSaw("saw", 4)
	saw.Prepare(48000)

	out := rarity.NewAudioBuffer(frames)
	mb := rarity.NewMessageBuffer()
	mb.SetWindow(frames)
	saw.Process(nil, frames, out.NextNFramesMut(frames), mb)

	ref := out.NextNFramesRef(frames)
	for i := 0; i < frames; i++ {
		l, r := ref.Frame(i)
		if l != 0 || r != 0 {
			t.Fatalf("expected silence with no active voice, got (%v,%v) at frame %d", l, r, i)
		}
	}
}

func TestSawProducesSoundAfterNoteOn(t *testing.T) {
	const frames = 500 // long enough to clear the default ~48-sample attack ramp
	saw := NewSaw("saw", 4)
	saw.Prepare(48000)

	out := rarity.NewAudioBuffer(frames)
	mb := rarity.NewMessageBuffer()
	mb.SetWindow(frames)
	mb.Add(0, rarity.Message{Value: rarity.NoteOn{Pitch: 60, Velocity: 100}})
	saw.Process(nil, frames, out.NextNFramesMut(frames), mb)

	ref := out.NextNFramesRef(frames)
	nonzero := false
	for i := 0; i < frames; i++ {
		l, _ := ref.Frame(i)
		if l != 0 {
			nonzero = true
			break
		}
	}
	if !nonzero {
		t.Error("expected a non-silent frame somewhere after NoteOn")
	}
}

func TestSawVoiceStealingReusesVoiceOnRepeatedNoteOn(t *testing.T) {
	const frames = 32
	saw := NewSaw("saw", 1) // exactly one voice, forces reuse/steal behavior
	saw.Prepare(48000)

	out := rarity.NewAudioBuffer(frames)
	mb := rarity.NewMessageBuffer()
	mb.SetWindow(frames)
	mb.Add(0, rarity.Message{Value: rarity.NoteOn{Pitch: 60, Velocity: 100}})
	mb.Add(1, rarity.Message{Value: rarity.NoteOn{Pitch: 64, Velocity: 100}})

	// With only one voice available, the second NoteOn must not panic — it
	// steals the one sounding voice for the new pitch.
	saw.Process(nil, frames, out.NextNFramesMut(frames), mb)

	if saw.voices[0].pitch != 64 {
		t.Errorf("expected the single voice to be reused for pitch 64, got pitch %d", saw.voices[0].pitch)
	}
}
