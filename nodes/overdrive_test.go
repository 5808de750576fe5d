package nodes

import (
	"testing"

	rarity "github.com/rarityaudio/rarity"
)

func newStereoBuffers(frames int, l, r float64) (rarity.AudioBufferRef, rarity.AudioBufferMut) {
	in := rarity.NewAudioBuffer(frames)
	inMut := in.NextNFramesMut(frames)
	for i := 0; i < frames; i++ {
		li, ri := inMut.Frame(i)
		*li, *ri = l, r
	}
	out := rarity.NewAudioBuffer(frames)
	return in.NextNFramesRef(frames), out.NextNFramesMut(frames)
}

func TestOverdrivePassesUnityAtZeroDrive(t *testing.T) {
	const frames = 32
	inRef, outMut := newStereoBuffers(frames, 0.4, -0.4)
	od := NewOverdrive("od")

	mb := rarity.NewMessageBuffer()
	mb.SetWindow(frames)
	od.Process(nil, frames, []rarity.AudioBufferRef{inRef}, outMut, mb)

	l, r := outMut.Ref().Frame(0)
	if l != 0.4 || r != -0.4 {
		t.Errorf("expected pass-through at zero drive/unity level, got (%v,%v)", l, r)
	}
}

func TestOverdriveClampsAtHighDrive(t *testing.T) {
	const frames = 16
	inRef, outMut := newStereoBuffers(frames, 1.0, 1.0)
	od := NewOverdrive("od")

	mb := rarity.NewMessageBuffer()
	mb.SetWindow(frames)
	mb.Add(0, rarity.Message{Value: rarity.FloatValue{Name: "Drive", Value: 0.99}})
	od.Process(nil, frames, []rarity.AudioBufferRef{inRef}, outMut, mb)

	l, _ := outMut.Ref().Frame(0)
	if l > 1.0001 || l < 0.0 {
		t.Errorf("expected clamped output near [0,1], got %v", l)
	}
}
