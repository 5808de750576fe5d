package nodes

import (
	"math"

	rarity "github.com/rarityaudio/rarity"
)

const (
	noiseGateDefaultThreshold = 0.01
	noiseGateDefaultHoldMs    = 200.0
)

// NoiseGate zeroes windows of audio whose RMS falls below a threshold,
// adapted from a mono-PCM noise gate to stereo float64 blocks:
// rather than gating fixed 20ms chunks, it walks the block in
// sample-rate-scaled analysis windows of the same duration.
type NoiseGate struct {
	name       string
	threshold  float64
	holdFrames int
	remaining  int
	window     int
}

// NewNoiseGate returns a NoiseGate with a conservative default threshold and
// hold time.
func NewNoiseGate(name string) *NoiseGate {
	return &NoiseGate{name: name, threshold: noiseGateDefaultThreshold, window: 960}
}

// Name returns the stable identity this node was registered under.
func (g *NoiseGate) Name() string { return g.name }

// Prepare sizes the analysis window to ~20ms and the hold to ~200ms at
// sampleRate, matching the usual 960-sample/48kHz frame assumption.
func (g *NoiseGate) Prepare(sampleRate float64) {
	g.window = max(int(sampleRate*0.02), 1)
	g.holdFrames = int(sampleRate * noiseGateDefaultHoldMs / 1000.0)
}

func (g *NoiseGate) Desc() rarity.Desc {
	return rarity.Desc{
		AudioIn: 1,
		Parameters: []rarity.Parameter{
			{Range: rarity.FloatRange{Name: "Threshold", Min: 0, Max: 1, Default: 0.01}},
		},
	}
}

func (g *NoiseGate) Process(ph *rarity.PlayHead, frames int, audioIn []rarity.AudioBufferRef, audioOut rarity.AudioBufferMut, messageIn *rarity.MessageBuffer) {
	in := audioIn[0]
	for f, msg := range messageIn.All() {
		if f < frames {
			g.setState(msg)
		}
	}
	pos := 0
	remainIn, remainOut := in, audioOut
	for pos < frames {
		n := min(g.window, frames-pos)
		var winIn rarity.AudioBufferRef
		var winOut rarity.AudioBufferMut
		winIn, remainIn = remainIn.SplitAt(n)
		winOut, remainOut = remainOut.SplitAt(n)
		g.processWindow(winIn, winOut)
		pos += n
	}
}

func (g *NoiseGate) setState(msg rarity.Message) {
	if len(msg.Addr) != 0 {
		return
	}
	if fv, ok := msg.Value.(rarity.FloatValue); ok && fv.Name == "Threshold" {
		g.threshold = fv.Value
	}
}

func (g *NoiseGate) processWindow(in rarity.AudioBufferRef, out rarity.AudioBufferMut) {
	n := in.Len()
	if n == 0 {
		return
	}
	var sumSq float64
	for i := 0; i < n; i++ {
		l, r := in.Frame(i)
		sumSq += l*l + r*r
	}
	rms := math.Sqrt(sumSq / float64(n*2))

	open := true
	if rms >= g.threshold {
		g.remaining = g.holdFrames
	} else if g.remaining > 0 {
		g.remaining -= n
	} else {
		open = false
	}

	if !open {
		return
	}
	for i := 0; i < n; i++ {
		l, r := in.Frame(i)
		lo, ro := out.Frame(i)
		*lo += l
		*ro += r
	}
}
