package nodes

import (
	"math"

	rarity "github.com/rarityaudio/rarity"
)

const (
	autoGainDefaultTarget = 0.20
	autoGainMinGain       = 0.1
	autoGainMaxGain       = 10.0
	autoGainAttackCoeff   = 0.80
	autoGainReleaseCoeff  = 0.02
	autoGainMinRMS        = 0.001
)

// AutoGain is a single-channel-equivalent automatic gain control adapted to
// stereo float64 blocks, grounded on a per-frame AGC design: an
// asymmetric attack/release smoother driving a gain toward a target RMS.
type AutoGain struct {
	name   string
	target float64
	gain   float64
	window int
}

// NewAutoGain returns an AutoGain at unity gain and a conservative default
// target level.
func NewAutoGain(name string) *AutoGain {
	return &AutoGain{name: name, target: autoGainDefaultTarget, gain: 1.0, window: 960}
}

// Name returns the stable identity this node was registered under.
func (a *AutoGain) Name() string { return a.name }

// Prepare sizes the analysis window to ~20ms at sampleRate.
func (a *AutoGain) Prepare(sampleRate float64) {
	a.window = max(int(sampleRate*0.02), 1)
}

func (a *AutoGain) Desc() rarity.Desc {
	return rarity.Desc{
		AudioIn: 1,
		Parameters: []rarity.Parameter{
			{Range: rarity.FloatRange{Name: "Target", Min: 0.01, Max: 0.50, Default: autoGainDefaultTarget}},
		},
	}
}

func (a *AutoGain) Process(ph *rarity.PlayHead, frames int, audioIn []rarity.AudioBufferRef, audioOut rarity.AudioBufferMut, messageIn *rarity.MessageBuffer) {
	in := audioIn[0]
	for f, msg := range messageIn.All() {
		if f < frames {
			a.setState(msg)
		}
	}
	pos := 0
	remainIn, remainOut := in, audioOut
	for pos < frames {
		n := min(a.window, frames-pos)
		var winIn rarity.AudioBufferRef
		var winOut rarity.AudioBufferMut
		winIn, remainIn = remainIn.SplitAt(n)
		winOut, remainOut = remainOut.SplitAt(n)
		a.processWindow(winIn, winOut)
		pos += n
	}
}

func (a *AutoGain) setState(msg rarity.Message) {
	if len(msg.Addr) != 0 {
		return
	}
	if fv, ok := msg.Value.(rarity.FloatValue); ok && fv.Name == "Target" {
		a.target = fv.Value
	}
}

func (a *AutoGain) processWindow(in rarity.AudioBufferRef, out rarity.AudioBufferMut) {
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

	for i := 0; i < n; i++ {
		l, r := in.Frame(i)
		lo, ro := out.Frame(i)
		*lo += clampf(l*a.gain, -1, 1)
		*ro += clampf(r*a.gain, -1, 1)
	}

	if rms < autoGainMinRMS {
		return
	}
	desired := clampf(a.target/rms, autoGainMinGain, autoGainMaxGain)
	coeff := autoGainReleaseCoeff
	if desired < a.gain {
		coeff = autoGainAttackCoeff
	}
	a.gain += coeff * (desired - a.gain)
}
