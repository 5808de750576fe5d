package nodes

import (
	"math"

	rarity "github.com/rarityaudio/rarity"
)

// WaveFold is a wavefolding distortion effect, grounded on wave_fold.rs: past
// the clamp threshold it reflects the signal back down rather than clipping.
type WaveFold struct {
	name  string
	drive float64
	level float64
}

// NewWaveFold returns a WaveFold with zero drive and unity level.
func NewWaveFold(name string) *WaveFold {
	return &WaveFold{name: name, level: 1}
}

// Name returns the stable identity this node was registered under.
func (w *WaveFold) Name() string { return w.name }

func (w *WaveFold) Desc() rarity.Desc {
	return rarity.Desc{
		AudioIn: 1,
		Parameters: []rarity.Parameter{
			{Range: rarity.FloatRange{Name: "Drive", Min: 0, Max: 1, Default: 0}},
			{Range: rarity.FloatRange{Name: "Level", Min: 0, Max: 1, Default: 1}},
		},
	}
}

func (w *WaveFold) Process(ph *rarity.PlayHead, frames int, audioIn []rarity.AudioBufferRef, audioOut rarity.AudioBufferMut, messageIn *rarity.MessageBuffer) {
	in := audioIn[0]
	currFrame := 0
	inRemain := in
	outRemain := audioOut
	for f, msg := range messageIn.All() {
		if f >= frames {
			break
		}
		if f > frames {
			f = frames
		}
		if currFrame < f {
			output, tmp := outRemain.SplitAt(f - currFrame)
			outRemain = tmp
			input, tmp2 := inRemain.SplitAt(f - currFrame)
			inRemain = tmp2
			w.forward(input, output)
			currFrame = f
		}
		w.setState(msg)
	}
	if currFrame < frames {
		output, _ := outRemain.SplitAt(frames - currFrame)
		input, _ := inRemain.SplitAt(frames - currFrame)
		w.forward(input, output)
	}
}

func (w *WaveFold) setState(msg rarity.Message) {
	if len(msg.Addr) != 0 {
		return
	}
	fv, ok := msg.Value.(rarity.FloatValue)
	if !ok {
		return
	}
	switch fv.Name {
	case "Drive":
		w.drive = fv.Value
	case "Level":
		w.level = fv.Value
	}
}

func (w *WaveFold) forward(input rarity.AudioBufferRef, output rarity.AudioBufferMut) {
	clamp := max(1.0-w.drive, 0.05)
	gain := 1.0 / clamp
	n := output.Len()
	for i := 0; i < n; i++ {
		li, ri := input.Frame(i)
		lo, ro := output.Frame(i)
		*lo += fold(li, clamp) * gain * w.level
		*ro += fold(ri, clamp) * gain * w.level
	}
}

// fold reflects v back into [-clamp, clamp] instead of clipping it, the same
// triangle-wave fold wave_fold.rs computes via rem_euclid.
func fold(v, clamp float64) float64 {
	period := 4.0 * clamp
	x := math.Mod(v+clamp, period)
	if x < 0 {
		x += period
	}
	if x <= 2.0*clamp {
		return x - clamp
	}
	return 3.0*clamp - x
}
