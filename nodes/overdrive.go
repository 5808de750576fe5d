package nodes

import rarity "github.com/rarityaudio/rarity"

// Overdrive is a hard-clipping drive/level effect, grounded on
// digital_overdrive.rs.
type Overdrive struct {
	name  string
	drive float64
	level float64
}

// NewOverdrive returns an Overdrive with zero drive and unity level.
func NewOverdrive(name string) *Overdrive {
	return &Overdrive{name: name, level: 1}
}

// Name returns the stable identity this node was registered under.
func (o *Overdrive) Name() string { return o.name }

func (o *Overdrive) Desc() rarity.Desc {
	return rarity.Desc{
		AudioIn: 1,
		Parameters: []rarity.Parameter{
			{Range: rarity.FloatRange{Name: "Drive", Min: 0, Max: 1, Default: 0}},
			{Range: rarity.FloatRange{Name: "Level", Min: 0, Max: 1, Default: 1}},
		},
	}
}

func (o *Overdrive) Process(ph *rarity.PlayHead, frames int, audioIn []rarity.AudioBufferRef, audioOut rarity.AudioBufferMut, messageIn *rarity.MessageBuffer) {
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
			o.forward(input, output)
			currFrame = f
		}
		o.setState(msg)
	}
	if currFrame < frames {
		output, _ := outRemain.SplitAt(frames - currFrame)
		input, _ := inRemain.SplitAt(frames - currFrame)
		o.forward(input, output)
	}
}

func (o *Overdrive) setState(msg rarity.Message) {
	if len(msg.Addr) != 0 {
		return
	}
	fv, ok := msg.Value.(rarity.FloatValue)
	if !ok {
		return
	}
	switch fv.Name {
	case "Drive":
		o.drive = fv.Value
	case "Level":
		o.level = fv.Value
	}
}

func (o *Overdrive) forward(input rarity.AudioBufferRef, output rarity.AudioBufferMut) {
	clamp := max(1.0-o.drive, 0.05)
	gain := 1.0 / clamp
	n := output.Len()
	for i := 0; i < n; i++ {
		li, ri := input.Frame(i)
		lo, ro := output.Frame(i)
		*lo = clampf(*lo+li*gain, -clamp, clamp) * o.level
		*ro = clampf(*ro+ri*gain, -clamp, clamp) * o.level
	}
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
