package nodes

import rarity "github.com/rarityaudio/rarity"

const transposeRange = 24

// Transpose shifts NoteOn/NoteOff pitches by a configurable number of
// semitones and forwards every other message unchanged. It has no audio
// ports: a pure message-reshaping MidiEffect, the kind raw.rs singles out as
// the only node flavor allowed to produce message outputs.
type Transpose struct {
	name      string
	semitones int
}

// NewTranspose returns a Transpose at zero semitones.
func NewTranspose(name string) *Transpose {
	return &Transpose{name: name}
}

// Name returns the stable identity this node was registered under.
func (t *Transpose) Name() string { return t.name }

func (t *Transpose) Desc() rarity.Desc {
	return rarity.Desc{
		MessageOut: 1,
		Parameters: []rarity.Parameter{
			{Range: rarity.EnumRange{Name: "Semitones", Len: 2*transposeRange + 1, Default: transposeRange}},
		},
	}
}

func (t *Transpose) Process(ph *rarity.PlayHead, frames int, messageOut []*rarity.MessageBuffer, messageIn *rarity.MessageBuffer) {
	out := messageOut[0]
	for f, msg := range messageIn.All() {
		if len(msg.Addr) == 0 && t.setState(msg) {
			continue
		}
		out.Add(f, t.shift(msg))
	}
}

// setState applies a control message addressed to this node and reports
// whether it consumed it (true) or it should still be forwarded (false).
func (t *Transpose) setState(msg rarity.Message) bool {
	ev, ok := msg.Value.(rarity.EnumValue)
	if !ok || ev.Name != "Semitones" {
		return false
	}
	t.semitones = ev.Value - transposeRange
	return true
}

func (t *Transpose) shift(msg rarity.Message) rarity.Message {
	switch v := msg.Value.(type) {
	case rarity.NoteOn:
		v.Pitch = shiftPitch(v.Pitch, t.semitones)
		return rarity.Message{Addr: msg.Addr, Value: v}
	case rarity.NoteOff:
		v.Pitch = shiftPitch(v.Pitch, t.semitones)
		return rarity.Message{Addr: msg.Addr, Value: v}
	default:
		return msg
	}
}

func shiftPitch(pitch uint8, semitones int) uint8 {
	shifted := int(pitch) + semitones
	if shifted < 0 {
		return 0
	}
	if shifted > 127 {
		return 127
	}
	return uint8(shifted)
}
