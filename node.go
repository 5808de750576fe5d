package rarity

// Desc self-describes a node's variable arity: how many audio inputs it
// takes (effects only) or message outputs it produces (midi effects only),
// plus the parameters it exposes. The Graph fills in the fixed parts of a
// node's arity itself — see node.audioIn, node.audioOut and node.messageOut.
type Desc struct {
	AudioIn    int
	MessageOut int
	Parameters []Parameter
}

// AudioSource produces one audio output from nothing but its own state and
// control messages. It never emits messages of its own.
type AudioSource interface {
	Name() string
	Desc() Desc
	Process(ph *PlayHead, frames int, audioOut AudioBufferMut, messageIn *MessageBuffer)
}

// AudioEffect transforms Desc().AudioIn audio inputs into exactly one audio
// output. Like AudioSource, it consumes messages but never produces them —
// only MidiEffect nodes sit in the message-output role.
type AudioEffect interface {
	Name() string
	Desc() Desc
	Process(ph *PlayHead, frames int, audioIn []AudioBufferRef, audioOut AudioBufferMut, messageIn *MessageBuffer)
}

// MidiEffect has no audio ports at all: it transforms one message input into
// Desc().MessageOut message outputs. Useful for routing, transposition,
// arpeggiation — anything that only reshapes control data.
type MidiEffect interface {
	Name() string
	Desc() Desc
	Process(ph *PlayHead, frames int, messageOut []*MessageBuffer, messageIn *MessageBuffer)
}

// nodeKind tags which of the three flavors a node wraps.
type nodeKind int

const (
	kindAudioSource nodeKind = iota
	kindAudioEffect
	kindMidiEffect
)

// node is the uniform wrapper the Graph stores and dispatches through,
// replacing what the source engine does with a hand-built vtable over a
// trait object: a tagged union plus a single dispatching method is the
// idiomatic Go shape for "one of three fixed interfaces, called uniformly".
type node struct {
	kind   nodeKind
	name   string
	source AudioSource
	effect AudioEffect
	midi   MidiEffect
}

func newSourceNode(n AudioSource) *node {
	return &node{kind: kindAudioSource, name: n.Name(), source: n}
}

func newEffectNode(n AudioEffect) *node {
	return &node{kind: kindAudioEffect, name: n.Name(), effect: n}
}

func newMidiNode(n MidiEffect) *node {
	return &node{kind: kindMidiEffect, name: n.Name(), midi: n}
}

// audioIn returns how many audio inputs this node takes: always 0 for a
// source or midi effect, Desc().AudioIn for an effect.
func (n *node) audioIn() int {
	if n.kind == kindAudioEffect {
		return n.effect.Desc().AudioIn
	}
	return 0
}

// audioOut returns how many audio outputs this node has: 1 for a source or
// effect, 0 for a midi effect.
func (n *node) audioOut() int {
	if n.kind == kindMidiEffect {
		return 0
	}
	return 1
}

// messageOut returns how many message outputs this node has: 0 unless it's
// a midi effect.
func (n *node) messageOut() int {
	if n.kind == kindMidiEffect {
		return n.midi.Desc().MessageOut
	}
	return 0
}

func (n *node) parameters() []Parameter {
	switch n.kind {
	case kindAudioSource:
		return n.source.Desc().Parameters
	case kindAudioEffect:
		return n.effect.Desc().Parameters
	default:
		return n.midi.Desc().Parameters
	}
}

// process dispatches to the wrapped node's Process. audioOut and messageOut
// are passed as slices regardless of kind so the scheduler has one call
// shape: audioOut holds one view for a source or effect and none for a midi
// effect, messageOut holds one buffer per message output. process unwraps
// audioOut[0] for sources and effects to match each interface's real
// signature.
func (n *node) process(ph *PlayHead, frames int, audioIn []AudioBufferRef, audioOut []AudioBufferMut, messageIn *MessageBuffer, messageOut []*MessageBuffer) {
	switch n.kind {
	case kindAudioSource:
		n.source.Process(ph, frames, audioOut[0], messageIn)
	case kindAudioEffect:
		n.effect.Process(ph, frames, audioIn, audioOut[0], messageIn)
	case kindMidiEffect:
		n.midi.Process(ph, frames, messageOut, messageIn)
	}
}
