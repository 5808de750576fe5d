package rarity

// Operation is one step of a compiled Graph's per-block execution sequence.
// Every operation names audio/message buffer indices rather than node names,
// so Process never does a name lookup in the hot path.
type operation interface {
	isOperation()
}

// opAudioZeros clears the listed audio buffers' next-frames window.
type opAudioZeros struct{ targets []int }

// opAudioFromInput overwrites the listed audio buffers with the host's
// audio input for this block.
type opAudioFromInput struct{ targets []int }

// opAudioToOutput accumulates the listed audio buffers into the host's
// audio output for this block.
type opAudioToOutput struct{ sources []int }

// opAudioClone overwrites each target buffer with a copy of src.
type opAudioClone struct {
	src     int
	targets []int
}

// opAudioMerge accumulates every source buffer into tgt.
type opAudioMerge struct {
	tgt     int
	sources []int
}

// opMessageZeros clears and re-windows the listed message buffers.
type opMessageZeros struct{ targets []int }

// opMessageFromInput routes messages from the host's message input into
// node message-input buffers by matching each message's trailing address
// segment against the node's name, popping that segment off.
type opMessageFromInput struct {
	targets []messageFromInputTarget
}

type messageFromInputTarget struct {
	buf  int
	name string
}

// opMessageClone appends a copy of every message in src to each target.
type opMessageClone struct {
	src     int
	targets []int
}

// opMessageMerge appends every message in each source to tgt.
type opMessageMerge struct {
	tgt     int
	sources []int
}

// opProcess dispatches to a node, presenting it with the named buffers as
// its audio/message inputs and outputs for this block.
type opProcess struct {
	node       *node
	audioIn    []int
	audioOut   []int
	messageIn  int
	messageOut []int
}

func (opAudioZeros) isOperation()        {}
func (opAudioFromInput) isOperation()    {}
func (opAudioToOutput) isOperation()     {}
func (opAudioClone) isOperation()        {}
func (opAudioMerge) isOperation()        {}
func (opMessageZeros) isOperation()      {}
func (opMessageFromInput) isOperation()  {}
func (opMessageClone) isOperation()      {}
func (opMessageMerge) isOperation()      {}
func (opProcess) isOperation()           {}
