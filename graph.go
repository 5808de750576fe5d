package rarity

import "sort"

// AIn and AOut are the reserved node names that stand for the host's audio
// input and audio output inside a Graph's link declarations. They can never
// be registered as ordinary node names.
const (
	AIn  = "A_IN_NODE"
	AOut = "A_OUT_NODE"
)

type audioLink struct {
	from   string
	to     string
	toPort int
}

type messageLink struct {
	from     string
	fromPort int
	to       string
}

// Graph holds a declared node/link topology and, once Compile runs, the
// buffers and Operation sequence that implement it. Build it by registering
// nodes and links, call Compile once, then call Process once per block.
type Graph struct {
	name  string
	nodes map[string]*node
	order []string

	audioLinks   []audioLink
	messageLinks []messageLink

	taps         []tapRecord
	tappedEdges  map[[2]string]bool
	tapTargets   map[[2]string]map[string]bool

	audioBuffers   []*AudioBuffer
	messageBuffers []*MessageBuffer
	ops            []operation
}

type tapRecord struct {
	from, to, target string
}

// NewGraph returns an empty, named Graph.
func NewGraph(name string) *Graph {
	return &Graph{
		name:        name,
		nodes:       make(map[string]*node),
		tappedEdges: make(map[[2]string]bool),
		tapTargets:  make(map[[2]string]map[string]bool),
	}
}

func (g *Graph) register(n *node) error {
	name := n.name
	if name == AIn || name == AOut {
		return errReservedName(name)
	}
	if _, ok := g.nodes[name]; ok {
		return errRepeatedName(name)
	}
	g.nodes[name] = n
	g.order = append(g.order, name)
	return nil
}

// AddAudioSource registers n under its own Name().
func (g *Graph) AddAudioSource(n AudioSource) error {
	return g.register(newSourceNode(n))
}

// AddAudioEffect registers n under its own Name().
func (g *Graph) AddAudioEffect(n AudioEffect) error {
	return g.register(newEffectNode(n))
}

// AddMidiEffect registers n under its own Name().
func (g *Graph) AddMidiEffect(n MidiEffect) error {
	return g.register(newMidiNode(n))
}

func (g *Graph) resolveSource(name string) (*node, bool) {
	if name == AIn {
		return nil, true
	}
	n, ok := g.nodes[name]
	return n, ok
}

// AddAudioLink links from's audio output to the first audio input of to
// (or, if to is AOut, to the host audio output).
func (g *Graph) AddAudioLink(from, to string) error {
	return g.AddAudioLinkPort(from, to, 0)
}

// AddAudioLinkPort links from's audio output to to's audio input at toPort,
// for effects that take more than one audio input.
func (g *Graph) AddAudioLinkPort(from, to string, toPort int) error {
	if from != AIn {
		n, ok := g.nodes[from]
		if !ok {
			return errUnknownName(from)
		}
		if n.audioOut() != 1 {
			return errInvalidLinkSource(from)
		}
	}
	if to != AOut {
		n, ok := g.nodes[to]
		if !ok {
			return errUnknownName(to)
		}
		if toPort < 0 || toPort >= n.audioIn() {
			return errInvalidLinkTarget(to)
		}
	}
	g.audioLinks = append(g.audioLinks, audioLink{from: from, to: to, toPort: toPort})
	return nil
}

// AddMessageLink links from's first message output to to's message input.
func (g *Graph) AddMessageLink(from, to string) error {
	return g.AddMessageLinkPort(from, 0, to)
}

// AddMessageLinkPort links from's message output at fromPort to to's
// message input.
func (g *Graph) AddMessageLinkPort(from string, fromPort int, to string) error {
	if from == AIn || from == AOut {
		return errInvalidLinkSource(from)
	}
	if to == AIn || to == AOut {
		return errInvalidLinkTarget(to)
	}
	src, ok := g.nodes[from]
	if !ok {
		return errUnknownName(from)
	}
	if fromPort < 0 || fromPort >= src.messageOut() {
		return errInvalidLinkSource(from)
	}
	if _, ok := g.nodes[to]; !ok {
		return errUnknownName(to)
	}
	edge := [2]string{from, to}
	if g.tappedEdges[edge] {
		return errLinkIsTapped(from, to)
	}
	g.messageLinks = append(g.messageLinks, messageLink{from: from, fromPort: fromPort, to: to})
	return nil
}

// audioBufKey identifies either a real node's audio output or the host's
// audio input (AIn) as a uniform source for buffer resolution.
type audioBufKey = string

// compileState carries the Graph.Compile working set.
type compileState struct {
	audioOutBuf map[string]int // node name -> its own output buffer
	hostFwdBuf  int            // lazily allocated host-forward buffer, -1 if unused

	messageInBuf  map[string]int      // node name -> its message-in buffer
	messageOutBuf map[string][]int    // node name -> its message-out buffers

	zeroAudio []int // dedicated buffers needing a pre-block clear
}

func (g *Graph) newAudioBuffer(frames int) int {
	g.audioBuffers = append(g.audioBuffers, NewAudioBuffer(frames))
	return len(g.audioBuffers) - 1
}

func (g *Graph) newMessageBuffer() int {
	g.messageBuffers = append(g.messageBuffers, NewMessageBuffer())
	return len(g.messageBuffers) - 1
}

// Compile validates the declared topology for cycles and builds the internal
// buffers and Operation sequence Process will execute. blockFrames bounds
// the largest block size Process will ever be called with; internal buffers
// are sized to it.
func (g *Graph) Compile(blockFrames int) error {
	order, err := g.topoOrder()
	if err != nil {
		return err
	}

	cs := &compileState{
		audioOutBuf:   make(map[string]int),
		hostFwdBuf:    -1,
		messageInBuf:  make(map[string]int),
		messageOutBuf: make(map[string][]int),
	}
	g.audioBuffers = nil
	g.messageBuffers = nil
	g.ops = nil

	resolveAudioSrc := func(key audioBufKey) int {
		if key == AIn {
			if cs.hostFwdBuf == -1 {
				cs.hostFwdBuf = g.newAudioBuffer(blockFrames)
			}
			return cs.hostFwdBuf
		}
		return cs.audioOutBuf[key]
	}

	for _, name := range g.order {
		n := g.nodes[name]
		if n.audioOut() == 1 {
			cs.audioOutBuf[name] = g.newAudioBuffer(blockFrames)
		}
		cs.messageInBuf[name] = g.newMessageBuffer()
		if mo := n.messageOut(); mo > 0 {
			bufs := make([]int, mo)
			for i := range bufs {
				bufs[i] = g.newMessageBuffer()
			}
			cs.messageOutBuf[name] = bufs
		}
	}

	// audio consumer counts, used to decide alias vs. clone for single-feeder
	// input ports.
	consumers := make(map[string]int)
	for _, l := range g.audioLinks {
		if l.to == AOut {
			continue
		}
		consumers[l.from]++
	}

	// portResolution describes how one audio input port gets its data each
	// block: either it aliases a producer's output buffer directly (aliasSrc
	// set, no copy), or it has its own dedicated buffer fed by a Clone (own
	// is the clone target, sources empty) or a Merge (sources set, own is
	// the merge target).
	type portResolution struct {
		aliasSrc string // non-empty: read this source's buffer directly, no dedicated buffer
		own      int    // dedicated buffer index, valid when aliasSrc == ""
		sources  []string
	}
	audioInResolved := make(map[string][]portResolution)
	cloneGroups := make(map[string][]int) // src key -> dedicated target bufs

	for _, name := range g.order {
		n := g.nodes[name]
		ai := n.audioIn()
		if ai == 0 {
			continue
		}
		resolved := make([]portResolution, ai)
		for p := 0; p < ai; p++ {
			var feeders []string
			for _, l := range g.audioLinks {
				if l.to == name && l.toPort == p {
					feeders = append(feeders, l.from)
				}
			}
			switch len(feeders) {
			case 0:
				buf := g.newAudioBuffer(blockFrames)
				cs.zeroAudio = append(cs.zeroAudio, buf)
				resolved[p] = portResolution{own: buf}
			case 1:
				src := feeders[0]
				if consumers[src] <= 1 {
					resolved[p] = portResolution{aliasSrc: src}
				} else {
					buf := g.newAudioBuffer(blockFrames)
					cloneGroups[src] = append(cloneGroups[src], buf)
					resolved[p] = portResolution{own: buf}
				}
			default:
				buf := g.newAudioBuffer(blockFrames)
				cs.zeroAudio = append(cs.zeroAudio, buf)
				resolved[p] = portResolution{own: buf, sources: feeders}
			}
		}
		audioInResolved[name] = resolved
	}

	// message consumer groups: src (node, port) -> list of buffers to clone
	// into, including tap targets on the same edge. A target fed by more
	// than one message link doesn't get written directly: each producer
	// clones into its own staging buffer, and a single opMessageMerge
	// combines them into the target's message-in buffer once every
	// producer has run (see fanInStaging below).
	type msgKey struct {
		node string
		port int
	}
	targetProducers := make(map[string]int)
	for _, l := range g.messageLinks {
		targetProducers[l.to]++
	}
	fanInStaging := make(map[string][]int) // target node -> staging buffers to merge
	var allStaging []int                   // every staging buffer, cleared and re-windowed each block

	msgGroups := make(map[msgKey][]int)
	for _, l := range g.messageLinks {
		k := msgKey{l.from, l.fromPort}
		if targetProducers[l.to] > 1 {
			staging := g.newMessageBuffer()
			msgGroups[k] = append(msgGroups[k], staging)
			fanInStaging[l.to] = append(fanInStaging[l.to], staging)
			allStaging = append(allStaging, staging)
		} else {
			msgGroups[k] = append(msgGroups[k], cs.messageInBuf[l.to])
		}
	}
	for _, t := range g.taps {
		for _, l := range g.messageLinks {
			if l.from == t.from && l.to == t.to {
				k := msgKey{l.from, l.fromPort}
				msgGroups[k] = append(msgGroups[k], cs.messageInBuf[t.target])
			}
		}
	}

	// --- phase 2: global pre-ops ---
	if len(cs.zeroAudio) > 0 {
		g.ops = append(g.ops, opAudioZeros{targets: append([]int(nil), cs.zeroAudio...)})
	}
	if cs.hostFwdBuf != -1 {
		g.ops = append(g.ops, opAudioFromInput{targets: []int{cs.hostFwdBuf}})
	}
	if bufs, ok := cloneGroups[AIn]; ok {
		g.ops = append(g.ops, opAudioClone{src: resolveAudioSrc(AIn), targets: append([]int(nil), bufs...)})
	}
	if len(allStaging) > 0 {
		g.ops = append(g.ops, opMessageZeros{targets: allStaging})
	}
	{
		var fromInput []messageFromInputTarget
		for _, name := range g.order {
			fromInput = append(fromInput, messageFromInputTarget{buf: cs.messageInBuf[name], name: name})
		}
		g.ops = append(g.ops, opMessageFromInput{targets: fromInput})
	}

	// --- phase 3: topological processing ---
	for _, name := range order {
		n := g.nodes[name]

		if staging, ok := fanInStaging[name]; ok {
			g.ops = append(g.ops, opMessageMerge{tgt: cs.messageInBuf[name], sources: append([]int(nil), staging...)})
		}

		if resolved, ok := audioInResolved[name]; ok {
			for _, r := range resolved {
				if r.aliasSrc == "" && len(r.sources) > 0 {
					// fan-in: merge every source directly into the dedicated buffer.
					srcBufs := make([]int, len(r.sources))
					for i, s := range r.sources {
						srcBufs[i] = resolveAudioSrc(s)
					}
					g.ops = append(g.ops, opAudioMerge{tgt: r.own, sources: srcBufs})
				}
			}
		}

		if mo := n.messageOut(); mo > 0 {
			g.ops = append(g.ops, opMessageZeros{targets: append([]int(nil), cs.messageOutBuf[name]...)})
		}

		audioIn := make([]int, n.audioIn())
		for p, r := range audioInResolved[name] {
			if r.aliasSrc != "" {
				audioIn[p] = resolveAudioSrc(r.aliasSrc)
			} else {
				audioIn[p] = r.own
			}
		}
		var audioOut []int
		if n.audioOut() == 1 {
			audioOut = []int{cs.audioOutBuf[name]}
		}

		g.ops = append(g.ops, opProcess{
			node:       n,
			audioIn:    audioIn,
			audioOut:   audioOut,
			messageIn:  cs.messageInBuf[name],
			messageOut: cs.messageOutBuf[name],
		})

		if bufs, ok := cloneGroups[name]; ok {
			g.ops = append(g.ops, opAudioClone{src: cs.audioOutBuf[name], targets: append([]int(nil), bufs...)})
		}
		for port := 0; port < n.messageOut(); port++ {
			if targets, ok := msgGroups[msgKey{name, port}]; ok {
				g.ops = append(g.ops, opMessageClone{src: cs.messageOutBuf[name][port], targets: append([]int(nil), targets...)})
			}
		}
	}

	// --- phase 4: audio output ---
	var outSrcs []int
	for _, l := range g.audioLinks {
		if l.to == AOut {
			outSrcs = append(outSrcs, resolveAudioSrc(l.from))
		}
	}
	if len(outSrcs) > 0 {
		g.ops = append(g.ops, opAudioToOutput{sources: outSrcs})
	}

	return nil
}

// topoOrder returns node names in dependency order (producers before
// consumers), or a Cycle error naming one node still unresolved.
func (g *Graph) topoOrder() (order []string, err error) {
	indeg := make(map[string]int, len(g.order))
	adj := make(map[string][]string, len(g.order))
	for _, name := range g.order {
		indeg[name] = 0
	}
	addEdge := func(from, to string) {
		if from == AIn || from == AOut || to == AIn || to == AOut {
			return
		}
		adj[from] = append(adj[from], to)
		indeg[to]++
	}
	for _, l := range g.audioLinks {
		addEdge(l.from, l.to)
	}
	for _, l := range g.messageLinks {
		addEdge(l.from, l.to)
	}
	for _, t := range g.taps {
		addEdge(t.from, t.target)
	}

	var queue []string
	for _, name := range g.order {
		if indeg[name] == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		next := append([]string(nil), adj[name]...)
		sort.Strings(next)
		for _, to := range next {
			indeg[to]--
			if indeg[to] == 0 {
				queue = append(queue, to)
				sort.Strings(queue)
			}
		}
	}

	if len(order) != len(g.order) {
		for _, name := range g.order {
			if indeg[name] > 0 {
				return nil, errCycle(name)
			}
		}
	}
	return order, nil
}

// Process runs one block through the compiled Operation sequence. audioIn is
// the host's input for this block, audioOut accumulates the host's output
// (callers should clear it themselves beforehand if they don't want to mix
// with stale samples), and messageIn carries externally routed control
// messages addressed by node name.
func (g *Graph) Process(ph *PlayHead, frames int, audioIn AudioBufferRef, audioOut AudioBufferMut, messageIn *MessageBuffer) {
	for _, op := range g.ops {
		switch o := op.(type) {
		case opAudioZeros:
			for _, i := range o.targets {
				g.audioBuffers[i].NextNFramesMut(frames).Clear()
			}
		case opAudioFromInput:
			for _, i := range o.targets {
				g.audioBuffers[i].NextNFramesMut(frames).CopyFrom(audioIn)
			}
		case opAudioToOutput:
			for _, i := range o.sources {
				audioOut.AddFrom(g.audioBuffers[i].NextNFramesRef(frames))
			}
		case opAudioClone:
			src := g.audioBuffers[o.src].NextNFramesRef(frames)
			for _, i := range o.targets {
				g.audioBuffers[i].NextNFramesMut(frames).CopyFrom(src)
			}
		case opAudioMerge:
			tgt := g.audioBuffers[o.tgt].NextNFramesMut(frames)
			for _, i := range o.sources {
				tgt.AddFrom(g.audioBuffers[i].NextNFramesRef(frames))
			}
		case opMessageZeros:
			for _, i := range o.targets {
				g.messageBuffers[i].Clear()
				g.messageBuffers[i].SetWindow(frames)
			}
		case opMessageFromInput:
			for _, t := range o.targets {
				tgt := g.messageBuffers[t.buf]
				tgt.Clear()
				tgt.SetWindow(frames)
				for f, m := range messageIn.All() {
					if len(m.Addr) == 0 {
						continue
					}
					if m.Addr[len(m.Addr)-1] != t.name {
						continue
					}
					_, rest := m.Pop()
					tgt.Add(f, rest)
				}
			}
		case opMessageClone:
			src := g.messageBuffers[o.src]
			for f, m := range src.All() {
				for _, i := range o.targets {
					g.messageBuffers[i].Add(f, m)
				}
			}
		case opMessageMerge:
			tgt := g.messageBuffers[o.tgt]
			for _, i := range o.sources {
				for f, m := range g.messageBuffers[i].All() {
					tgt.Add(f, m)
				}
			}
		case opProcess:
			audioInViews := make([]AudioBufferRef, len(o.audioIn))
			for i, b := range o.audioIn {
				audioInViews[i] = g.audioBuffers[b].NextNFramesRef(frames)
			}
			audioOutViews := make([]AudioBufferMut, len(o.audioOut))
			for i, b := range o.audioOut {
				audioOutViews[i] = g.audioBuffers[b].NextNFramesMut(frames)
			}
			messageOutViews := make([]*MessageBuffer, len(o.messageOut))
			for i, b := range o.messageOut {
				messageOutViews[i] = g.messageBuffers[b]
			}
			o.node.process(ph, frames, audioInViews, audioOutViews, g.messageBuffers[o.messageIn], messageOutViews)
		}
	}

	for _, b := range g.audioBuffers {
		b.Forward(frames)
	}
}
