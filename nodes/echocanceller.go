package nodes

import rarity "github.com/rarityaudio/rarity"

const (
	echoCancellerDefaultDelayMs = 40.0
	echoCancellerDefaultTapsMs  = 10.0
	echoCancellerDefaultStep    = 0.1
)

// EchoCanceller is an NLMS acoustic echo canceller. Where a capture engine
// runs capture and playback as separate
// goroutines synchronized through a shared ring buffer, the graph delivers
// both signals to the same Process call as two audio inputs (mic at port 0,
// far-end reference at port 1), so the cross-goroutine ring buffer collapses
// to a plain per-channel history slice.
type EchoCanceller struct {
	name     string
	delayLen int
	tapLen   int
	step     float64
	left     nlmsFilter
	right    nlmsFilter
}

// NewEchoCanceller returns an EchoCanceller at a conservative default delay,
// tap length, and step size (scaled to the prepared sample rate).
func NewEchoCanceller(name string) *EchoCanceller {
	e := &EchoCanceller{name: name, step: echoCancellerDefaultStep}
	e.Prepare(48000)
	return e
}

// Name returns the stable identity this node was registered under.
func (e *EchoCanceller) Name() string { return e.name }

// Prepare sizes the bulk delay and filter length to sampleRate, preserving
// a 40ms delay / 10ms tap-length assumption typical of acoustic echo paths.
func (e *EchoCanceller) Prepare(sampleRate float64) {
	e.delayLen = int(sampleRate * echoCancellerDefaultDelayMs / 1000.0)
	e.tapLen = max(int(sampleRate*echoCancellerDefaultTapsMs/1000.0), 1)
	e.left = newNLMSFilter(e.tapLen, e.delayLen)
	e.right = newNLMSFilter(e.tapLen, e.delayLen)
}

func (e *EchoCanceller) Desc() rarity.Desc {
	return rarity.Desc{
		AudioIn: 2,
		Parameters: []rarity.Parameter{
			{Range: rarity.FloatRange{Name: "Step", Min: 0, Max: 2, Default: echoCancellerDefaultStep}},
		},
	}
}

func (e *EchoCanceller) Process(ph *rarity.PlayHead, frames int, audioIn []rarity.AudioBufferRef, audioOut rarity.AudioBufferMut, messageIn *rarity.MessageBuffer) {
	for f, msg := range messageIn.All() {
		if f < frames {
			e.setState(msg)
		}
	}
	mic := audioIn[0]
	far := audioIn[1]
	n := audioOut.Len()
	for i := 0; i < n; i++ {
		micL, micR := mic.Frame(i)
		farL, farR := far.Frame(i)
		outL, outR := audioOut.Frame(i)
		*outL += e.left.step(micL, farL, e.step)
		*outR += e.right.step(micR, farR, e.step)
	}
}

func (e *EchoCanceller) setState(msg rarity.Message) {
	if len(msg.Addr) != 0 {
		return
	}
	if fv, ok := msg.Value.(rarity.FloatValue); ok && fv.Name == "Step" {
		e.step = fv.Value
	}
}

// nlmsFilter is a single-channel NLMS adaptive filter with its own far-end
// delay line, matching a textbook per-sample NLMS update.
// The delay line is a fixed-size ring so the hot per-sample path never
// allocates.
type nlmsFilter struct {
	weights []float64
	history []float64
	head    int
	delay   int
}

func newNLMSFilter(tapLen, delayLen int) nlmsFilter {
	return nlmsFilter{
		weights: make([]float64, tapLen),
		history: make([]float64, delayLen+tapLen),
		delay:   delayLen,
	}
}

// step writes far into the delay line, forms the echo estimate from the
// tapLen window that is delayLen samples old, subtracts it from near, and
// applies the normalised LMS weight update.
func (f *nlmsFilter) step(near, far float64, mu float64) float64 {
	bufLen := len(f.history)
	f.history[f.head] = far
	f.head = (f.head + 1) % bufLen

	tapLen := len(f.weights)
	// base is the ring index of the most-recent tap (k=0); k=tapLen-1 is
	// delayLen+tapLen-1 samples behind the write we just made.
	base := (f.head - 1 - f.delay + 3*bufLen) % bufLen

	var y, powerSum float64
	for k := 0; k < tapLen; k++ {
		idx := (base - k + 3*bufLen) % bufLen
		x := f.history[idx]
		y += f.weights[k] * x
		powerSum += x * x
	}

	e := near - y
	if powerSum > 1e-10 {
		step := mu * e / powerSum
		for k := 0; k < tapLen; k++ {
			idx := (base - k + 3*bufLen) % bufLen
			f.weights[k] += step * f.history[idx]
		}
	}
	return e
}
