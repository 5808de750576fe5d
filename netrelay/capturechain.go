package netrelay

import (
	"math"
	"sync"
)

// CaptureChain turns a raw mono float32 capture frame into int16 PCM ready
// for Opus encoding, running a fixed pipeline: echo cancellation first so
// every later stage sees a clean signal, then a noise gate, then automatic
// gain control, then a voice gate that decides whether the frame is worth
// sending at all. Every stage here is link-local state, not the in-graph
// equivalents nodes.NoiseGate/nodes.AutoGain/nodes.EchoCanceller process —
// a host feeding a Link talks PCM frames outside the graph entirely.
type CaptureChain struct {
	echo    *echoCanceller
	gate    *noiseGate
	leveler *gainLeveler
	voice   *voiceGate

	echoEnabled bool
	agcEnabled  bool
}

// NewCaptureChain builds a chain sized for one frameSize-sample mono frame
// (960 samples = 20 ms at 48 kHz). All stages start enabled.
func NewCaptureChain(frameSize int) *CaptureChain {
	return &CaptureChain{
		echo:        newEchoCanceller(frameSize),
		gate:        newNoiseGate(),
		leveler:     newGainLeveler(),
		voice:       newVoiceGate(),
		echoEnabled: true,
		agcEnabled:  true,
	}
}

// SetAECEnabled toggles echo cancellation.
func (c *CaptureChain) SetAECEnabled(on bool) { c.echoEnabled = on }

// SetGateEnabled toggles the noise gate.
func (c *CaptureChain) SetGateEnabled(on bool) { c.gate.enabled = on }

// SetAGCEnabled toggles automatic gain control.
func (c *CaptureChain) SetAGCEnabled(on bool) { c.agcEnabled = on }

// FeedFarEnd stores the most recent frame played out to the speaker, used
// by the echo canceller as its reference signal. Call this from whatever
// goroutine fills the playback buffer.
func (c *CaptureChain) FeedFarEnd(frame []float32) {
	c.echo.feedReference(frame)
}

// InputLevel reports the frame RMS before the noise gate, suitable for
// driving an input level meter.
func (c *CaptureChain) InputLevel(frame []float32) float32 {
	return rmsOf(frame)
}

// Process runs frame through echo cancellation, the noise gate, and AGC in
// place, then reports whether the voice gate thinks the result is worth
// transmitting. Callers that skip a false result avoid encoding and
// sending silence.
func (c *CaptureChain) Process(frame []float32) (send bool) {
	if c.echoEnabled {
		c.echo.cancel(frame)
	}
	c.gate.process(frame)
	if c.agcEnabled {
		c.leveler.apply(frame)
	}
	return c.voice.shouldSend(rmsOf(frame))
}

// ToPCM16 converts a processed float32 frame to clamped int16 PCM, the
// format the Opus encoder expects.
func ToPCM16(frame []float32, out []int16) {
	for i, s := range frame {
		out[i] = int16(clampFloat32(s) * 32767)
	}
}

// FromPCM16 converts decoded int16 PCM back to float32 in [-1,1], the shape
// FeedFarEnd and a playback buffer both expect.
func FromPCM16(pcm []int16, out []float32) {
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
}

func clampFloat32(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}

// rmsOf returns the root-mean-square of a float32 PCM frame. The noise
// gate, voice gate, and gain leveler all key off this same measurement so
// a single pass computes it once per stage rather than each stage carrying
// its own copy.
func rmsOf(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(frame))))
}

// holdGate tracks an RMS threshold crossing with a hold/hangover counter:
// once open, it stays open for hold frames after the signal drops back
// below threshold, so a brief dip mid-word doesn't chop the signal. The
// noise gate and the voice gate are both instances of this same shape,
// differing only in what they do with a closed frame.
type holdGate struct {
	threshold float32
	hold      int
	remaining int
	open      bool
}

// poll reports whether the gate is open for a frame at the given RMS,
// advancing the hold counter.
func (h *holdGate) poll(rms float32) bool {
	if rms >= h.threshold {
		h.remaining = h.hold
		h.open = true
		return true
	}
	if h.remaining > 0 {
		h.remaining--
		h.open = true
		return true
	}
	h.open = false
	return false
}

// noiseGate zeroes a frame outright once it has been closed below
// threshold for longer than the hold period.
type noiseGate struct {
	holdGate
	enabled bool
}

const (
	noiseGateThreshold = float32(0.01) // ~-40 dBFS
	noiseGateHold      = 10            // 200 ms at 20 ms/frame
)

func newNoiseGate() *noiseGate {
	return &noiseGate{
		holdGate: holdGate{threshold: noiseGateThreshold, hold: noiseGateHold},
		enabled:  true,
	}
}

// process zeroes frame in-place if it is below threshold and the hold
// period has expired, returning the pre-gate RMS for level metering.
func (g *noiseGate) process(frame []float32) float32 {
	rms := rmsOf(frame)
	if !g.enabled {
		g.open = true
		return rms
	}
	if !g.poll(rms) {
		for i := range frame {
			frame[i] = 0
		}
	}
	return rms
}

// voiceGate decides whether a (possibly already gated) frame is worth
// transmitting at all, independent of the noise gate's zeroing.
type voiceGate struct {
	holdGate
	enabled bool
}

const (
	voiceGateThreshold = float32(0.005) // ~-46 dBFS
	voiceGateHangover  = 20             // 400 ms at 20 ms/frame
)

func newVoiceGate() *voiceGate {
	return &voiceGate{
		holdGate: holdGate{threshold: voiceGateThreshold, hold: voiceGateHangover},
		enabled:  true,
	}
}

func (v *voiceGate) shouldSend(rms float32) bool {
	if !v.enabled {
		return true
	}
	return v.poll(rms)
}

// gainLeveler is a single-channel automatic gain control stage: it drives
// frame RMS toward a target level with independent attack (fast, gain
// down) and release (slow, gain up) coefficients so loud transients are
// tamed quickly but recovery after them doesn't pump.
type gainLeveler struct {
	target float64
	gain   float64
}

const (
	gainTarget  = 0.20 // desired RMS, linear (~-14 dBFS)
	gainMin     = 0.1
	gainMax     = 10.0
	gainAttack  = 0.80
	gainRelease = 0.02
	gainFloor   = 0.001 // below this RMS, skip the update entirely
)

func newGainLeveler() *gainLeveler {
	return &gainLeveler{target: gainTarget, gain: 1.0}
}

// apply scales frame in-place by the current gain, then re-estimates the
// gain from the frame's RMS for the next call.
func (a *gainLeveler) apply(frame []float32) {
	if len(frame) == 0 {
		return
	}
	for i, s := range frame {
		frame[i] = clampFloat32(s * float32(a.gain))
	}

	rms := float64(rmsOf(frame))
	if rms < gainFloor {
		return
	}

	desired := a.target / rms
	if desired < gainMin {
		desired = gainMin
	} else if desired > gainMax {
		desired = gainMax
	}

	coeff := gainRelease
	if desired < a.gain {
		coeff = gainAttack
	}
	a.gain += coeff * (desired - a.gain)
}

// echoCanceller is an NLMS acoustic echo canceller. feedReference and
// cancel are expected to run on different goroutines (playback vs.
// capture), so the far-end ring buffer is guarded by a mutex; the NLMS
// weight update itself runs outside the lock, owned solely by cancel's
// caller.
type echoCanceller struct {
	mu      sync.Mutex
	enabled bool

	weights []float64
	tapLen  int
	step    float64

	ring      []float32
	head      int
	ringLen   int
	delay     int
	frameSize int
}

const (
	echoDelaySamples = 1920 // 40 ms at 48 kHz: DAC + acoustic path + ADC
	echoTapCount     = 480  // 10 ms at 48 kHz of residual room response
	echoStep         = 0.1  // NLMS mu, conservative for stability
)

func newEchoCanceller(frameSize int) *echoCanceller {
	ringLen := frameSize + echoDelaySamples + echoTapCount
	return &echoCanceller{
		enabled:   true,
		weights:   make([]float64, echoTapCount),
		tapLen:    echoTapCount,
		step:      echoStep,
		ring:      make([]float32, ringLen),
		ringLen:   ringLen,
		delay:     echoDelaySamples,
		frameSize: frameSize,
	}
}

// feedReference stores the most recent playback frame as the far-end echo
// reference.
func (e *echoCanceller) feedReference(frame []float32) {
	e.mu.Lock()
	for _, s := range frame {
		e.ring[e.head] = s
		e.head = (e.head + 1) % e.ringLen
	}
	e.mu.Unlock()
}

// cancel subtracts the estimated echo from frame in-place and adapts the
// filter weights toward the true echo path. Output[i] = near[i] −
// Σ w[k]·ref[i+tapLen−1−k], with a normalized per-sample weight update.
func (e *echoCanceller) cancel(frame []float32) {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return
	}

	refLen := e.frameSize + e.tapLen - 1
	ref := make([]float32, refLen)
	start := e.head - e.frameSize - e.delay - e.tapLen + 1
	for j := range refLen {
		idx := ((start+j)%e.ringLen + 3*e.ringLen) % e.ringLen
		ref[j] = e.ring[idx]
	}
	e.mu.Unlock()

	for i := range frame {
		base := i + e.tapLen - 1

		var estimate, power float64
		for k := 0; k < e.tapLen; k++ {
			x := float64(ref[base-k])
			estimate += e.weights[k] * x
			power += x * x
		}

		residual := float64(frame[i]) - estimate
		if power > 1e-10 {
			step := e.step * residual / power
			for k := 0; k < e.tapLen; k++ {
				e.weights[k] += step * float64(ref[base-k])
			}
		}
		frame[i] = float32(residual)
	}
}
