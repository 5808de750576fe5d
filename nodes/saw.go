// Package nodes holds example audio-graph nodes: a polyphonic oscillator
// source, simple waveshaping effects, and adapted voice-conditioning
// effects grounded on a realtime DSP chain.
package nodes

import (
	"math"

	rarity "github.com/rarityaudio/rarity"
)

// Saw is a polyphonic sawtooth-ish oscillator source with a per-voice ADSR
// envelope and voice-stealing allocation, matching simple_saw.rs.
type Saw struct {
	name         string
	voices       []*sawVoice
	sampleRate   float64
	voiceCounter int
}

// NewSaw returns a Saw with maxVoices simultaneous voices.
func NewSaw(name string, maxVoices int) *Saw {
	voices := make([]*sawVoice, maxVoices)
	for i := range voices {
		voices[i] = newSawVoice()
	}
	return &Saw{name: name, voices: voices, sampleRate: 48000}
}

// Name returns the stable identity this node was registered under.
func (s *Saw) Name() string { return s.name }

// Prepare sets the oscillator and envelope sample rate for every voice.
func (s *Saw) Prepare(sampleRate float64) {
	s.sampleRate = sampleRate
	for _, v := range s.voices {
		v.setSampleRate(sampleRate)
	}
}

func (s *Saw) Desc() rarity.Desc {
	return rarity.Desc{
		Parameters: []rarity.Parameter{
			{Range: rarity.FloatRange{Name: "Volume", Min: 0, Max: 1, Default: 1}},
			{Range: rarity.FloatRange{Name: "A", Min: 0, Max: 10, Default: 0}},
			{Range: rarity.FloatRange{Name: "D", Min: 0, Max: 10, Default: 0}},
			{Range: rarity.FloatRange{Name: "S", Min: 0, Max: 1, Default: 1}},
			{Range: rarity.FloatRange{Name: "R", Min: 0, Max: 10, Default: 0}},
		},
	}
}

func (s *Saw) Process(ph *rarity.PlayHead, frames int, audioOut rarity.AudioBufferMut, messageIn *rarity.MessageBuffer) {
	currFrame := 0
	remain := audioOut
	for f, msg := range messageIn.All() {
		if f >= frames {
			break
		}
		if f > frames {
			f = frames
		}
		if currFrame < f {
			output, tmp := remain.SplitAt(f - currFrame)
			remain = tmp
			s.forward(output)
			currFrame = f
		}
		s.setState(msg)
	}
	if currFrame < frames {
		output, _ := remain.SplitAt(frames - currFrame)
		s.forward(output)
	}
}

func (s *Saw) setState(msg rarity.Message) {
	if len(msg.Addr) != 0 {
		return
	}
	switch v := msg.Value.(type) {
	case rarity.NoteOn:
		s.setNoteOn(v.Pitch, v.Velocity)
	case rarity.NoteOff:
		s.setNoteOff(v.Pitch)
	case rarity.FloatValue:
		switch v.Name {
		case "Volume":
			s.setVolume(v.Value)
		case "A":
			s.setA(v.Value)
		case "D":
			s.setD(v.Value)
		case "S":
			s.setS(v.Value)
		case "R":
			s.setR(v.Value)
		}
	}
}

func (s *Saw) setVolume(v float64) {
	for _, voice := range s.voices {
		voice.volume = v
	}
}

func (s *Saw) setA(v float64) {
	for _, voice := range s.voices {
		voice.amp.setA(v)
	}
}

func (s *Saw) setD(v float64) {
	for _, voice := range s.voices {
		voice.amp.setD(v)
	}
}

func (s *Saw) setS(v float64) {
	for _, voice := range s.voices {
		voice.amp.setS(v)
	}
}

func (s *Saw) setR(v float64) {
	for _, voice := range s.voices {
		voice.amp.setR(v)
	}
}

func (s *Saw) setNoteOff(pitch uint8) {
	for _, voice := range s.voices {
		if voice.pitch == pitch {
			voice.noteOff()
		}
	}
}

func (s *Saw) setNoteOn(pitch, velocity uint8) {
	if velocity == 0 {
		s.setNoteOff(pitch)
		return
	}
	i := s.findVoice(pitch)
	s.voiceCounter++
	s.voices[i].noteOn(pitch, velocity, s.voiceCounter)
}

func (s *Saw) forward(output rarity.AudioBufferMut) {
	for _, voice := range s.voices {
		voice.forward(output)
	}
}

// findVoice picks a free voice, or steals the oldest one — preferring a
// voice whose pitch differs from the currently lowest-sounding pitch, the
// same heuristic a realtime synth voice allocator uses.
func (s *Saw) findVoice(pitch uint8) int {
	for i, v := range s.voices {
		if v.isSilent() {
			return i
		}
	}
	lowestPitch := s.voices[0].pitch
	for _, v := range s.voices {
		if v.pitch < lowestPitch {
			lowestPitch = v.pitch
		}
	}
	if lowestPitch >= pitch {
		return s.oldestVoice(func(int) bool { return true })
	}
	if i, ok := s.oldestVoiceOK(func(v *sawVoice) bool { return v.pitch != lowestPitch }); ok {
		return i
	}
	return s.oldestVoice(func(int) bool { return true })
}

func (s *Saw) oldestVoice(filter func(int) bool) int {
	best := -1
	for i, v := range s.voices {
		if !filter(i) {
			continue
		}
		if best == -1 || v.counter < s.voices[best].counter {
			best = i
		}
	}
	return best
}

func (s *Saw) oldestVoiceOK(filter func(*sawVoice) bool) (int, bool) {
	best := -1
	for i, v := range s.voices {
		if !filter(v) {
			continue
		}
		if best == -1 || v.counter < s.voices[best].counter {
			best = i
		}
	}
	return best, best != -1
}

type sawVoice struct {
	counter int
	pitch   uint8
	volume  float64
	osc     sawOSC
	amp     adsr
	sr      float64
}

func newSawVoice() *sawVoice {
	return &sawVoice{
		volume: 1,
		osc:    newSawOSC(0, 48000),
		amp:    newADSR(0, 0, 1, 0, 48000),
		sr:     48000,
	}
}

func (v *sawVoice) isSilent() bool { return v.amp.phase == adsrSilent }

func (v *sawVoice) setSampleRate(sampleRate float64) {
	if sampleRate != v.sr {
		v.osc.setSampleRate(sampleRate)
		v.amp.setSampleRate(sampleRate)
		v.sr = sampleRate
	}
}

func (v *sawVoice) noteOn(pitch, velocity uint8, counter int) {
	v.counter = counter
	v.pitch = pitch
	v.osc.setOn(pitch, velocity)
	v.amp.setOn()
}

func (v *sawVoice) noteOff() {
	v.amp.setOff()
}

func (v *sawVoice) forward(output rarity.AudioBufferMut) {
	n := output.Len()
	for i := 0; i < n; i++ {
		l, r := output.Frame(i)
		sample := v.osc.next() * v.amp.next() * v.volume
		*l += sample
		*r += sample
	}
}

// sawOSC is a phase-accumulator oscillator: it outputs the sine of a ramping
// phase, so despite the name its waveform is a sine, not a sawtooth.
type sawOSC struct {
	pitch          uint8
	sr             float64
	pos            float64
	step           float64
	velocityVolume float64
}

func newSawOSC(pitch uint8, sampleRate float64) sawOSC {
	return sawOSC{
		pitch: pitch,
		sr:    sampleRate,
		step:  440.0 * math.Pow(2, (float64(pitch)-81.0)/12.0) / sampleRate,
	}
}

func (o *sawOSC) setOn(pitch, velocity uint8) {
	o.pitch = pitch
	o.step = 440.0 * math.Pow(2, (float64(pitch)-81.0)/12.0) / o.sr
	o.velocityVolume = math.Sqrt(float64(velocity) / 128.0)
}

func (o *sawOSC) setSampleRate(sampleRate float64) {
	if sampleRate != o.sr {
		o.step *= o.sr / sampleRate
		o.sr = sampleRate
	}
}

func (o *sawOSC) next() float64 {
	res := math.Sin(o.pos * math.Pi * 2.0)
	o.pos += o.step
	if o.pos >= 1.0 {
		o.pos -= 1.0
	}
	return res * o.velocityVolume
}

type adsrPhase int

const (
	adsrA adsrPhase = iota
	adsrD
	adsrS
	adsrR
	adsrSilent
)

// adsr is an exponential-decay attack/decay/sustain/release envelope,
// matching a standard ADSR envelope iterator.
type adsr struct {
	aSecond    float64
	dHalfDecay float64
	sLevel     float64
	rHalfDecay float64
	phase      adsrPhase
	aDelta     float64
	dStepRatio float64
	rStepRatio float64
	lastOutput float64
	sr         float64
}

func newADSR(a, d, s, r, sampleRate float64) adsr {
	return adsr{
		aSecond:    a,
		dHalfDecay: d,
		sLevel:     s,
		rHalfDecay: r,
		sr:         sampleRate,
		aDelta:     1.0 / (math.Max(a, 0.001) * sampleRate),
		dStepRatio: math.Pow(2, -1.0/(math.Max(d, 0.001)*sampleRate)),
		rStepRatio: math.Pow(2, -1.0/(math.Max(r, 0.001)*sampleRate)),
		phase:      adsrSilent,
	}
}

func (e *adsr) setOn() { e.phase = adsrA }

func (e *adsr) setOff() {
	switch e.phase {
	case adsrA, adsrD, adsrS:
		e.phase = adsrR
	}
}

func (e *adsr) setSampleRate(sampleRate float64) {
	if sampleRate != e.sr {
		e.sr = sampleRate
		e.aDelta = 1.0 / (math.Max(e.aSecond, 0.001) * sampleRate)
		e.dStepRatio = math.Pow(2, -1.0/(math.Max(e.dHalfDecay, 0.001)*sampleRate))
		e.rStepRatio = math.Pow(2, -1.0/(math.Max(e.rHalfDecay, 0.001)*sampleRate))
	}
}

func (e *adsr) setA(v float64) {
	if v != e.aSecond {
		e.aSecond = v
		e.aDelta = 1.0 / (e.sr * math.Max(v, 0.001))
	}
}

func (e *adsr) setD(v float64) {
	if v != e.dHalfDecay {
		e.dHalfDecay = v
		e.dStepRatio = math.Pow(2, -1.0/(math.Max(v, 0.001)*e.sr))
	}
}

func (e *adsr) setS(v float64) {
	e.sLevel = v
}

func (e *adsr) setR(v float64) {
	if v != e.rHalfDecay {
		e.rHalfDecay = v
		e.rStepRatio = math.Pow(2, -1.0/(math.Max(v, 0.001)*e.sr))
	}
}

// next advances the envelope by one sample and returns its level. Phase
// transitions: Attack ramps linearly to
// 1.0, Decay/Release multiply toward a half-life ratio, Sustain holds, and
// Silent always yields 0.
func (e *adsr) next() float64 {
	switch e.phase {
	case adsrA:
		e.lastOutput += e.aDelta
		if e.lastOutput >= 1.0 {
			e.phase = adsrD
		}
		return e.lastOutput
	case adsrD:
		e.lastOutput *= e.dStepRatio
		if e.lastOutput <= 0.001 {
			e.phase = adsrSilent
		} else if e.lastOutput <= e.sLevel {
			e.phase = adsrS
		}
		return e.lastOutput
	case adsrS:
		return e.lastOutput
	case adsrR:
		e.lastOutput *= e.rStepRatio
		if e.lastOutput <= 0.001 {
			e.phase = adsrSilent
		}
		return e.lastOutput
	default:
		return 0
	}
}
