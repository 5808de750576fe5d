// Package netrelay bridges a graph's audio output/input to a remote peer
// over a websocket, outside the real-time audio callback entirely. It is
// illustrative, not part of the core engine: a host program wires a Link's
// Send/Receive into its own capture/playback loop the way a capture engine
// wires its transport layer.
package netrelay

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/hraban/opus.v2"

	"github.com/rarityaudio/rarity/internal/jitter"
)

const (
	sampleRate         = 48000
	channels           = 1
	opusMaxPacketBytes = 1275 // RFC 6716 max Opus packet size
)

// bitrateLadder is the ordered list of Opus target bitrate steps in kbps,
// from barely-intelligible emergency quality up to high-fidelity voice.
var bitrateLadder = []int{8, 12, 16, 24, 32, 48}

// defaultKbps is the starting bitrate for a new connection.
const defaultKbps = 32

// defaultJitterDepth is the jitter buffer depth used before any packets
// have arrived. 1 frame = 20 ms, optimistic for LAN; AdaptBitrate grows it
// within seconds if the measured quality warrants it.
const defaultJitterDepth = 1

// ladderIndex returns the index of the bitrateLadder rung closest to kbps.
func ladderIndex(kbps int) int {
	best, bestDist := 0, iabs(kbps-bitrateLadder[0])
	for i, step := range bitrateLadder {
		if d := iabs(kbps - step); d < bestDist {
			bestDist, best = d, i
		}
	}
	return best
}

func iabs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// nextBitrate steps the encoder one rung down on poor quality, one rung up
// on good quality, and holds on moderate — driven by the same qualityLevel
// classification GetMetrics reports, rather than re-checking raw loss/RTT
// thresholds a second time.
func nextBitrate(current int, quality string) int {
	idx := ladderIndex(current)
	switch quality {
	case "poor":
		if idx > 0 {
			return bitrateLadder[idx-1]
		}
	case "good":
		if idx < len(bitrateLadder)-1 {
			return bitrateLadder[idx+1]
		}
	}
	return bitrateLadder[idx]
}

// targetJitterDepth computes the jitter buffer depth (in 20 ms frames)
// from the same quality classification, padding the raw jitter-derived
// depth by an extra frame when quality has degraded to moderate or worse.
func targetJitterDepth(quality string, jitterMs float64) int {
	if jitterMs <= 0 {
		return defaultJitterDepth
	}
	depth := int(math.Ceil(jitterMs/20.0)) + 1
	if quality != "good" {
		depth++
	}
	const minDepth, maxDepth = 1, 8
	if depth < minDepth {
		depth = minDepth
	}
	if depth > maxDepth {
		depth = maxDepth
	}
	return depth
}

// Frame is one sender's Opus-encoded voice packet for a playback tick, or a
// nil-data frame signalling a gap the caller should fill with Opus PLC.
type Frame struct {
	SenderID uint16
	OpusData []byte
}

// Metrics summarises link quality so a host program can drive an
// adaptive-bitrate loop from it.
type Metrics struct {
	PacketLoss     float64
	JitterMs       float64
	BitrateKbps    float64
	OpusTargetKbps int
	QualityLevel   string
}

// qualityLevel classifies link quality from loss and jitter, matching the
// conservative voice-call thresholds (RTT is folded out since a websocket
// link has no round-trip ping loop of its own).
func qualityLevel(loss, jitterMs float64) string {
	if loss >= 0.10 || jitterMs >= 50 {
		return "poor"
	}
	if loss >= 0.02 || jitterMs >= 20 {
		return "moderate"
	}
	return "good"
}

// Link carries one mono Opus voice stream to and from a peer over a
// websocket connection, with adaptive bitrate and a jitter-buffered,
// PLC-aware receive path. It does not touch the graph directly — a host
// program feeds it float32 PCM captured from (or destined for) an
// AudioBuffer.
type Link struct {
	conn *websocket.Conn

	mu      sync.Mutex
	encoder *opus.Encoder
	myID    uint16
	seq     atomic.Uint32

	decoders map[uint16]*opus.Decoder
	jb       *jitter.Buffer

	bitrate     atomic.Int32
	lossRate    atomic.Uint64 // float64 bits, EWMA-smoothed
	jitterMs    atomic.Uint64 // float64 bits, EWMA-smoothed
	bytesSent   atomic.Uint64
	lastSeq     map[uint16]uint16
	lastArrival map[uint16]time.Time
}

// NewLink wraps an already-dialed websocket connection.
func NewLink(conn *websocket.Conn, myID uint16) (*Link, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("netrelay: new encoder: %w", err)
	}
	enc.SetBitrate(defaultKbps * 1000)
	enc.SetDTX(true)
	enc.SetInBandFEC(true)

	l := &Link{
		conn:        conn,
		encoder:     enc,
		myID:        myID,
		decoders:    make(map[uint16]*opus.Decoder),
		jb:          jitter.New(defaultJitterDepth),
		lastSeq:     make(map[uint16]uint16),
		lastArrival: make(map[uint16]time.Time),
	}
	l.bitrate.Store(defaultKbps)
	return l, nil
}

// SendCapturedFrame runs a raw mono capture frame through chain (echo
// cancellation, noise gate, AGC, voice activity gate), and encodes and
// sends it only if the chain decides the result is worth transmitting. It
// mutates frame in place.
func (l *Link) SendCapturedFrame(chain *CaptureChain, frame []float32) error {
	if !chain.Process(frame) {
		return nil
	}
	pcm := make([]int16, len(frame))
	ToPCM16(frame, pcm)
	return l.SendPCM(pcm)
}

// SendPCM encodes one mono int16 frame (e.g. 960 samples = 20 ms) to Opus and
// writes it as a binary websocket message: [senderID:2][seq:2][opus...].
func (l *Link) SendPCM(pcm []int16) error {
	buf := make([]byte, opusMaxPacketBytes)
	n, err := l.encoder.Encode(pcm, buf)
	if err != nil {
		return fmt.Errorf("netrelay: encode: %w", err)
	}

	seq := uint16(l.seq.Add(1))
	dgram := make([]byte, 4+n)
	binary.BigEndian.PutUint16(dgram[0:2], l.myID)
	binary.BigEndian.PutUint16(dgram[2:4], seq)
	copy(dgram[4:], buf[:n])

	l.bytesSent.Add(uint64(len(dgram)))
	l.mu.Lock()
	err = l.conn.WriteMessage(websocket.BinaryMessage, dgram)
	l.mu.Unlock()
	return err
}

// ReceiveLoop reads binary voice datagrams until the connection closes or
// done is closed, pushing each into the jitter buffer and updating loss and
// jitter estimates. Intended to run in its own goroutine.
func (l *Link) ReceiveLoop(done <-chan struct{}) {
	const expectedGapMs = 20.0
	const jitterAlpha = 1.0 / 16.0

	for {
		select {
		case <-done:
			return
		default:
		}

		_, data, err := l.conn.ReadMessage()
		if err != nil {
			return
		}
		senderID, seq, opusData, ok := ParseDatagram(data)
		if !ok {
			continue
		}

		now := time.Now()
		if prev, has := l.lastSeq[senderID]; has {
			diff := int(seq) - int(prev)
			if diff < 0 {
				diff += 65536
			}
			if diff > 0 && diff < 1000 {
				l.lastSeq[senderID] = seq
				if diff > 1 {
					l.recordLoss(float64(diff - 1))
				}
			}
		} else {
			l.lastSeq[senderID] = seq
		}

		if prev, ok := l.lastArrival[senderID]; ok {
			gapMs := float64(now.Sub(prev).Microseconds()) / 1000.0
			if gapMs < 100.0 {
				d := math.Abs(gapMs - expectedGapMs)
				old := math.Float64frombits(l.jitterMs.Load())
				l.jitterMs.Store(math.Float64bits(old + jitterAlpha*(d-old)))
			}
		}
		l.lastArrival[senderID] = now

		cp := make([]byte, len(opusData))
		copy(cp, opusData)
		l.jb.Push(senderID, seq, cp)
	}
}

// recordLoss folds lostCount missing packets into the smoothed loss-rate
// estimate, treating each received packet as one more "expected" sample.
func (l *Link) recordLoss(lostCount float64) {
	old := math.Float64frombits(l.lossRate.Load())
	total := lostCount + 1
	sample := lostCount / total
	next := old + 0.125*(sample-old)
	l.lossRate.Store(math.Float64bits(next))
}

// PopFrames drains one decoded PCM frame per active sender for the current
// playback tick, applying Opus packet loss concealment for gaps the jitter
// buffer reports.
func (l *Link) PopFrames() map[uint16][]int16 {
	out := make(map[uint16][]int16)
	for _, f := range l.jb.Pop() {
		dec, ok := l.decoders[f.SenderID]
		if !ok {
			d, err := opus.NewDecoder(sampleRate, channels)
			if err != nil {
				log.Printf("[netrelay] new decoder for sender %d: %v", f.SenderID, err)
				continue
			}
			dec = d
			l.decoders[f.SenderID] = dec
		}
		pcm := make([]int16, 960)
		var n int
		var err error
		if f.OpusData != nil {
			n, err = dec.Decode(f.OpusData, pcm)
		} else {
			n, err = dec.Decode(nil, pcm) // PLC
		}
		if err != nil {
			log.Printf("[netrelay] decode sender %d: %v", f.SenderID, err)
			continue
		}
		out[f.SenderID] = pcm[:n]
	}
	return out
}

// AdaptBitrate re-evaluates the Opus target bitrate and jitter buffer depth
// from the current smoothed loss/jitter estimates, the same adaptive loop
// shape a capture engine runs every few seconds.
func (l *Link) AdaptBitrate() {
	loss := math.Float64frombits(l.lossRate.Load())
	jitterMs := math.Float64frombits(l.jitterMs.Load())
	quality := qualityLevel(loss, jitterMs)

	next := nextBitrate(int(l.bitrate.Load()), quality)
	if next != int(l.bitrate.Load()) {
		l.mu.Lock()
		if err := l.encoder.SetBitrate(next * 1000); err != nil {
			log.Printf("[netrelay] set bitrate %d kbps: %v", next, err)
		}
		l.mu.Unlock()
		l.bitrate.Store(int32(next))
	}

	l.jb.SetDepth(targetJitterDepth(quality, jitterMs))
}

// GetMetrics returns a snapshot of current link quality and resets the
// bitrate accumulator.
func (l *Link) GetMetrics(elapsed time.Duration) Metrics {
	loss := math.Float64frombits(l.lossRate.Load())
	jitterMs := math.Float64frombits(l.jitterMs.Load())
	bytes := l.bytesSent.Swap(0)
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1
	}
	return Metrics{
		PacketLoss:     loss,
		JitterMs:       jitterMs,
		BitrateKbps:    float64(bytes*8) / secs / 1000,
		OpusTargetKbps: int(l.bitrate.Load()),
		QualityLevel:   qualityLevel(loss, jitterMs),
	}
}

// Close closes the underlying websocket connection.
func (l *Link) Close() error {
	return l.conn.Close()
}

// MarshalDatagram builds a voice datagram: [senderID:2][seq:2][opus...].
// Exported for testing.
func MarshalDatagram(senderID, seq uint16, opusData []byte) []byte {
	dgram := make([]byte, 4+len(opusData))
	binary.BigEndian.PutUint16(dgram[0:2], senderID)
	binary.BigEndian.PutUint16(dgram[2:4], seq)
	copy(dgram[4:], opusData)
	return dgram
}

// ParseDatagram parses a voice datagram header. The returned opus slice
// aliases data — copy it if it must outlive the caller. Exported for
// testing.
func ParseDatagram(data []byte) (senderID, seq uint16, opusData []byte, ok bool) {
	if len(data) < 4 {
		return 0, 0, nil, false
	}
	senderID = binary.BigEndian.Uint16(data[0:2])
	seq = binary.BigEndian.Uint16(data[2:4])
	return senderID, seq, data[4:], true
}
