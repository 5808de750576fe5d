// Command oscbridge listens for OSC messages on a UDP socket and forwards
// them into a graph's MessageCollector, the same role the UDP/rosc listener
// plays in mock_graph.rs: the OSC address selects a target node (and,
// for a two-segment address, a parameter name on that node), the argument
// becomes either a NoteOn (name parses as a MIDI pitch) or a FloatValue.
package main

import (
	"flag"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hypebeast/go-osc/osc"

	rarity "github.com/rarityaudio/rarity"
)

func main() {
	addr := flag.String("addr", "0.0.0.0:7001", "UDP address to listen for OSC messages on")
	target := flag.String("target", "simple_saw", "node that receives a bare /<pitch> note message")
	sampleRate := flag.Float64("rate", 48000, "sample rate used to convert wall-clock time to frame numbers")
	flag.Parse()

	collector := rarity.NewMessageCollector()
	sender := collector.AddPort(nil)

	conn, err := net.ListenPacket("udp", *addr)
	if err != nil {
		log.Fatalf("[oscbridge] listen %s: %v", *addr, err)
	}
	defer conn.Close()

	log.Printf("[oscbridge] listening for OSC on %s, default target %q", *addr, *target)

	start := time.Now()
	buf := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			log.Printf("[oscbridge] read: %v", err)
			continue
		}
		packet, err := osc.ParsePacket(string(buf[:n]))
		if err != nil {
			log.Printf("[oscbridge] parse packet: %v", err)
			continue
		}
		dispatch(packet, sender, *sampleRate, start, *target)
	}
}

// dispatch walks an OSC packet (message or bundle) and forwards every
// float argument to the collector, exactly mirroring mock_graph.rs's
// address-splitting dispatch.
func dispatch(packet osc.Packet, sender rarity.SendHandle, sampleRate float64, start time.Time, target string) {
	switch p := packet.(type) {
	case *osc.Message:
		handleMessage(p, sender, sampleRate, start, target)
	case *osc.Bundle:
		for _, m := range p.Messages {
			handleMessage(m, sender, sampleRate, start, target)
		}
	}
}

// handleMessage routes one OSC message's float arguments into the graph.
// A message is only ever delivered to a node whose name is the trailing
// Addr segment (the routing layer drops anything with an empty Addr), so
// a bare /<pitch> address is routed to the configured default target.
func handleMessage(msg *osc.Message, sender rarity.SendHandle, sampleRate float64, start time.Time, target string) {
	for _, arg := range msg.Arguments {
		v, ok := arg.(float32)
		if !ok {
			continue
		}
		frame := int(time.Since(start).Seconds() * sampleRate)

		segments := strings.Split(strings.TrimPrefix(msg.Address, "/"), "/")
		if len(segments) == 0 || segments[0] == "" {
			continue
		}

		switch len(segments) {
		case 1:
			// /<pitch> — a note on the default target node.
			name := segments[0]
			if pitch, err := strconv.ParseUint(name, 10, 8); err == nil {
				sender.Send(frame, rarity.Message{
					Addr:  []string{target},
					Value: rarity.NoteOn{Pitch: uint8(pitch), Velocity: uint8(float64(v) * 128.0)},
				})
			} else {
				sender.Send(frame, rarity.Message{
					Addr:  []string{target},
					Value: rarity.FloatValue{Name: name, Value: float64(v)},
				})
			}
		case 2:
			// /<node>/<name> — a float parameter targeted at a specific node.
			node, name := segments[0], segments[1]
			sender.Send(frame, rarity.Message{
				Addr:  []string{node},
				Value: rarity.FloatValue{Name: name, Value: float64(v)},
			})
		default:
			log.Printf("[oscbridge] ignoring address with unsupported depth: %s", msg.Address)
		}
	}
}
