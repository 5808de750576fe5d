// Command audiodevice hosts a rarity audio graph against a real PortAudio
// output device. It opens a blocking stream and drives it from a loop
// calling Write once per block rather than
// an audio callback closure: a fixed-size AudioBuffer ring feeds
// Graph.Process once per block and is cleared and forwarded afterward, the
// same shape mock_graph.rs uses for its cpal callback.
package main

import (
	"flag"
	"log"

	"github.com/gordonklaus/portaudio"

	rarity "github.com/rarityaudio/rarity"
	"github.com/rarityaudio/rarity/internal/config"
	"github.com/rarityaudio/rarity/nodes"
)

// ringCapacity is the AudioBuffer's frame capacity — large enough that a
// block's requested frame count never wraps across the cursor twice.
const ringCapacity = 4096

func buildGraph(sampleRate float64) (*rarity.Graph, *rarity.MessageCollector, rarity.SendHandle) {
	g := rarity.NewGraph("audiodevice")

	saw := nodes.NewSaw("simple_saw", 3)
	saw.Prepare(sampleRate)
	drive := nodes.NewOverdrive("overdrive")
	gate := nodes.NewNoiseGate("gate")
	gate.Prepare(sampleRate)

	must(g.AddAudioSource(saw))
	must(g.AddAudioEffect(drive))
	must(g.AddAudioEffect(gate))
	must(g.AddAudioLink("simple_saw", "overdrive"))
	must(g.AddAudioLink("overdrive", "gate"))
	must(g.AddAudioLink("gate", rarity.AOut))

	collector := rarity.NewMessageCollector()
	sender := collector.AddPort(nil)

	return g, collector, sender
}

func must(err error) {
	if err != nil {
		log.Fatalf("[audiodevice] graph setup: %v", err)
	}
}

// resolveOutputDevice returns the device at idx if valid, otherwise the
// system default.
func resolveOutputDevice(devices []*portaudio.DeviceInfo, idx int) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return portaudio.DefaultOutputDevice()
}

func main() {
	deviceFlag := flag.Int("device", -1, "output device index (-1 = system default)")
	flag.Parse()

	cfg := config.Load()
	if *deviceFlag >= 0 {
		cfg.OutputDeviceID = *deviceFlag
	}

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("[audiodevice] portaudio init: %v", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		log.Fatalf("[audiodevice] list devices: %v", err)
	}
	outputDev, err := resolveOutputDevice(devices, cfg.OutputDeviceID)
	if err != nil {
		log.Fatalf("[audiodevice] resolve output device: %v", err)
	}

	const sampleRate = 48000.0
	blockFrames := cfg.BlockFrames

	g, collector, sender := buildGraph(sampleRate)
	if err := g.Compile(ringCapacity); err != nil {
		log.Fatalf("[audiodevice] compile graph: %v", err)
	}

	ph := &rarity.PlayHead{Upper: 4, Lower: 4, Div: 4}
	audioIn := rarity.NewAudioBuffer(ringCapacity)
	audioOut := rarity.NewAudioBuffer(ringCapacity)

	// PortAudio wants one interleaved float32 slice; channels=2 for stereo.
	hostBuf := make([]float32, blockFrames*2)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   outputDev,
			Channels: 2,
			Latency:  outputDev.DefaultLowOutputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: blockFrames,
	}

	stream, err := portaudio.OpenStream(params, hostBuf)
	if err != nil {
		log.Fatalf("[audiodevice] open stream: %v", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		log.Fatalf("[audiodevice] start stream: %v", err)
	}
	defer stream.Stop()

	log.Printf("[audiodevice] streaming on %q at %.0f Hz, block=%d", outputDev.Name, sampleRate, blockFrames)

	// A held note so the stream is audible without an external controller;
	// real use feeds sender.Send from an OSC bridge or similar.
	sender.Send(0, rarity.Message{Addr: []string{"simple_saw"}, Value: rarity.NoteOn{Pitch: 57, Velocity: 100}})

	for {
		frames := blockFrames
		inRef := audioIn.NextNFramesRef(frames)
		outMut := audioOut.NextNFramesMut(frames)

		collector.Collect()
		messageIn := collector.DrainFrames(frames)

		g.Process(ph, frames, inRef, outMut, messageIn)

		outRef := audioOut.NextNFramesRef(frames)
		for i := 0; i < frames; i++ {
			l, r := outRef.Frame(i)
			hostBuf[2*i] = float32(l)
			hostBuf[2*i+1] = float32(r)
		}

		audioIn.NextNFramesMut(frames).Clear()
		audioOut.NextNFramesMut(frames).Clear()
		audioIn.Forward(frames)
		audioOut.Forward(frames)

		if err := stream.Write(); err != nil {
			log.Fatalf("[audiodevice] write: %v", err)
		}
	}
}
