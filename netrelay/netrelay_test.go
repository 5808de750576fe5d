package netrelay

import "testing"

func TestMarshalParseDatagramRoundTrip(t *testing.T) {
	opusData := []byte{0x01, 0x02, 0x03, 0xff}
	dgram := MarshalDatagram(7, 1000, opusData)

	senderID, seq, got, ok := ParseDatagram(dgram)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if senderID != 7 {
		t.Errorf("senderID: want 7, got %d", senderID)
	}
	if seq != 1000 {
		t.Errorf("seq: want 1000, got %d", seq)
	}
	if string(got) != string(opusData) {
		t.Errorf("opus data: want %v, got %v", opusData, got)
	}
}

func TestParseDatagramTooShort(t *testing.T) {
	if _, _, _, ok := ParseDatagram([]byte{0x01, 0x02}); ok {
		t.Error("expected ok=false for a header-only datagram")
	}
}

func TestCaptureChainGatesSilence(t *testing.T) {
	chain := NewCaptureChain(960)
	frame := make([]float32, 960) // all zero: pure silence
	if chain.Process(frame) {
		t.Error("expected silent frame to be gated (send=false)")
	}
}

func TestCaptureChainSendsLoudFrame(t *testing.T) {
	chain := NewCaptureChain(960)
	frame := make([]float32, 960)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = 0.5
		} else {
			frame[i] = -0.5
		}
	}
	if !chain.Process(frame) {
		t.Error("expected a loud alternating frame to pass the voice gate")
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	frame := []float32{0, 0.5, -0.5, 1.0, -1.0}
	pcm := make([]int16, len(frame))
	ToPCM16(frame, pcm)

	back := make([]float32, len(pcm))
	FromPCM16(pcm, back)

	for i := range frame {
		diff := float64(frame[i]) - float64(back[i])
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.001 {
			t.Errorf("sample %d: %v round-tripped to %v", i, frame[i], back[i])
		}
	}
}

func TestQualityLevel(t *testing.T) {
	cases := []struct {
		loss, jitterMs float64
		want           string
	}{
		{0, 0, "good"},
		{0.03, 0, "moderate"},
		{0, 25, "moderate"},
		{0.15, 0, "poor"},
		{0, 60, "poor"},
	}
	for _, c := range cases {
		if got := qualityLevel(c.loss, c.jitterMs); got != c.want {
			t.Errorf("qualityLevel(%v, %v) = %q, want %q", c.loss, c.jitterMs, got, c.want)
		}
	}
}
