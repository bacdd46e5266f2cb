package wav

import (
	"encoding/binary"
	"testing"
)

func makePCM(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(s))
	}
	return buf
}

func TestDecodeRoundTrip(t *testing.T) {
	pcm := makePCM([]int16{0, 1000, -1000, 32767, -32768})
	wavBytes := Encode(pcm, 16000, 1)

	got, err := Decode(wavBytes)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", got.SampleRate)
	}
	if got.Channels != 1 {
		t.Errorf("Channels = %d, want 1", got.Channels)
	}
	if got.BitsPerSample != 16 {
		t.Errorf("BitsPerSample = %d, want 16", got.BitsPerSample)
	}
	if string(got.Data) != string(pcm) {
		t.Errorf("Data mismatch: got %v want %v", got.Data, pcm)
	}
}

func TestDecodeRejectsTooShort(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short input")
	}
}

func TestDecodeRejectsMissingMarkers(t *testing.T) {
	bad := make([]byte, 44)
	copy(bad, "JUNKxxxxJUNK")
	if _, err := Decode(bad); err == nil {
		t.Fatal("expected error for missing RIFF/WAVE markers")
	}
}

func TestDecodeRejectsNonPCM(t *testing.T) {
	pcm := makePCM([]int16{1, 2, 3})
	wavBytes := Encode(pcm, 8000, 1)
	// Flip the audio format tag (offset 20) from PCM (1) to something else.
	binary.LittleEndian.PutUint16(wavBytes[20:22], 3)
	if _, err := Decode(wavBytes); err == nil {
		t.Fatal("expected error for non-PCM format tag")
	}
}

func TestToFloat32MonoStereoAverages(t *testing.T) {
	// Two channels, two frames: (L=10000,R=-10000) -> 0, (L=20000,R=20000) -> 20000/32768
	pcm := makePCM([]int16{10000, -10000, 20000, 20000})
	p := PCM{Data: pcm, SampleRate: 16000, Channels: 2, BitsPerSample: 16}

	mono := p.ToFloat32Mono()
	if len(mono) != 2 {
		t.Fatalf("len(mono) = %d, want 2", len(mono))
	}
	if mono[0] != 0 {
		t.Errorf("mono[0] = %v, want 0", mono[0])
	}
	want := float32(20000) / 32768.0
	if mono[1] != want {
		t.Errorf("mono[1] = %v, want %v", mono[1], want)
	}
}

func TestToFloat32MonoPassthrough(t *testing.T) {
	pcm := makePCM([]int16{16384, -16384})
	p := PCM{Data: pcm, SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	mono := p.ToFloat32Mono()
	if len(mono) != 2 {
		t.Fatalf("len(mono) = %d, want 2", len(mono))
	}
	if mono[0] != 0.5 {
		t.Errorf("mono[0] = %v, want 0.5", mono[0])
	}
}
