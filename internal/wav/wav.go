// Package wav decodes RIFF/WAVE-container PCM audio.
//
// It is the inverse of the WAV encoder used by the speech providers this
// repository's dependency graph descends from: where a streaming STT
// provider wraps raw PCM in a WAV header before handing it to a batch
// inference endpoint, the gateway receives a complete WAV file from the
// client and must recover the raw samples before handing them to the
// recognition engine.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidContainer is returned when data is not a well-formed RIFF/WAVE
// container, or uses a PCM encoding this package does not support.
var ErrInvalidContainer = errors.New("wav: invalid or unsupported container")

// PCM holds the decoded audio from a WAV container: raw little-endian signed
// PCM sample bytes plus the format fields needed to interpret them.
type PCM struct {
	// Data is the raw PCM payload, BitsPerSample/8 bytes per sample, Channels
	// interleaved samples per frame.
	Data []byte

	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Decode parses a RIFF/WAVE container and returns its PCM payload. Only
// uncompressed integer PCM (format tag 1) is supported; anything else
// returns [ErrInvalidContainer].
func Decode(data []byte) (PCM, error) {
	if len(data) < 44 {
		return PCM{}, fmt.Errorf("wav: %w: too short (%d bytes)", ErrInvalidContainer, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, fmt.Errorf("wav: %w: missing RIFF/WAVE markers", ErrInvalidContainer)
	}

	var (
		pcm      PCM
		sawFmt   bool
		audioFmt uint16
		pos      = 12
	)

	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		if chunkSize < 0 || body+chunkSize > len(data) {
			return PCM{}, fmt.Errorf("wav: %w: chunk %q overruns container", ErrInvalidContainer, chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return PCM{}, fmt.Errorf("wav: %w: fmt chunk too small", ErrInvalidContainer)
			}
			audioFmt = binary.LittleEndian.Uint16(data[body : body+2])
			pcm.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			pcm.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			pcm.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			sawFmt = true

		case "data":
			if !sawFmt {
				return PCM{}, fmt.Errorf("wav: %w: data chunk precedes fmt chunk", ErrInvalidContainer)
			}
			pcm.Data = data[body : body+chunkSize]
		}

		// Chunks are padded to even length.
		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++
		}
	}

	if !sawFmt || pcm.Data == nil {
		return PCM{}, fmt.Errorf("wav: %w: missing fmt or data chunk", ErrInvalidContainer)
	}
	if audioFmt != 1 {
		return PCM{}, fmt.Errorf("wav: %w: unsupported audio format tag %d (only PCM is supported)", ErrInvalidContainer, audioFmt)
	}
	if pcm.BitsPerSample != 16 {
		return PCM{}, fmt.Errorf("wav: %w: unsupported bit depth %d (only 16-bit is supported)", ErrInvalidContainer, pcm.BitsPerSample)
	}
	if pcm.Channels < 1 {
		return PCM{}, fmt.Errorf("wav: %w: invalid channel count %d", ErrInvalidContainer, pcm.Channels)
	}

	return pcm, nil
}

// ToFloat32Mono down-mixes the decoded 16-bit PCM to mono float32 samples
// normalised to [-1.0, 1.0], averaging across channels per frame.
func (p PCM) ToFloat32Mono() []float32 {
	if p.Channels <= 1 {
		return pcmToFloat32(p.Data)
	}

	frames := len(p.Data) / (2 * p.Channels)
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range p.Channels {
			idx := (i*p.Channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(p.Data[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		mono[i] = sum / float32(p.Channels)
	}
	return mono
}

// Encode wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAVE container. Used by tests to build synthetic payloads; production
// code only ever decodes.
func Encode(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}
