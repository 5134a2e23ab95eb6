package transcode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrInvalidWAV     = errors.New("invalid wav file")
	ErrUnsupportedWAV = errors.New("unsupported wav format")
)

// Format describes the PCM layout of a WAV payload.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// IsNormalized reports whether the payload already matches the
// transcription target format (mono 16kHz 16-bit PCM).
func (f Format) IsNormalized() bool {
	return f.SampleRate == targetSampleRate &&
		f.Channels == targetChannels &&
		f.BitsPerSample == targetBitDepth
}

// ProbeWAV parses the RIFF header and fmt chunk of an in-memory WAV
// payload. It does not touch the sample data.
func ProbeWAV(data []byte) (Format, error) {
	if len(data) < 12 {
		return Format{}, ErrInvalidWAV
	}
	if !bytes.Equal(data[:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return Format{}, ErrInvalidWAV
	}

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if chunkID == "fmt " {
			if chunkSize < 16 || body+16 > len(data) {
				return Format{}, ErrInvalidWAV
			}

			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return Format{}, fmt.Errorf("%w: non-PCM format %d", ErrUnsupportedWAV, audioFormat)
			}

			return Format{
				Channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}, nil
		}

		// Chunks are word-aligned.
		if chunkSize%2 == 1 {
			chunkSize++
		}
		offset = body + chunkSize
	}

	return Format{}, fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
}
