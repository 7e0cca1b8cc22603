package media

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Clip is a decoded block of 16-bit mono PCM samples.
type Clip struct {
	SampleRate int
	// Data holds little-endian signed 16-bit samples.
	Data []byte
}

// DurationMS reports the clip length in milliseconds, truncated.
func (c Clip) DurationMS() int64 {
	if c.SampleRate <= 0 {
		return 0
	}
	samples := int64(len(c.Data) / 2)
	return samples * 1000 / int64(c.SampleRate)
}

// Silence builds a clip of exactly durationMS milliseconds of silence.
func Silence(durationMS int64, sampleRate int) Clip {
	if durationMS < 0 {
		durationMS = 0
	}
	samples := durationMS * int64(sampleRate) / 1000
	return Clip{SampleRate: sampleRate, Data: make([]byte, samples*2)}
}

// Track accumulates clips into one contiguous PCM stream.
type Track struct {
	sampleRate int
	data       []byte
	durationMS int64
}

// NewTrack creates an empty track at the given sample rate.
func NewTrack(sampleRate int) *Track {
	return &Track{sampleRate: sampleRate}
}

// Append adds a clip to the end of the track. Clips at a different sample
// rate are rejected; the pipeline works at one fixed rate end to end.
func (t *Track) Append(clip Clip) error {
	if clip.SampleRate != t.sampleRate {
		return fmt.Errorf("append clip: sample rate %d does not match track rate %d", clip.SampleRate, t.sampleRate)
	}
	t.data = append(t.data, clip.Data...)
	t.durationMS += clip.DurationMS()
	return nil
}

// DurationMS reports the track length as the sum of appended clip durations.
func (t *Track) DurationMS() int64 {
	return t.durationMS
}

// SampleRate reports the track's fixed sample rate.
func (t *Track) SampleRate() int {
	return t.sampleRate
}

// Export writes the track as a 16-bit mono PCM WAV file.
func (t *Track) Export(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create track file: %w", err)
	}
	defer file.Close()
	if err := writeWAV(file, t.sampleRate, t.data); err != nil {
		return fmt.Errorf("write track: %w", err)
	}
	return nil
}

const wavHeaderSize = 44

func writeWAV(w io.Writer, sampleRate int, data []byte) error {
	var header [wavHeaderSize]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(data)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1) // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(header[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(header[34:36], 16)                   // bits per sample
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// DecodeWAV parses a 16-bit mono PCM WAV payload into a Clip. Only the
// format the Azure services produce and consume is accepted.
func DecodeWAV(payload []byte) (Clip, error) {
	var clip Clip
	if len(payload) < wavHeaderSize {
		return clip, errors.New("decode wav: payload too short")
	}
	if string(payload[0:4]) != "RIFF" || string(payload[8:12]) != "WAVE" {
		return clip, errors.New("decode wav: not a RIFF/WAVE payload")
	}

	// Walk chunks; some encoders insert LIST or fact chunks before data.
	offset := 12
	var sampleRate int
	var bitsPerSample, channels uint16
	for offset+8 <= len(payload) {
		chunkID := string(payload[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(payload[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(payload) {
			chunkSize = len(payload) - body
		}
		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return clip, errors.New("decode wav: truncated fmt chunk")
			}
			format := binary.LittleEndian.Uint16(payload[body : body+2])
			if format != 1 {
				return clip, fmt.Errorf("decode wav: unsupported format code %d", format)
			}
			channels = binary.LittleEndian.Uint16(payload[body+2 : body+4])
			sampleRate = int(binary.LittleEndian.Uint32(payload[body+4 : body+8]))
			bitsPerSample = binary.LittleEndian.Uint16(payload[body+14 : body+16])
		case "data":
			if sampleRate == 0 {
				return clip, errors.New("decode wav: data chunk before fmt chunk")
			}
			if channels != 1 {
				return clip, fmt.Errorf("decode wav: expected mono audio, got %d channels", channels)
			}
			if bitsPerSample != 16 {
				return clip, fmt.Errorf("decode wav: expected 16-bit samples, got %d", bitsPerSample)
			}
			clip.SampleRate = sampleRate
			clip.Data = append([]byte(nil), payload[body:body+chunkSize]...)
			return clip, nil
		}
		// Chunks are word-aligned.
		if chunkSize%2 == 1 {
			chunkSize++
		}
		offset = body + chunkSize
	}
	return clip, errors.New("decode wav: no data chunk")
}

// ReadWAVFile loads a WAV file from disk into a Clip.
func ReadWAVFile(path string) (Clip, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("read wav: %w", err)
	}
	return DecodeWAV(payload)
}
