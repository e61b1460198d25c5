package rack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// AudioFormat describes interleaved float32 sample buffers.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

// Wav encodes interleaved samples as a .wav file, either as int16 PCM or
// IEEE float32.
func Wav(buffer []float32, format AudioFormat, pcm16 bool) ([]byte, error) {
	if format.Channels < 1 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("Wav failed: invalid format %+v", format)
	}
	buf := new(bytes.Buffer)
	wavHeader(len(buffer), format, pcm16, buf)
	if err := rawToBuffer(buffer, pcm16, buf); err != nil {
		return nil, fmt.Errorf("Wav failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Raw encodes interleaved samples without any header.
func Raw(buffer []float32, pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := rawToBuffer(buffer, pcm16, buf); err != nil {
		return nil, fmt.Errorf("Raw failed: %w", err)
	}
	return buf.Bytes(), nil
}

func rawToBuffer(data []float32, pcm16 bool, buf *bytes.Buffer) error {
	var err error
	if pcm16 {
		int16data := make([]int16, len(data))
		for i, v := range data {
			int16data[i] = int16(Clamp(float64(v)*math.MaxInt16, math.MinInt16, math.MaxInt16))
		}
		err = binary.Write(buf, binary.LittleEndian, int16data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, data)
	}
	if err != nil {
		return fmt.Errorf("could not binary write data to binary buffer: %w", err)
	}
	return nil
}

// wavHeader writes the RIFF header for bufferLength interleaved samples.
func wavHeader(bufferLength int, format AudioFormat, pcm16 bool, buf *bytes.Buffer) {
	// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	numChannels := format.Channels
	sampleRate := format.SampleRate
	var bytesPerSample, chunkSize, fmtChunkSize, waveFormat int
	var factChunk bool
	if pcm16 {
		bytesPerSample = 2
		chunkSize = 36 + bytesPerSample*bufferLength
		fmtChunkSize = 16
		waveFormat = 1 // PCM
	} else {
		bytesPerSample = 4
		chunkSize = 50 + bytesPerSample*bufferLength
		fmtChunkSize = 18
		waveFormat = 3 // IEEE float
		factChunk = true
	}
	w := func(v any) { binary.Write(buf, binary.LittleEndian, v) }
	buf.WriteString("RIFF")
	w(uint32(chunkSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(fmtChunkSize))
	w(uint16(waveFormat))
	w(uint16(numChannels))
	w(uint32(sampleRate))
	w(uint32(sampleRate * numChannels * bytesPerSample)) // avgBytesPerSec
	w(uint16(numChannels * bytesPerSample))              // blockAlign
	w(uint16(8 * bytesPerSample))                        // bits per sample
	if fmtChunkSize > 16 {
		w(uint16(0)) // size of extension
	}
	if factChunk {
		buf.WriteString("fact")
		w(uint32(4))                          // fact chunk size
		w(uint32(bufferLength / numChannels)) // frames
	}
	buf.WriteString("data")
	w(uint32(bytesPerSample * bufferLength))
}
