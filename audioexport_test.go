package rack_test

import (
	"encoding/binary"
	"testing"

	"github.com/vsariola/rack"
)

func TestWavHeader(t *testing.T) {
	buffer := make([]float32, 200) // 100 stereo frames
	for _, tc := range []struct {
		name       string
		pcm16      bool
		headerSize int
		format     uint16
		bits       uint16
	}{
		{"float", false, 58, 3, 32},
		{"pcm16", true, 44, 1, 16},
	} {
		t.Run(tc.name, func(t *testing.T) {
			wav, err := rack.Wav(buffer, rack.AudioFormat{SampleRate: 44100, Channels: 2}, tc.pcm16)
			if err != nil {
				t.Fatalf("Wav failed: %v", err)
			}
			bytesPerSample := int(tc.bits / 8)
			if want := tc.headerSize + len(buffer)*bytesPerSample; len(wav) != want {
				t.Fatalf("file is %d bytes, want %d", len(wav), want)
			}
			if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
				t.Errorf("bad magic %q %q", wav[0:4], wav[8:12])
			}
			if got := binary.LittleEndian.Uint32(wav[4:8]); int(got) != len(wav)-8 {
				t.Errorf("RIFF chunk size %d, want %d", got, len(wav)-8)
			}
			if got := binary.LittleEndian.Uint16(wav[20:22]); got != tc.format {
				t.Errorf("format tag %d, want %d", got, tc.format)
			}
			if got := binary.LittleEndian.Uint16(wav[22:24]); got != 2 {
				t.Errorf("channels %d", got)
			}
			if got := binary.LittleEndian.Uint32(wav[24:28]); got != 44100 {
				t.Errorf("sample rate %d", got)
			}
			if got := binary.LittleEndian.Uint16(wav[34:36]); got != tc.bits {
				t.Errorf("bits per sample %d", got)
			}
			if !tc.pcm16 {
				if string(wav[38:42]) != "fact" {
					t.Fatalf("missing fact chunk, got %q", wav[38:42])
				}
				if frames := binary.LittleEndian.Uint32(wav[46:50]); frames != 100 {
					t.Errorf("fact frames %d, want 100", frames)
				}
			}
		})
	}
}

func TestWavInvalidFormat(t *testing.T) {
	if _, err := rack.Wav(nil, rack.AudioFormat{SampleRate: 44100}, false); err == nil {
		t.Error("expected an error for zero channels")
	}
}

func TestRawClampsPCM(t *testing.T) {
	raw, err := rack.Raw([]float32{2, -2, 0.5}, true)
	if err != nil {
		t.Fatal(err)
	}
	want := []int16{32767, -32768, 16383}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(raw[2*i:])); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}
