package audio

import (
	"encoding/binary"
	"testing"
)

// makeWav builds a minimal RIFF WAVE byte stream with the given byte rate
// and data size.
func makeWav(byteRate, dataSize uint32) []byte {
	var b []byte
	b = append(b, []byte("RIFF")...)
	b = binary.LittleEndian.AppendUint32(b, 36+dataSize)
	b = append(b, []byte("WAVE")...)
	b = append(b, []byte("fmt ")...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, 1) // PCM
	b = binary.LittleEndian.AppendUint16(b, 1) // mono
	b = binary.LittleEndian.AppendUint32(b, 24000)
	b = binary.LittleEndian.AppendUint32(b, byteRate)
	b = binary.LittleEndian.AppendUint16(b, 2)
	b = binary.LittleEndian.AppendUint16(b, 16)
	b = append(b, []byte("data")...)
	b = binary.LittleEndian.AppendUint32(b, dataSize)
	b = append(b, make([]byte, dataSize)...)
	return b
}

func TestWavDurationBytes(t *testing.T) {
	cases := []struct {
		byteRate, dataSize uint32
		want               float64
	}{
		{48000, 48000, 1.0},
		{48000, 120000, 2.5},
		{48000, 24000, 0.5},
	}
	for _, c := range cases {
		got, err := wavDurationBytes(makeWav(c.byteRate, c.dataSize))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != c.want {
			t.Errorf("byteRate=%d dataSize=%d: expected %v, got %v", c.byteRate, c.dataSize, c.want, got)
		}
	}
}

func TestWavDurationRejectsGarbage(t *testing.T) {
	if _, err := wavDurationBytes([]byte("not a wav file at all")); err == nil {
		t.Fatal("expected error for non-RIFF input")
	}
	if _, err := wavDurationBytes(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
