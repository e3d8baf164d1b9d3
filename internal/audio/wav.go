package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// WavDuration reads the playback length of a RIFF WAVE file from its
// header: data chunk size divided by the fmt chunk's byte rate. Only the
// header is inspected, the sample data is never loaded.
func WavDuration(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read wav: %w", err)
	}
	return wavDurationBytes(data)
}

func wavDurationBytes(data []byte) (float64, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF WAVE file")
	}
	var byteRate uint32
	var dataSize uint32
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8
		switch id {
		case "fmt ":
			if body+12 > len(data) {
				return 0, fmt.Errorf("truncated fmt chunk")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			dataSize = size
		}
		pos = body + int(size)
		if size%2 == 1 {
			pos++ // chunks are word aligned
		}
	}
	if byteRate == 0 {
		return 0, fmt.Errorf("missing or zero byte rate")
	}
	if dataSize == 0 {
		return 0, fmt.Errorf("missing data chunk")
	}
	return float64(dataSize) / float64(byteRate), nil
}
