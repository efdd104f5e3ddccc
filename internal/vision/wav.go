package vision

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// wavInfo describes the PCM layout parsed from a RIFF header.
type wavInfo struct {
	sampleRate int
	channels   int
	bits       int
	dataOffset int64
	dataSize   int64
}

// readWAVWindow loads the [start, end) second window of a WAV file as mono
// samples scaled to [-1, 1]. Multi-channel audio is averaged down. Only
// 16-bit PCM is supported, which is what the audio extraction stage writes.
func readWAVWindow(path string, start, end float64) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening wav: %w", err)
	}
	defer f.Close()

	info, err := parseWAVHeader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing wav %s: %w", path, err)
	}

	blockAlign := int64(info.channels) * int64(info.bits/8)
	totalFrames := info.dataSize / blockAlign

	if start < 0 {
		start = 0
	}
	startFrame := int64(start * float64(info.sampleRate))
	endFrame := int64(end * float64(info.sampleRate))
	if endFrame > totalFrames {
		endFrame = totalFrames
	}
	if startFrame >= endFrame {
		return nil, info.sampleRate, nil
	}

	if _, err := f.Seek(info.dataOffset+startFrame*blockAlign, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seeking wav data: %w", err)
	}

	frames := endFrame - startFrame
	raw := make([]byte, frames*blockAlign)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, 0, fmt.Errorf("reading wav data: %w", err)
	}

	samples := make([]float64, frames)
	for i := int64(0); i < frames; i++ {
		var sum float64
		for c := 0; c < info.channels; c++ {
			off := i*blockAlign + int64(c*2)
			v := int16(binary.LittleEndian.Uint16(raw[off : off+2]))
			sum += float64(v) / 32768.0
		}
		samples[i] = sum / float64(info.channels)
	}
	return samples, info.sampleRate, nil
}

// parseWAVHeader walks the RIFF chunks until both the format and data
// chunks are known.
func parseWAVHeader(f *os.File) (wavInfo, error) {
	var info wavInfo

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return info, fmt.Errorf("reading riff header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return info, fmt.Errorf("not a wav file")
	}

	offset := int64(12)
	haveFmt := false
	for {
		chunk := make([]byte, 8)
		if _, err := io.ReadFull(f, chunk); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return info, fmt.Errorf("reading chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		offset += 8

		switch id {
		case "fmt ":
			if size < 16 {
				return info, fmt.Errorf("fmt chunk too small: %d bytes", size)
			}
			fmtData := make([]byte, 16)
			if _, err := io.ReadFull(f, fmtData); err != nil {
				return info, fmt.Errorf("reading fmt chunk: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(fmtData[0:2])
			info.channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			info.sampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			info.bits = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			if audioFormat != 1 {
				return info, fmt.Errorf("unsupported wav format %d (want PCM)", audioFormat)
			}
			if info.bits != 16 {
				return info, fmt.Errorf("unsupported bit depth %d (want 16)", info.bits)
			}
			if info.channels < 1 || info.sampleRate <= 0 {
				return info, fmt.Errorf("invalid wav layout: %d channels at %d Hz", info.channels, info.sampleRate)
			}
			haveFmt = true
			if skip := size - 16; skip > 0 {
				if _, err := f.Seek(skip+(skip&1), io.SeekCurrent); err != nil {
					return info, fmt.Errorf("skipping fmt padding: %w", err)
				}
				offset += skip + (skip & 1)
			}
			offset += 16
		case "data":
			if !haveFmt {
				return info, fmt.Errorf("data chunk before fmt chunk")
			}
			info.dataOffset = offset
			info.dataSize = size
			return info, nil
		default:
			// Chunks are word aligned; odd sizes carry a pad byte.
			if _, err := f.Seek(size+(size&1), io.SeekCurrent); err != nil {
				return info, fmt.Errorf("skipping %q chunk: %w", id, err)
			}
			offset += size + (size & 1)
		}
	}
	return info, fmt.Errorf("no data chunk found")
}
