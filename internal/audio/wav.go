package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// EncodeWAVPCM16LE wraps raw PCM16LE mono audio bytes in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWAVPCM16LETo(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVPCM16LEFile writes raw PCM16LE mono audio bytes as a WAV file.
func WriteWAVPCM16LEFile(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteWAVPCM16LETo(f, pcm, sampleRate)
}

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// pcmHeader is the canonical 44-byte RIFF/WAVE header for PCM audio.
type pcmHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

// WriteWAVPCM16LETo writes raw PCM16LE mono audio bytes to out as a WAV stream.
func WriteWAVPCM16LETo(out io.Writer, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	const channels, bits = 1, 16
	hdr := pcmHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + uint32(len(pcm)),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   wavFormatPCM,
		Channels:      channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * bits / 8),
		BlockAlign:    channels * bits / 8,
		BitsPerSample: bits,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(pcm)),
	}

	w := bufio.NewWriter(out)
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}

// SilentWAV returns d of PCM16LE mono silence wrapped in a WAV container.
func SilentWAV(d time.Duration, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	samples := int(d.Seconds() * float64(sampleRate))
	if samples < 1 {
		samples = 1
	}
	return EncodeWAVPCM16LE(make([]byte, samples*2), sampleRate)
}

// WAVInfo is the subset of a WAV fmt chunk the lip-sync toolchain cares about.
type WAVInfo struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

var ErrNotPCMWAV = errors.New("not an uncompressed PCM WAV file")

// ProbeWAVFile reads the header of path and checks it is a PCM WAV container.
func ProbeWAVFile(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()
	return ProbeWAV(f)
}

// ProbeWAV walks RIFF chunks until it finds "fmt " and validates it is PCM.
func ProbeWAV(r io.Reader) (WAVInfo, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return WAVInfo{}, fmt.Errorf("%w: short header", ErrNotPCMWAV)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return WAVInfo{}, fmt.Errorf("%w: missing RIFF/WAVE magic", ErrNotPCMWAV)
	}

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return WAVInfo{}, fmt.Errorf("%w: no fmt chunk", ErrNotPCMWAV)
		}
		size := binary.LittleEndian.Uint32(chunk[4:8])
		if string(chunk[0:4]) != "fmt " {
			if _, err := io.CopyN(io.Discard, r, int64(size)+int64(size%2)); err != nil {
				return WAVInfo{}, fmt.Errorf("%w: truncated chunk", ErrNotPCMWAV)
			}
			continue
		}
		if size < 16 {
			return WAVInfo{}, fmt.Errorf("%w: fmt chunk too small", ErrNotPCMWAV)
		}
		var body [16]byte
		if _, err := io.ReadFull(r, body[:]); err != nil {
			return WAVInfo{}, fmt.Errorf("%w: truncated fmt chunk", ErrNotPCMWAV)
		}
		info := WAVInfo{
			AudioFormat:   binary.LittleEndian.Uint16(body[0:2]),
			Channels:      binary.LittleEndian.Uint16(body[2:4]),
			SampleRate:    binary.LittleEndian.Uint32(body[4:8]),
			BitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
		}
		// ffmpeg writes the extensible format for more than two channels.
		if info.AudioFormat != wavFormatPCM && info.AudioFormat != wavFormatExtensible {
			return WAVInfo{}, fmt.Errorf("%w: format tag %d", ErrNotPCMWAV, info.AudioFormat)
		}
		return info, nil
	}
}
