// Package audioconv decodes recorded answers into the 16 kHz mono float32
// PCM the transcriber expects.
package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const TargetRate = 16000

// Extensions lists the file types Decode accepts.
var Extensions = []string{".wav", ".mp3", ".ogg", ".oga", ".opus"}

// raw is decoded audio before downmix and resampling.
type raw struct {
	samples  []float32 // interleaved
	channels int
	rate     int
}

type decoder func(io.ReadSeeker) (raw, error)

var byExt = map[string][]decoder{
	".wav":  {decodeWAV},
	".mp3":  {decodeMP3},
	".ogg":  {decodeVorbis, decodeOpus},
	".oga":  {decodeVorbis, decodeOpus},
	".opus": {decodeOpus},
}

var byMagic = map[string][]decoder{
	"RIFF":    {decodeWAV},
	"OggS":    {decodeVorbis, decodeOpus},
	"ID3\x03": {decodeMP3},
	"ID3\x04": {decodeMP3},
}

// DecodeFile reads path and returns at most maxSamples (0 = all) of 16 kHz
// mono audio. Unknown extensions are sniffed by their magic bytes.
func DecodeFile(ctx context.Context, path string, maxSamples int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoders, ok := byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		magic, _ := bufio.NewReader(f).Peek(4)
		if decoders, ok = byMagic[string(magic)]; !ok {
			return nil, fmt.Errorf("unsupported format: %s", filepath.Base(path))
		}
	}

	var errs []error
	for _, dec := range decoders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		r, err := dec(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return finish(r, maxSamples), nil
	}
	return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), errors.Join(errs...))
}

// finish downmixes, resamples to TargetRate and truncates.
func finish(r raw, maxSamples int) []float32 {
	x := downmixInterleaved(r.samples, r.channels)
	x = resampleLinear(x, r.rate, TargetRate)
	if maxSamples > 0 && len(x) > maxSamples {
		x = x[:maxSamples]
	}
	return x
}

func decodeWAV(rs io.ReadSeeker) (raw, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return raw{}, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return raw{}, err
	}
	if pb == nil || len(pb.Data) == 0 {
		return raw{}, errors.New("empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	r := raw{samples: intSliceToFloat32(pb.Data, bd), channels: 1, rate: 44100}
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			r.channels = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			r.rate = pb.Format.SampleRate
		}
	}
	return r, nil
}

func decodeMP3(rs io.ReadSeeker) (raw, error) {
	dec, err := mp3.NewDecoder(rs)
	if err != nil {
		return raw{}, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, dec); err != nil {
		return raw{}, err
	}
	ints := make([]int16, buf.Len()/2)
	if err := binary.Read(&buf, binary.LittleEndian, &ints); err != nil {
		return raw{}, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	// go-mp3 always emits 16-bit stereo.
	return raw{samples: int16SliceToFloat32(ints), channels: 2, rate: rate}, nil
}

func decodeVorbis(rs io.ReadSeeker) (raw, error) {
	pcm, format, err := oggvorbis.ReadAll(rs)
	if err != nil {
		return raw{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return raw{}, errors.New("invalid ogg/vorbis stream")
	}
	return raw{samples: pcm, channels: format.Channels, rate: format.SampleRate}, nil
}

func decodeOpus(rs io.ReadSeeker) (raw, error) {
	dec, err := popus.NewDecoder(rs)
	if err != nil {
		return raw{}, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// Opus always decodes at 48 kHz; read in ~0.5 s chunks.
	var (
		pcm []float32
		buf = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf) // n is samples per channel
		if n > 0 {
			pcm = append(pcm, int16SliceToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw{}, err
		}
	}
	if len(pcm) == 0 {
		return raw{}, errors.New("empty opus stream")
	}
	return raw{samples: pcm, channels: ch, rate: 48000}, nil
}
