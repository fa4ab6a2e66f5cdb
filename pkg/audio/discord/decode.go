package discord

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/quincybot/quincy/pkg/audio"
)

// target is the PCM format Discord expects on the wire.
var target = audio.Format{SampleRate: opusSampleRate, Channels: opusChannels}

// frameReader turns an [audio.Source] into a sequence of fixed-size
// 48 kHz stereo PCM frames ready for Opus encoding.
//
// MP3 sources are detected by content sniffing and decoded with go-mp3.
// Raw PCM sources use the format declared via [audio.PCMSource], defaulting
// to 48 kHz stereo when undeclared. All input is resampled and channel
// converted to the target format.
type frameReader struct {
	r      io.Reader
	format audio.Format
	// buf accumulates converted samples until a full frame is available.
	buf []int16
}

// newFrameReader sniffs src and prepares a decoder for it. The caller retains
// ownership of src and must close it when the stream ends.
func newFrameReader(src audio.Source) (*frameReader, error) {
	br := bufio.NewReader(src)

	if ps, ok := src.(audio.PCMSource); ok {
		return &frameReader{r: br, format: ps.Format()}, nil
	}

	head, err := br.Peek(3)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("discord: empty audio source")
		}
		return nil, fmt.Errorf("discord: sniff audio source: %w", err)
	}

	if isMP3(head) {
		dec, err := mp3.NewDecoder(br)
		if err != nil {
			return nil, fmt.Errorf("discord: mp3 decoder: %w", err)
		}
		// go-mp3 always emits 16-bit stereo at the source sample rate.
		return &frameReader{r: dec, format: audio.Format{SampleRate: dec.SampleRate(), Channels: 2}}, nil
	}

	return &frameReader{r: br, format: target}, nil
}

// isMP3 reports whether head looks like the start of an MP3 stream: either an
// ID3 tag or an MPEG frame sync (11 set bits).
func isMP3(head []byte) bool {
	if len(head) >= 3 && head[0] == 'I' && head[1] == 'D' && head[2] == '3' {
		return true
	}
	return len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0
}

// chunkBytes is the read granularity from the underlying decoder: enough
// source data to yield roughly one output frame after resampling.
func (f *frameReader) chunkBytes() int {
	frames := f.format.SampleRate * opusFrameSizeMs / 1000
	if frames < 1 {
		frames = opusFrameSize
	}
	return frames * f.format.Channels * 2
}

// next returns the next interleaved stereo frame of opusFrameSamples samples.
// The final partial frame is zero-padded. Returns io.EOF when the source is
// exhausted.
func (f *frameReader) next() ([]int16, error) {
	chunk := make([]byte, f.chunkBytes())
	for len(f.buf) < opusFrameSamples {
		n, err := io.ReadFull(f.r, chunk)
		if n > 0 {
			pcm := audio.Int16s(chunk[:n])
			f.buf = append(f.buf, audio.Convert(pcm, f.format, target)...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("discord: read audio source: %w", err)
		}
	}

	if len(f.buf) == 0 {
		return nil, io.EOF
	}

	frame := make([]int16, opusFrameSamples)
	n := copy(frame, f.buf)
	f.buf = f.buf[n:]
	return frame, nil
}
