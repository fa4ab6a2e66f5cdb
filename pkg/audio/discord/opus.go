package discord

import (
	"fmt"

	"layeh.com/gopus"
)

// Discord voice uses 48 kHz stereo Opus at 20 ms frame size.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960
	// opusFrameSamples is the interleaved sample count of one stereo frame.
	opusFrameSamples = opusFrameSize * opusChannels
)

// opusEncoder wraps a gopus Opus encoder for the outgoing stream. One encoder
// exists per playback stream so encoder state never crosses streams.
type opusEncoder struct {
	enc *gopus.Encoder
}

// newOpusEncoder creates an Opus encoder configured for Discord audio.
func newOpusEncoder() (*opusEncoder, error) {
	enc, err := gopus.NewEncoder(opusSampleRate, opusChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("discord: create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc}, nil
}

// encode encodes exactly one interleaved stereo PCM frame into an Opus packet.
func (e *opusEncoder) encode(pcm []int16) ([]byte, error) {
	packet, err := e.enc.Encode(pcm, opusFrameSize, len(pcm)*2)
	if err != nil {
		return nil, fmt.Errorf("discord: opus encode: %w", err)
	}
	return packet, nil
}
