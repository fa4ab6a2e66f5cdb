// Package audio defines the interfaces and types for voice-channel transport
// within Quincy.
//
// The two primary abstractions are:
//
//   - [Transport] — joins a guild's voice channel and returns a [Conn].
//   - [Conn] — an active duplex audio channel to one guild, with playback
//     control (play, pause, resume, stop, volume).
//
// Implementations are provided by platform-specific adapter packages
// (e.g., audio/discord). The interfaces are intentionally narrow so the voice
// controller stays decoupled from provider details.
//
// This package lives under pkg/ because external code (third-party transport
// adapters) is expected to implement [Transport] and [Conn].
package audio

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Source is a stream of encoded or raw PCM audio consumed by [Conn.Play].
// Adapters sniff the content (MP3 vs 16-bit little-endian PCM) and convert as
// needed. The Conn takes ownership of the Source and closes it when playback
// ends or is interrupted.
type Source io.ReadCloser

// FileSource opens the audio file at path for playback.
func FileSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open source %q: %w", path, err)
	}
	return f, nil
}

// PCMSource is an optional extension of [Source] for streams carrying raw
// 16-bit little-endian PCM. Adapters use the declared format to convert the
// stream; sources without it are content-sniffed instead.
type PCMSource interface {
	Source

	// Format returns the sample rate and channel count of the PCM data.
	Format() Format
}

// NewPCMSource wraps r as a [PCMSource] with the declared format.
func NewPCMSource(r io.ReadCloser, f Format) PCMSource {
	return &pcmSource{ReadCloser: r, format: f}
}

type pcmSource struct {
	io.ReadCloser
	format Format
}

func (s *pcmSource) Format() Format { return s.format }

// Conn represents an active voice connection to a single guild's channel.
//
// A Conn is obtained from [Transport.Connect] and remains valid until
// [Conn.Close] is called. A Conn carries at most one stream at a time:
// calling Play while a stream is active replaces it.
//
// A Conn is exclusively owned by one voice session; callers must not address
// the same Conn from concurrent operations. Implementations must still be
// safe against the benign overlap of Close racing a playback drain.
type Conn interface {
	// ChannelID returns the voice channel this connection is attached to.
	ChannelID() string

	// Play starts streaming src to the channel. It returns once playback has
	// started; the stream drains on an internal goroutine. Any previously
	// active stream is stopped first. The Conn closes src when the stream
	// ends, is stopped, or the connection closes.
	Play(ctx context.Context, src Source) error

	// Stop halts the current stream, if any. Stopping an idle connection is a
	// no-op.
	Stop() error

	// Pause suspends transmission of the current stream without discarding it.
	Pause() error

	// Resume restarts transmission of a paused stream.
	Resume() error

	// SetVolume scales playback amplitude. 1.0 is unity gain; implementations
	// accept the range [0.0, 2.0].
	SetVolume(v float64) error

	// Close tears down the connection and releases the underlying voice
	// channel. Safe to call more than once; subsequent calls return nil.
	Close() error
}

// Transport is the entry point for a voice-channel provider.
// Implementations wrap provider-specific SDKs (Discord, …) and expose a
// uniform [Conn] abstraction keyed by guild.
//
// Implementations must be safe for concurrent use; connections to different
// guilds may be established in parallel.
type Transport interface {
	// Connect joins the voice channel identified by guildID and channelID and
	// returns an active [Conn]. The supplied ctx governs the connection
	// attempt only; once connected, the Conn lives until [Conn.Close].
	Connect(ctx context.Context, guildID, channelID string) (Conn, error)
}
