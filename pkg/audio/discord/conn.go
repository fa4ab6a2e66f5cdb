package discord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/quincybot/quincy/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Conn = (*Conn)(nil)

// pausePollInterval is how often a paused stream re-checks its state.
const pausePollInterval = 50 * time.Millisecond

// Conn wraps a discordgo.VoiceConnection and adapts it to the [audio.Conn]
// interface. Playback runs on a per-stream goroutine that decodes the source,
// applies gain, encodes to Opus, and writes to the voice connection's send
// channel (discordgo paces transmission).
type Conn struct {
	vc        *discordgo.VoiceConnection
	guildID   string
	channelID string

	// volume holds the gain multiplier as math.Float64bits.
	volume atomic.Uint64

	mu      sync.Mutex
	current *stream
	closed  bool
}

// stream is one active playback. cancel stops the drain goroutine; done is
// closed when the goroutine has fully exited and released the source.
type stream struct {
	cancel chan struct{}
	done   chan struct{}
	paused atomic.Bool

	stopOnce sync.Once
}

// stop signals the stream and waits for its goroutine to exit, guaranteeing
// at most one writer on the voice connection at a time.
func (s *stream) stop() {
	s.stopOnce.Do(func() { close(s.cancel) })
	<-s.done
}

func newConn(vc *discordgo.VoiceConnection, guildID, channelID string) *Conn {
	c := &Conn{
		vc:        vc,
		guildID:   guildID,
		channelID: channelID,
	}
	c.volume.Store(math.Float64bits(1.0))
	return c
}

// ChannelID implements [audio.Conn].
func (c *Conn) ChannelID() string {
	return c.channelID
}

// Play implements [audio.Conn]. Any active stream is stopped first. The
// source is decoded and transmitted on a background goroutine; Play returns
// once that goroutine has started.
func (c *Conn) Play(ctx context.Context, src audio.Source) error {
	fr, err := newFrameReader(src)
	if err != nil {
		_ = src.Close()
		return err
	}
	enc, err := newOpusEncoder()
	if err != nil {
		_ = src.Close()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = src.Close()
		return context.Canceled
	}
	prev := c.current
	st := &stream{
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.current = st
	c.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	c.setSpeaking(true)
	go c.drain(ctx, st, fr, enc, src)
	return nil
}

// drain pushes frames from fr to the voice connection until the source is
// exhausted, the stream is stopped, or ctx is cancelled.
func (c *Conn) drain(ctx context.Context, st *stream, fr *frameReader, enc *opusEncoder, src audio.Source) {
	defer close(st.done)
	defer func() {
		_ = src.Close()
		c.setSpeaking(false)
	}()

	for {
		if st.paused.Load() {
			select {
			case <-st.cancel:
				return
			case <-ctx.Done():
				return
			case <-time.After(pausePollInterval):
			}
			continue
		}

		frame, err := fr.next()
		if err != nil {
			// io.EOF is the normal end of stream; anything else is a decode
			// failure worth surfacing in the log.
			if !errors.Is(err, io.EOF) {
				slog.Warn("discord: playback decode error", "guild_id", c.guildID, "err", err)
			}
			return
		}

		audio.Gain(frame, math.Float64frombits(c.volume.Load()))

		packet, err := enc.encode(frame)
		if err != nil {
			slog.Warn("discord: playback encode error", "guild_id", c.guildID, "err", err)
			return
		}

		select {
		case c.vc.OpusSend <- packet:
		case <-st.cancel:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop implements [audio.Conn]. Stopping with no active stream is a no-op.
func (c *Conn) Stop() error {
	c.mu.Lock()
	st := c.current
	c.current = nil
	c.mu.Unlock()

	if st != nil {
		st.stop()
	}
	return nil
}

// Pause implements [audio.Conn].
func (c *Conn) Pause() error {
	c.mu.Lock()
	st := c.current
	c.mu.Unlock()
	if st != nil {
		st.paused.Store(true)
	}
	return nil
}

// Resume implements [audio.Conn].
func (c *Conn) Resume() error {
	c.mu.Lock()
	st := c.current
	c.mu.Unlock()
	if st != nil {
		st.paused.Store(false)
	}
	return nil
}

// SetVolume implements [audio.Conn]. The new gain applies from the next frame.
func (c *Conn) SetVolume(v float64) error {
	c.volume.Store(math.Float64bits(v))
	return nil
}

// Close implements [audio.Conn]. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	st := c.current
	c.current = nil
	c.mu.Unlock()

	if st != nil {
		st.stop()
	}
	if err := c.vc.Disconnect(); err != nil {
		return err
	}
	return nil
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Conn) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "guild_id", c.guildID, "speaking", b, "err", err)
	}
}
