package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quincybot/quincy/internal/observe"
	"github.com/quincybot/quincy/internal/soundboard"
	"github.com/quincybot/quincy/pkg/audio"
	"github.com/quincybot/quincy/pkg/tts"
)

// Config carries the controller's collaborators and tuning.
type Config struct {
	// Registry holds the per-guild sessions. Required.
	Registry *Registry

	// Transport opens voice connections. Required.
	Transport audio.Transport

	// Synth produces speech for SayText. Required.
	Synth tts.Synthesizer

	// Library is the soundboard catalog. Required.
	Library *soundboard.Library

	// Resolver matches free-text queries against the library. Required.
	Resolver *soundboard.Resolver

	// Requests is the sound-request log. Optional; when nil, RequestSound is
	// disabled.
	Requests *soundboard.RequestLog

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics

	// PlaybackRate limits playback-starting operations per guild, in
	// operations per second. Zero disables limiting.
	PlaybackRate rate.Limit

	// PlaybackBurst is the per-guild burst allowance. Defaults to 1 when
	// limiting is enabled.
	PlaybackBurst int

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Controller is the facade over the per-guild voice sessions. Every operation
// validates guild-level state through the registry before touching the
// external transport, so a failure in one guild never affects another.
type Controller struct {
	reg       *Registry
	transport audio.Transport
	synth     tts.Synthesizer
	library   *soundboard.Library
	resolver  *soundboard.Resolver
	requests  *soundboard.RequestLog
	metrics   *observe.Metrics
	now       func() time.Time

	playRate  rate.Limit
	playBurst int
	limMu     sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewController validates cfg and returns a Controller.
func NewController(cfg Config) (*Controller, error) {
	var errs []error
	if cfg.Registry == nil {
		errs = append(errs, errors.New("Registry must not be nil"))
	}
	if cfg.Transport == nil {
		errs = append(errs, errors.New("Transport must not be nil"))
	}
	if cfg.Synth == nil {
		errs = append(errs, errors.New("Synth must not be nil"))
	}
	if cfg.Library == nil {
		errs = append(errs, errors.New("Library must not be nil"))
	}
	if cfg.Resolver == nil {
		errs = append(errs, errors.New("Resolver must not be nil"))
	}
	if cfg.PlaybackRate < 0 {
		errs = append(errs, fmt.Errorf("PlaybackRate must not be negative, got %v", cfg.PlaybackRate))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("voice: invalid controller config: %w", errors.Join(errs...))
	}

	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PlaybackBurst <= 0 {
		cfg.PlaybackBurst = 1
	}
	return &Controller{
		reg:       cfg.Registry,
		transport: cfg.Transport,
		synth:     cfg.Synth,
		library:   cfg.Library,
		resolver:  cfg.Resolver,
		requests:  cfg.Requests,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		playRate:  cfg.PlaybackRate,
		playBurst: cfg.PlaybackBurst,
		limiters:  make(map[string]*rate.Limiter),
	}, nil
}

// Join connects the guild to the given voice channel. Joining the channel the
// guild is already in fails with [ErrAlreadyConnected]; joining a different
// channel moves the session there, resetting it to Idle.
func (c *Controller) Join(ctx context.Context, guildID, channelID string) error {
	if guildID == "" || channelID == "" {
		return fmt.Errorf("%w: guild and channel IDs must not be empty", ErrValidation)
	}

	var created, moved bool
	err := c.reg.Upsert(guildID, true, func(s *Session) error {
		if s.Conn != nil {
			if s.ChannelID == channelID {
				return fmt.Errorf("%w: guild %s is already in channel %s", ErrAlreadyConnected, guildID, channelID)
			}
			// Moving channels: tear the old connection down first. A close
			// failure is not fatal; the handle is abandoned either way.
			if err := s.Conn.Close(); err != nil {
				slog.Warn("closing connection before channel move", "guild_id", guildID, "err", err)
			}
			s.Conn = nil
			moved = true
		} else {
			created = true
		}

		conn, err := c.transport.Connect(ctx, guildID, channelID)
		if err != nil {
			c.metrics.RecordTransportError(ctx, "connect")
			return fmt.Errorf("%w: connect guild %s channel %s: %w", ErrTransport, guildID, channelID, err)
		}
		s.Conn = conn
		s.ChannelID = channelID
		s.Activity = ActivityIdle
		s.Source = nil
		s.LastActivityAt = c.now()
		return nil
	})

	switch {
	case err == nil && created:
		c.metrics.ActiveSessions.Add(ctx, 1)
	case err != nil && moved:
		// The reconnect after the move failed; the registry dropped the
		// now-handleless session.
		c.metrics.ActiveSessions.Add(ctx, -1)
	}
	return err
}

// Summon is Join for the channel the invoking user currently occupies. The
// front end resolves the user's channel; the session semantics are identical.
func (c *Controller) Summon(ctx context.Context, guildID, channelID string) error {
	return c.Join(ctx, guildID, channelID)
}

// Leave disconnects the guild and removes its session.
func (c *Controller) Leave(ctx context.Context, guildID string) error {
	s, ok := c.reg.RemoveIf(guildID, func(*Session) bool { return true })
	if !ok {
		return fmt.Errorf("%w: guild %s", ErrNotConnected, guildID)
	}
	c.metrics.ActiveSessions.Add(ctx, -1)
	if s.Conn != nil {
		if err := s.Conn.Close(); err != nil {
			c.metrics.RecordTransportError(ctx, "disconnect")
			return fmt.Errorf("%w: disconnect guild %s: %w", ErrTransport, guildID, err)
		}
	}
	return nil
}

// Play starts playback of the stream produced by open. A stream already
// playing in the guild is replaced.
func (c *Controller) Play(ctx context.Context, guildID string, open SourceFunc) error {
	if open == nil {
		return fmt.Errorf("%w: source must not be nil", ErrValidation)
	}
	if !c.allow(guildID) {
		return fmt.Errorf("%w: guild %s", ErrRateLimited, guildID)
	}
	return c.play(ctx, guildID, "stream", open)
}

// play runs the shared playback path. Callers have already passed the rate
// limiter.
func (c *Controller) play(ctx context.Context, guildID, kind string, open SourceFunc) error {
	return c.reg.Upsert(guildID, false, func(s *Session) error {
		src, err := open(ctx)
		if err != nil {
			s.Activity = ActivityIdle
			s.Source = nil
			return fmt.Errorf("voice: open audio source for guild %s: %w", guildID, err)
		}
		if err := s.Conn.Play(ctx, src); err != nil {
			s.Activity = ActivityIdle
			s.Source = nil
			c.metrics.RecordTransportError(ctx, "play")
			return fmt.Errorf("%w: play in guild %s: %w", ErrTransport, guildID, err)
		}
		s.Activity = ActivityPlaying
		s.Source = open
		s.LastActivityAt = c.now()
		c.metrics.RecordPlayback(ctx, kind)
		return nil
	})
}

// Pause suspends the current stream. Valid only while Playing.
func (c *Controller) Pause(ctx context.Context, guildID string) error {
	return c.reg.Upsert(guildID, false, func(s *Session) error {
		if s.Activity != ActivityPlaying {
			return fmt.Errorf("%w: cannot pause while %s", ErrInvalidState, s.Activity)
		}
		if err := s.Conn.Pause(); err != nil {
			s.Activity = ActivityIdle
			s.Source = nil
			c.metrics.RecordTransportError(ctx, "pause")
			return fmt.Errorf("%w: pause guild %s: %w", ErrTransport, guildID, err)
		}
		s.Activity = ActivityPaused
		s.LastActivityAt = c.now()
		return nil
	})
}

// Resume restarts a paused stream. Valid only while Paused.
func (c *Controller) Resume(ctx context.Context, guildID string) error {
	return c.reg.Upsert(guildID, false, func(s *Session) error {
		if s.Activity != ActivityPaused {
			return fmt.Errorf("%w: cannot resume while %s", ErrInvalidState, s.Activity)
		}
		if err := s.Conn.Resume(); err != nil {
			s.Activity = ActivityIdle
			s.Source = nil
			c.metrics.RecordTransportError(ctx, "resume")
			return fmt.Errorf("%w: resume guild %s: %w", ErrTransport, guildID, err)
		}
		s.Activity = ActivityPlaying
		s.LastActivityAt = c.now()
		return nil
	})
}

// Stop halts playback and returns the session to Idle. Stopping an idle
// session is a no-op.
func (c *Controller) Stop(ctx context.Context, guildID string) error {
	return c.reg.Upsert(guildID, false, func(s *Session) error {
		err := s.Conn.Stop()
		s.Activity = ActivityIdle
		s.Source = nil
		s.LastActivityAt = c.now()
		if err != nil {
			c.metrics.RecordTransportError(ctx, "stop")
			return fmt.Errorf("%w: stop guild %s: %w", ErrTransport, guildID, err)
		}
		return nil
	})
}

// SetVolume sets the guild's playback gain. Negative or NaN values fail with
// [ErrValidation]; values above 2.0 are clamped down to 2.0.
func (c *Controller) SetVolume(ctx context.Context, guildID string, v float64) error {
	if v < 0 || math.IsNaN(v) {
		return fmt.Errorf("%w: volume %v is out of range", ErrValidation, v)
	}
	if v > 2.0 {
		v = 2.0
	}
	return c.reg.Upsert(guildID, false, func(s *Session) error {
		if err := s.Conn.SetVolume(v); err != nil {
			s.Activity = ActivityIdle
			s.Source = nil
			c.metrics.RecordTransportError(ctx, "set_volume")
			return fmt.Errorf("%w: set volume in guild %s: %w", ErrTransport, guildID, err)
		}
		s.Volume = v
		s.LastActivityAt = c.now()
		return nil
	})
}

// SayText synthesizes text in the given language and plays it in the guild.
// The synthesized audio is buffered so a later refresh can replay it.
func (c *Controller) SayText(ctx context.Context, guildID, text, languageCode string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text must not be empty", ErrValidation)
	}
	if _, ok := c.reg.Get(guildID); !ok {
		return fmt.Errorf("%w: guild %s", ErrNotConnected, guildID)
	}
	if !c.allow(guildID) {
		return fmt.Errorf("%w: guild %s", ErrRateLimited, guildID)
	}

	start := time.Now()
	src, err := c.synth.Synthesize(ctx, text, languageCode)
	if err == nil {
		c.metrics.SynthDuration.Record(ctx, time.Since(start).Seconds())
	}
	var open SourceFunc
	if err == nil {
		open, err = bufferSource(src)
	}
	if err != nil {
		_ = c.reg.Upsert(guildID, false, func(s *Session) error {
			s.Activity = ActivityIdle
			s.Source = nil
			return nil
		})
		return fmt.Errorf("%w: guild %s: %w", ErrSynthesis, guildID, err)
	}
	return c.play(ctx, guildID, "tts", open)
}

// PlaySound resolves query against the sound library and plays an exact
// match. An ambiguous result returns the ranked candidates without playing
// anything; no match fails with [ErrSoundNotFound].
func (c *Controller) PlaySound(ctx context.Context, guildID, query string) (soundboard.Match, error) {
	start := time.Now()
	m := c.resolver.Resolve(query, c.library.Current())
	c.metrics.ResolveDuration.Record(ctx, time.Since(start).Seconds())

	switch m.Kind {
	case soundboard.MatchNotFound:
		return m, fmt.Errorf("%w: %q", ErrSoundNotFound, query)
	case soundboard.MatchAmbiguous:
		return m, nil
	}

	if !c.allow(guildID) {
		return m, fmt.Errorf("%w: guild %s", ErrRateLimited, guildID)
	}
	path := m.Entry.Path
	err := c.play(ctx, guildID, "sound", func(context.Context) (audio.Source, error) {
		return audio.FileSource(path)
	})
	return m, err
}

// RequestSound records a user's wish for a sound that is not in the library.
// Returns [soundboard.ErrRequestStorageFull] once the request file's byte
// budget is used up.
func (c *Controller) RequestSound(text string) error {
	if c.requests == nil {
		return errors.New("voice: sound requests are not enabled")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: request text must not be empty", ErrValidation)
	}
	return c.requests.Append(text)
}

// Refresh tears down and re-establishes the guild's transport connection
// without changing what the session is doing; a playing stream is re-opened
// and restarted on the new connection. Used to dodge transport-level idle
// timeouts.
func (c *Controller) Refresh(ctx context.Context, guildID string) error {
	var lost bool
	err := c.reg.Upsert(guildID, false, func(s *Session) error {
		s.AutoReconnectPending = true
		if err := s.Conn.Close(); err != nil {
			slog.Warn("closing connection before refresh", "guild_id", guildID, "err", err)
		}
		s.Conn = nil

		conn, err := c.transport.Connect(ctx, guildID, s.ChannelID)
		if err != nil {
			lost = true
			c.metrics.RecordTransportError(ctx, "reconnect")
			return fmt.Errorf("%w: reconnect guild %s: %w", ErrTransport, guildID, err)
		}
		s.Conn = conn
		s.AutoReconnectPending = false
		if err := conn.SetVolume(s.Volume); err != nil {
			slog.Warn("restoring volume after refresh", "guild_id", guildID, "err", err)
		}

		if s.Activity == ActivityPlaying && s.Source != nil {
			src, err := s.Source(ctx)
			if err == nil {
				err = conn.Play(ctx, src)
			}
			if err != nil {
				s.Activity = ActivityIdle
				s.Source = nil
				c.metrics.RecordTransportError(ctx, "play")
				return fmt.Errorf("%w: restart playback after refresh in guild %s: %w", ErrTransport, guildID, err)
			}
		}
		s.LastActivityAt = c.now()
		return nil
	})
	if lost {
		// The reconnect failed, so the registry dropped the session.
		c.metrics.ActiveSessions.Add(ctx, -1)
	}
	return err
}

// EvictIdle removes every session whose last activity is older than
// threshold, closing each transport handle exactly once. Ongoing playback
// does not count as activity. Returns the number of evicted sessions.
func (c *Controller) EvictIdle(ctx context.Context, threshold time.Duration) int {
	evicted := 0
	for _, guildID := range c.reg.GuildIDs() {
		now := c.now()
		s, ok := c.reg.RemoveIf(guildID, func(s *Session) bool {
			return now.Sub(s.LastActivityAt) > threshold
		})
		if !ok {
			continue
		}
		evicted++
		c.metrics.ActiveSessions.Add(ctx, -1)
		c.metrics.Evictions.Add(ctx, 1)
		if s.Conn != nil {
			if err := s.Conn.Close(); err != nil {
				slog.Warn("disconnecting idle session", "guild_id", guildID, "err", err)
			}
		}
		slog.Info("evicted idle voice session",
			"guild_id", guildID, "channel_id", s.ChannelID, "activity", s.Activity)
	}
	return evicted
}

// CloseAll removes every session and closes its handle. Called on shutdown so
// the process never leaves a channel occupied.
func (c *Controller) CloseAll(ctx context.Context) {
	for _, guildID := range c.reg.GuildIDs() {
		s, ok := c.reg.RemoveIf(guildID, func(*Session) bool { return true })
		if !ok {
			continue
		}
		c.metrics.ActiveSessions.Add(ctx, -1)
		if s.Conn != nil {
			if err := s.Conn.Close(); err != nil {
				slog.Warn("closing session on shutdown", "guild_id", guildID, "err", err)
			}
		}
	}
}

// Session returns a snapshot of the guild's session.
func (c *Controller) Session(guildID string) (Session, bool) {
	return c.reg.Get(guildID)
}

// allow consults the guild's playback rate limiter.
func (c *Controller) allow(guildID string) bool {
	if c.playRate <= 0 {
		return true
	}
	c.limMu.Lock()
	defer c.limMu.Unlock()
	l, ok := c.limiters[guildID]
	if !ok {
		l = rate.NewLimiter(c.playRate, c.playBurst)
		c.limiters[guildID] = l
	}
	return l.Allow()
}

// bufferSource reads src fully and returns a factory producing fresh readers
// over the buffered bytes. A declared PCM format survives the buffering.
func bufferSource(src audio.Source) (SourceFunc, error) {
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	var format *audio.Format
	if ps, ok := src.(audio.PCMSource); ok {
		f := ps.Format()
		format = &f
	}
	return func(context.Context) (audio.Source, error) {
		r := io.NopCloser(bytes.NewReader(data))
		if format != nil {
			return audio.NewPCMSource(r, *format), nil
		}
		return r, nil
	}, nil
}
