// Package app wires all Quincy subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run drives the long-running loops (Discord gateway, inactivity
// reaper, metrics endpoint), and Shutdown tears everything down in order,
// leaving no voice channel occupied.
//
// For testing, inject doubles via functional options (WithTransport,
// WithSynthesizer, WithMetrics). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/quincybot/quincy/internal/config"
	"github.com/quincybot/quincy/internal/health"
	"github.com/quincybot/quincy/internal/observe"
	"github.com/quincybot/quincy/internal/soundboard"
	"github.com/quincybot/quincy/internal/voice"
	"github.com/quincybot/quincy/pkg/audio"
	audiodiscord "github.com/quincybot/quincy/pkg/audio/discord"
	"github.com/quincybot/quincy/pkg/tts"
	"github.com/quincybot/quincy/pkg/tts/eleven"
	"github.com/quincybot/quincy/pkg/tts/gtrans"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	session    *discordgo.Session
	transport  audio.Transport
	synth      tts.Synthesizer
	metrics    *observe.Metrics
	library    *soundboard.Library
	requests   *soundboard.RequestLog
	registry   *voice.Registry
	controller *voice.Controller
	reaper     *voice.Reaper

	// closers are called in reverse order during Shutdown.
	closers []func(context.Context) error

	stopOnce sync.Once
	stopErr  error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithTransport injects a voice transport instead of the Discord adapter.
// The Discord gateway session is not created in that case.
func WithTransport(t audio.Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithSynthesizer injects a TTS backend instead of building one from config.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(a *App) { a.synth = s }
}

// WithMetrics injects a metrics instance instead of initialising the global
// OTel provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. Initialisation is
// synchronous: the sound library is scanned, the request log opened, and the
// Discord session prepared (the gateway is not dialled until Run).
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "quincy"})
		if err != nil {
			return nil, fmt.Errorf("app: init telemetry: %w", err)
		}
		a.closers = append(a.closers, shutdown)
		a.metrics = observe.DefaultMetrics()
	}

	lib, err := soundboard.NewLibrary(cfg.SoundDir)
	if err != nil {
		return nil, fmt.Errorf("app: scan sound library: %w", err)
	}
	a.library = lib
	slog.Info("sound library indexed", "dir", cfg.SoundDir, "sounds", lib.Current().Count())

	if cfg.SBRequestFile != "" {
		reqs, err := soundboard.OpenRequestLog(cfg.SBRequestFile, cfg.SBRequestFileMaxSize)
		if err != nil {
			return nil, fmt.Errorf("app: open request log: %w", err)
		}
		a.requests = reqs
		a.closers = append(a.closers, func(context.Context) error { return reqs.Close() })
	}

	if a.transport == nil {
		session, err := discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			return nil, fmt.Errorf("app: create discord session: %w", err)
		}
		session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
		a.session = session
		a.transport = audiodiscord.New(session)
	}

	if a.synth == nil {
		synth, err := buildSynthesizer(cfg.TTS)
		if err != nil {
			return nil, fmt.Errorf("app: build tts backend: %w", err)
		}
		a.synth = synth
	}

	a.registry = voice.NewRegistry()
	a.controller, err = voice.NewController(voice.Config{
		Registry:  a.registry,
		Transport: a.transport,
		Synth:     a.synth,
		Library:   a.library,
		Resolver: soundboard.NewResolver(
			soundboard.WithMaxDistance(cfg.Resolver.MaxDistance),
			soundboard.WithMaxSuggestions(cfg.Resolver.MaxSuggestions),
		),
		Requests:      a.requests,
		Metrics:       a.metrics,
		PlaybackRate:  rate.Limit(float64(cfg.RateLimit.PlaybacksPerMinute) / 60.0),
		PlaybackBurst: cfg.RateLimit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("app: build controller: %w", err)
	}

	a.reaper, err = voice.NewReaper(voice.ReaperConfig{
		Evictor:   a.controller,
		Interval:  cfg.VCCheckInterval(),
		Threshold: cfg.VCTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("app: build reaper: %w", err)
	}

	return a, nil
}

// buildSynthesizer constructs the TTS backend named in the config entry.
func buildSynthesizer(entry config.TTSEntry) (tts.Synthesizer, error) {
	switch entry.Name {
	case "gtrans":
		var opts []gtrans.Option
		if entry.BaseURL != "" {
			opts = append(opts, gtrans.WithBaseURL(entry.BaseURL))
		}
		if entry.DefaultLanguage != "" {
			opts = append(opts, gtrans.WithDefaultLanguage(entry.DefaultLanguage))
		}
		return gtrans.New(opts...), nil
	case "eleven":
		var opts []eleven.Option
		if entry.BaseURL != "" {
			opts = append(opts, eleven.WithEndpoint(entry.BaseURL))
		}
		return eleven.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown tts backend %q", entry.Name)
	}
}

// Controller exposes the voice operation set to the command front end.
func (a *App) Controller() *voice.Controller {
	return a.controller
}

// Library exposes the soundboard catalog for listing commands and reloads.
func (a *App) Library() *soundboard.Library {
	return a.library
}

// Run connects the Discord gateway and drives the background loops until ctx
// is cancelled. It returns nil on clean shutdown.
func (a *App) Run(ctx context.Context) error {
	if a.session != nil {
		if err := a.session.Open(); err != nil {
			return fmt.Errorf("app: open discord gateway: %w", err)
		}
		slog.Info("discord gateway connected")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.reaper.Run(ctx)
	})

	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.healthHandler().Register(mux)
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}

		g.Go(func() error {
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			slog.Info("metrics endpoint listening", "addr", a.cfg.MetricsAddr)
			select {
			case <-ctx.Done():
				shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutCtx)
				return ctx.Err()
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("app: metrics server: %w", err)
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// healthHandler assembles the readiness probes for the ops endpoint.
func (a *App) healthHandler() *health.Handler {
	checkers := []health.Checker{health.SoundLibrary(a.library)}
	if a.session != nil {
		checkers = append(checkers, health.Checker{
			Name: "discord",
			Check: func(context.Context) error {
				if !a.session.DataReady {
					return errors.New("gateway not ready")
				}
				return nil
			},
		})
	}
	return health.New(checkers...)
}

// Shutdown disconnects every voice session, closes the Discord gateway, and
// releases the remaining subsystems. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		var errs []error

		a.reaper.Stop()
		a.controller.CloseAll(ctx)

		if a.session != nil {
			if err := a.session.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close discord gateway: %w", err))
			}
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			a.stopErr = fmt.Errorf("app: shutdown: %w", errors.Join(errs...))
		}
	})
	return a.stopErr
}
