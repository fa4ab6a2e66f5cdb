// Package mock provides in-memory mock implementations of the
// [audio.Transport] and [audio.Conn] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields the test can set to control return values.
//
// Typical usage:
//
//	conn := &mock.Conn{Channel: "vc-1"}
//	transport := &mock.Transport{ConnectResult: conn}
//	got, err := transport.Connect(ctx, "guild-1", "vc-1")
package mock

import (
	"context"
	"sync"

	"github.com/quincybot/quincy/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Transport = (*Transport)(nil)
	_ audio.Conn      = (*Conn)(nil)
)

// ─── Conn ─────────────────────────────────────────────────────────────────────

// Conn is a mock implementation of [audio.Conn].
// Set the exported fields before use; inspect the CallCount* fields after.
type Conn struct {
	mu sync.Mutex

	// Channel is returned by [Conn.ChannelID].
	Channel string

	// PlayError is returned by [Conn.Play].
	PlayError error

	// StopError is returned by [Conn.Stop].
	StopError error

	// PauseError is returned by [Conn.Pause].
	PauseError error

	// ResumeError is returned by [Conn.Resume].
	ResumeError error

	// SetVolumeError is returned by [Conn.SetVolume].
	SetVolumeError error

	// CloseError is returned by the first call to [Conn.Close].
	CloseError error

	// CallCountPlay records how many times Play was called.
	CallCountPlay int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	// CallCountPause records how many times Pause was called.
	CallCountPause int

	// CallCountResume records how many times Resume was called.
	CallCountResume int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	// Volumes holds every value passed to SetVolume, in order.
	Volumes []float64

	// PlayedSources holds every Source passed to Play, in order.
	// Sources are closed by the mock on Play to mirror adapter ownership.
	PlayedSources []audio.Source

	closed bool
}

// ChannelID implements [audio.Conn].
func (c *Conn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Channel
}

// Play implements [audio.Conn]. The source is recorded and closed immediately.
func (c *Conn) Play(_ context.Context, src audio.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountPlay++
	c.PlayedSources = append(c.PlayedSources, src)
	if src != nil {
		_ = src.Close()
	}
	return c.PlayError
}

// Stop implements [audio.Conn].
func (c *Conn) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountStop++
	return c.StopError
}

// Pause implements [audio.Conn].
func (c *Conn) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountPause++
	return c.PauseError
}

// Resume implements [audio.Conn].
func (c *Conn) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountResume++
	return c.ResumeError
}

// SetVolume implements [audio.Conn].
func (c *Conn) SetVolume(v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Volumes = append(c.Volumes, v)
	return c.SetVolumeError
}

// Close implements [audio.Conn]. Only the first call returns CloseError;
// subsequent calls are no-ops returning nil, matching the interface contract.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountClose++
	if c.closed {
		return nil
	}
	c.closed = true
	return c.CloseError
}

// Closed reports whether Close has been called at least once.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ─── Transport ────────────────────────────────────────────────────────────────

// Transport is a mock implementation of [audio.Transport].
type Transport struct {
	mu sync.Mutex

	// ConnectResult is returned by [Transport.Connect] when ConnectFunc is nil.
	// When nil, a fresh [Conn] attached to the requested channel is returned.
	ConnectResult audio.Conn

	// ConnectError is returned by [Transport.Connect] when non-nil.
	ConnectError error

	// ConnectFunc, when set, overrides the canned results entirely.
	ConnectFunc func(ctx context.Context, guildID, channelID string) (audio.Conn, error)

	// CallCountConnect records how many times Connect was called.
	CallCountConnect int

	// ConnectedGuilds holds every guildID passed to Connect, in order.
	ConnectedGuilds []string

	// ConnectedChannels holds every channelID passed to Connect, in order.
	ConnectedChannels []string
}

// Connect implements [audio.Transport].
func (t *Transport) Connect(ctx context.Context, guildID, channelID string) (audio.Conn, error) {
	t.mu.Lock()
	t.CallCountConnect++
	t.ConnectedGuilds = append(t.ConnectedGuilds, guildID)
	t.ConnectedChannels = append(t.ConnectedChannels, channelID)
	fn := t.ConnectFunc
	result := t.ConnectResult
	errResult := t.ConnectError
	t.mu.Unlock()

	if fn != nil {
		return fn(ctx, guildID, channelID)
	}
	if errResult != nil {
		return nil, errResult
	}
	if result != nil {
		return result, nil
	}
	return &Conn{Channel: channelID}, nil
}
