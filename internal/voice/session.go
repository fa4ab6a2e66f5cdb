// Package voice owns the per-guild voice-session lifecycle: the registry of
// live sessions, the controller exposing the operation set (join, leave,
// playback control, volume, speech, soundboard), and the background reaper
// that disconnects idle sessions.
//
// Concurrency granularity is per guild. All mutations of one guild's session
// serialize through the registry; operations on different guilds proceed
// fully in parallel.
package voice

import (
	"context"
	"time"

	"github.com/quincybot/quincy/pkg/audio"
)

// Activity is the playback state of a session.
type Activity int

const (
	// ActivityIdle means the session is connected but playing nothing.
	ActivityIdle Activity = iota
	// ActivityPlaying means a stream is being sent to the channel.
	ActivityPlaying
	// ActivityPaused means a stream exists but transmission is suspended.
	ActivityPaused
)

// String implements fmt.Stringer.
func (a Activity) String() string {
	switch a {
	case ActivityPlaying:
		return "playing"
	case ActivityPaused:
		return "paused"
	default:
		return "idle"
	}
}

// SourceFunc opens a fresh audio stream for playback. Streams are one-shot,
// so everything the controller plays is described by a re-openable factory;
// that is what lets a refresh restore playback over a new connection.
type SourceFunc func(ctx context.Context) (audio.Source, error)

// Session is the per-guild voice state. One session exists per guild with an
// active connection; absence from the registry means "not connected".
//
// Sessions are mutated only inside [Registry.Upsert] callbacks. The copies
// returned by [Registry.Get] and [Registry.RemoveIf] are snapshots; Conn on a
// snapshot is owned by whoever removed the session and must not be driven
// through a Get copy.
type Session struct {
	GuildID   string
	ChannelID string

	// Conn is the transport handle, exclusively owned by this session. It is
	// closed exactly once on every removal path.
	Conn audio.Conn

	Activity Activity

	// Volume is the playback gain in [0, 2].
	Volume float64

	// LastActivityAt is bumped by explicit user commands, not by ongoing
	// playback; the reaper evicts on its age alone.
	LastActivityAt time.Time

	// AutoReconnectPending is set while a refresh is re-establishing the
	// transport connection.
	AutoReconnectPending bool

	// Source re-opens the stream currently being played, when there is one.
	Source SourceFunc
}
