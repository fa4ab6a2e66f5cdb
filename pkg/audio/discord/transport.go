// Package discord provides an [audio.Transport] implementation backed by
// Discord voice channels via the bwmarrin/discordgo library. It bridges
// Quincy's PCM playback pipeline to Discord's Opus-based voice transport.
//
// The transport requires an active *discordgo.Session (owned by the app
// layer). Each call to [Transport.Connect] joins the requested guild voice
// channel and returns a [Conn] that streams one audio source at a time,
// encoding to Opus on the fly.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/quincybot/quincy/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Transport = (*Transport)(nil)

// Transport implements [audio.Transport] using discordgo voice connections.
// It is safe for concurrent use; connections to different guilds may be
// established in parallel.
type Transport struct {
	session *discordgo.Session
}

// New creates a Transport on top of an already-opened discordgo session.
func New(session *discordgo.Session) *Transport {
	return &Transport{session: session}
}

// Connect joins the voice channel identified by guildID and channelID.
// mute=false (we send audio), deaf=true (we never consume incoming audio).
// The supplied ctx governs the join attempt only; once connected the Conn
// lives until [Conn.Close].
func (t *Transport) Connect(ctx context.Context, guildID, channelID string) (audio.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := t.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q in guild %q: %w", channelID, guildID, err)
	}
	return newConn(vc, guildID, channelID), nil
}
