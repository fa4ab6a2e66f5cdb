package voice

import "errors"

// Sentinel errors for the voice-session operation set. Every failure an
// operation returns wraps one of these, so callers can branch with errors.Is
// while still getting contextual messages.
var (
	// ErrValidation marks bad caller input, e.g. a negative volume. No state
	// is changed.
	ErrValidation = errors.New("voice: validation failed")

	// ErrNotConnected means the guild has no active voice session.
	ErrNotConnected = errors.New("voice: not connected")

	// ErrAlreadyConnected means the guild already has a session in the
	// requested channel.
	ErrAlreadyConnected = errors.New("voice: already connected")

	// ErrInvalidState marks a pause/resume attempt from the wrong activity
	// state. The session is left unchanged.
	ErrInvalidState = errors.New("voice: invalid state transition")

	// ErrSoundNotFound means the resolver found nothing close to the query.
	ErrSoundNotFound = errors.New("voice: sound not found")

	// ErrTransport wraps failures of the underlying audio transport. The
	// affected session reverts to Idle since consistency with the transport
	// can no longer be assumed.
	ErrTransport = errors.New("voice: transport failure")

	// ErrSynthesis wraps text-to-speech failures. The affected session
	// reverts to Idle.
	ErrSynthesis = errors.New("voice: synthesis failure")

	// ErrRateLimited means the guild exceeded its playback rate budget. No
	// state is changed.
	ErrRateLimited = errors.New("voice: rate limited")
)
