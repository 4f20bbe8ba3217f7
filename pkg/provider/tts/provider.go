// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Deepgram Aura) and
// presents a uniform interface. Interview questions and conversational
// transitions are short, so the primary entry point is Synthesize, which
// returns the full PCM payload for a single utterance; the socket handler
// chunks it for playback.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/intervoq/intervoq/pkg/types"
)

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel (one per live interview).
type Provider interface {
	// Synthesize converts text into raw PCM audio using the given voice
	// profile. The audio format (sample rate, encoding) is fixed by the
	// provider's construction options and must match what the interview
	// socket streams to clients.
	//
	// Implementations should retry transient transport failures internally;
	// a returned error means the utterance could not be synthesised and the
	// caller should fall back to text-only delivery.
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) ([]byte, error)

	// ListVoices returns all voice profiles available from this provider. The
	// list reflects the provider's current catalogue and may change between
	// calls if the underlying service adds or removes voices.
	//
	// Returns an error if the provider cannot be reached or if ctx is
	// cancelled before the list is retrieved.
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)
}
