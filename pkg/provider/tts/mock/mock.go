// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/intervoq/intervoq/pkg/provider/tts"
	"github.com/intervoq/intervoq/pkg/types"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice types.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by Synthesize. Defaults to a small non-empty payload.
	Audio []byte

	// SynthesizeErr, if non-nil, is returned by Synthesize.
	SynthesizeErr error

	// Voices is returned by ListVoices.
	Voices []types.VoiceProfile

	// Calls records every invocation of Synthesize in order.
	Calls []SynthesizeCall
}

// Synthesize records the call and returns Audio, SynthesizeErr.
func (p *Provider) Synthesize(_ context.Context, text string, voice types.VoiceProfile) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, SynthesizeCall{Text: text, Voice: voice})
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	if p.Audio == nil {
		return []byte{0, 0}, nil
	}
	return p.Audio, nil
}

// ListVoices returns the configured voice list.
func (p *Provider) ListVoices(_ context.Context) ([]types.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Voices, nil
}

var _ tts.Provider = (*Provider)(nil)
