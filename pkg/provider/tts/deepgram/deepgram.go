// Package deepgram provides a Deepgram Aura-backed TTS provider.
// It implements the tts.Provider interface over the /v1/speak HTTP API.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/intervoq/intervoq/pkg/provider/tts"
	"github.com/intervoq/intervoq/pkg/types"
)

const (
	speakEndpoint = "https://api.deepgram.com/v1/speak"

	// DefaultVoice is the interviewer voice used when none is configured.
	DefaultVoice = "aura-asteria-en"

	defaultSampleRate = 16000

	// maxRetries is the number of additional attempts after a transient
	// transport failure (timeout, connection reset).
	maxRetries = 2

	retryDelay = time.Second
)

// auraVoices is the catalogue returned by ListVoices. The speak API has no
// discovery endpoint.
var auraVoices = []string{
	"aura-asteria-en",
	"aura-luna-en",
	"aura-stella-en",
	"aura-athena-en",
	"aura-hera-en",
	"aura-orion-en",
	"aura-arcas-en",
	"aura-perseus-en",
	"aura-angus-en",
	"aura-orpheus-en",
	"aura-helios-en",
	"aura-zeus-en",
}

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithSampleRate sets the output sample rate in Hz. Default 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithHTTPClient overrides the HTTP client used for synthesis requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithBaseURL overrides the speak endpoint. Used in tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = u
	}
}

// Provider implements tts.Provider backed by the Deepgram Aura speak API.
type Provider struct {
	apiKey     string
	sampleRate int
	baseURL    string
	httpClient *http.Client
}

// New creates a new Deepgram TTS Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram tts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		sampleRate: defaultSampleRate,
		baseURL:    speakEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize implements tts.Provider. Transient transport failures are
// retried up to maxRetries times with a fixed delay.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) ([]byte, error) {
	if text == "" {
		return nil, errors.New("deepgram tts: text must not be empty")
	}

	model := voice.ID
	if model == "" {
		model = DefaultVoice
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		audio, err := p.speak(ctx, text, model)
		if err == nil {
			return audio, nil
		}
		lastErr = err
		if !isTransient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("deepgram tts: synthesis failed after %d attempts: %w", maxRetries+1, lastErr)
}

// speak performs a single synthesis request.
func (p *Provider) speak(ctx context.Context, text, model string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("deepgram tts: marshal request: %w", err)
	}

	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("deepgram tts: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("model", model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(p.sampleRate))
	q.Set("container", "none")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("deepgram tts: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram tts: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("deepgram tts: status %d: %s", resp.StatusCode, b)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("deepgram tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("deepgram tts: empty audio response")
	}
	return audio, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(_ context.Context) ([]types.VoiceProfile, error) {
	voices := make([]types.VoiceProfile, 0, len(auraVoices))
	for _, id := range auraVoices {
		voices = append(voices, types.VoiceProfile{
			ID:       id,
			Name:     id,
			Provider: "deepgram",
		})
	}
	return voices, nil
}

// isTransient reports whether err is worth retrying: timeouts and broken
// connections, not auth or validation failures.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

var _ tts.Provider = (*Provider)(nil)
