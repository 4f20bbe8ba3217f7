// Package mock provides test doubles for the stt.Provider and
// stt.SessionHandle interfaces.
//
// Use Provider in unit tests to feed scripted transcripts through the
// interview socket handler without a live STT connection.
package mock

import (
	"context"
	"sync"

	"github.com/intervoq/intervoq/pkg/provider/stt"
	"github.com/intervoq/intervoq/pkg/types"
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by StartStream.
	StartErr error

	// Session is returned by StartStream when StartErr is nil. If nil, a fresh
	// Session is created per call.
	Session *Session

	// StartCalls records the configs passed to StartStream.
	StartCalls []stt.StreamConfig
}

// StartStream records the call and returns the configured session.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls = append(p.StartCalls, cfg)
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(), nil
}

// Session is a mock implementation of stt.SessionHandle. Tests push
// transcripts through EmitPartial and EmitFinal and inspect the audio and
// keepalive counters afterwards.
type Session struct {
	mu sync.Mutex

	partials chan types.Transcript
	finals   chan types.Transcript

	closed bool

	// SendErr, if non-nil, is returned by SendAudio.
	SendErr error

	// KeepaliveErr, if non-nil, is returned by Keepalive.
	KeepaliveErr error

	// AudioChunks records every chunk passed to SendAudio.
	AudioChunks [][]byte

	// KeepaliveCount is the number of Keepalive calls.
	KeepaliveCount int
}

// NewSession creates a Session with buffered transcript channels.
func NewSession() *Session {
	return &Session{
		partials: make(chan types.Transcript, 64),
		finals:   make(chan types.Transcript, 64),
	}
}

// SendAudio records the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.ErrSessionClosed
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.AudioChunks = append(s.AudioChunks, c)
	return nil
}

// Keepalive increments the keepalive counter.
func (s *Session) Keepalive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.ErrSessionClosed
	}
	if s.KeepaliveErr != nil {
		return s.KeepaliveErr
	}
	s.KeepaliveCount++
	return nil
}

// Audio returns a copy of every chunk passed to SendAudio.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.AudioChunks))
	copy(out, s.AudioChunks)
	return out
}

// Keepalives returns the number of Keepalive calls so far.
func (s *Session) Keepalives() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.KeepaliveCount
}

// Partials returns the partial transcript channel.
func (s *Session) Partials() <-chan types.Transcript { return s.partials }

// Finals returns the final transcript channel.
func (s *Session) Finals() <-chan types.Transcript { return s.finals }

// EmitPartial delivers an interim transcript to the session consumer.
func (s *Session) EmitPartial(text string, confidence float64) {
	s.partials <- types.Transcript{Text: text, Confidence: confidence}
}

// EmitFinal delivers a committed transcript to the session consumer.
func (s *Session) EmitFinal(text string, confidence float64) {
	s.finals <- types.Transcript{Text: text, IsFinal: true, Confidence: confidence}
}

// Close marks the session closed and closes both transcript channels.
// Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.partials)
	close(s.finals)
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)
