package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/intervoq/intervoq/pkg/types"
)

// TestNew_EmptyKey checks constructor validation.
func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

// TestSynthesize checks a successful request carries model, encoding and auth.
func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token dg-key" {
			t.Errorf("auth header = %q", got)
		}
		q := r.URL.Query()
		if q.Get("model") != "aura-asteria-en" {
			t.Errorf("model = %q", q.Get("model"))
		}
		if q.Get("encoding") != "linear16" {
			t.Errorf("encoding = %q", q.Get("encoding"))
		}
		if q.Get("sample_rate") != "16000" {
			t.Errorf("sample_rate = %q", q.Get("sample_rate"))
		}
		w.Write([]byte{1, 2, 3, 4})
	}))
	defer srv.Close()

	p, err := New("dg-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	audio, err := p.Synthesize(context.Background(), "Let's talk about Go.", types.VoiceProfile{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(audio) != 4 {
		t.Errorf("audio = %d bytes, want 4", len(audio))
	}
}

// TestSynthesize_EmptyText checks empty input is rejected without a request.
func TestSynthesize_EmptyText(t *testing.T) {
	p, err := New("dg-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "", types.VoiceProfile{}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

// TestSynthesize_AuthFailureNotRetried checks non-transient failures return
// immediately instead of burning retries.
func TestSynthesize_AuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := New("bad-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = p.Synthesize(context.Background(), "hello", types.VoiceProfile{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", calls.Load())
	}
}

// TestSynthesize_VoiceOverride checks the voice profile ID wins over the default.
func TestSynthesize_VoiceOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("model"); got != "aura-orion-en" {
			t.Errorf("model = %q, want aura-orion-en", got)
		}
		w.Write([]byte{0})
	}))
	defer srv.Close()

	p, err := New("dg-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "hi", types.VoiceProfile{ID: "aura-orion-en"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestListVoices checks the static catalogue includes the default voice.
func TestListVoices(t *testing.T) {
	p, err := New("dg-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, v := range voices {
		if v.ID == DefaultVoice {
			found = true
		}
		if v.Provider != "deepgram" {
			t.Errorf("voice %s provider = %q", v.ID, v.Provider)
		}
	}
	if !found {
		t.Errorf("default voice %s not in catalogue", DefaultVoice)
	}
}
