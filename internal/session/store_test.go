package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/intervoq/intervoq/internal/interview"
	memorymock "github.com/intervoq/intervoq/pkg/memory/mock"
)

// fakeHot is an in-memory HotClient.
type fakeHot struct {
	mu   sync.Mutex
	data map[string]string

	setErr error
	getErr error
}

func newFakeHot() *fakeHot {
	return &fakeHot{data: map[string]string{}}
}

func (f *fakeHot) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case string:
		f.data[key] = v
	case []byte:
		f.data[key] = string(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeHot) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeHot) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestStoreSaveLoad_HotHit(t *testing.T) {
	hot := newFakeHot()
	durable := &memorymock.Store{}
	store := NewStore(hot, durable)
	ctx := context.Background()

	st := newTestState()
	_ = st.Start()
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if durable.CallCount("SaveInterview") != 1 {
		t.Errorf("durable saves = %d", durable.CallCount("SaveInterview"))
	}

	got, err := store.Load(ctx, "iv-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.ID != "iv-1" || got.Status != StatusInProgress {
		t.Fatalf("got %+v", got)
	}
	// Hot hit must not touch the durable store.
	if durable.CallCount("GetInterview") != 0 {
		t.Errorf("hot hit read the durable store")
	}
}

func TestStoreLoad_FallsBackToDurableAndRehydrates(t *testing.T) {
	hot := newFakeHot()
	durable := &memorymock.Store{}
	store := NewStore(hot, durable)
	ctx := context.Background()

	st := newTestState()
	_ = st.Start()
	st.AttachQuestion(interview.Question{ID: "q1", Text: "intro", Skill: "introduction",
		Context: map[string]string{"phase": "introduction"}})
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Simulate hot tier expiry.
	hot.Del(ctx, stateKey("iv-1"))

	got, err := store.Load(ctx, "iv-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.TotalQuestions != 1 {
		t.Fatalf("got %+v", got)
	}
	if _, ok := hot.data[stateKey("iv-1")]; !ok {
		t.Error("durable fallback did not rehydrate the hot tier")
	}
}

func TestStoreLoad_MissingInterview(t *testing.T) {
	store := NewStore(newFakeHot(), &memorymock.Store{})
	got, err := store.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for missing interview", got)
	}
}

func TestStoreSave_DurableFailureIsFatal(t *testing.T) {
	durable := &memorymock.Store{SaveInterviewErr: errors.New("db down")}
	store := NewStore(newFakeHot(), durable)

	if err := store.Save(context.Background(), newTestState()); err == nil {
		t.Fatal("expected error when durable save fails")
	}
}

func TestStoreSave_HotFailureIsNotFatal(t *testing.T) {
	hot := newFakeHot()
	hot.setErr = errors.New("redis down")
	store := NewStore(hot, &memorymock.Store{})

	if err := store.Save(context.Background(), newTestState()); err != nil {
		t.Fatalf("hot failure should not fail the save: %v", err)
	}
}

func TestCandidateKey_HotTierOnly(t *testing.T) {
	hot := newFakeHot()
	durable := &memorymock.Store{}
	store := NewStore(hot, durable)
	ctx := context.Background()

	st := newTestState()
	if err := store.SetCandidateKey(ctx, st, "sk-secret"); err != nil {
		t.Fatalf("SetCandidateKey: %v", err)
	}

	key, err := store.Key(ctx, "iv-1")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if key != "sk-secret" {
		t.Errorf("key = %q", key)
	}

	// The key must never reach the durable store in any form.
	for _, call := range durable.Calls() {
		if strings.Contains(fmt.Sprintf("%v", call.Args), "sk-secret") {
			t.Fatalf("candidate key leaked to durable store via %s", call.Method)
		}
	}

	if err := store.ClearCandidateKey(ctx, "iv-1"); err != nil {
		t.Fatalf("ClearCandidateKey: %v", err)
	}
	key, err = store.Key(ctx, "iv-1")
	if err != nil {
		t.Fatalf("Key after clear: %v", err)
	}
	if key != "" {
		t.Errorf("key = %q, want empty after clear", key)
	}
}

func TestKey_NoKeyRegistered(t *testing.T) {
	store := NewStore(newFakeHot(), &memorymock.Store{})
	key, err := store.Key(context.Background(), "iv-1")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if key != "" {
		t.Errorf("key = %q, want empty", key)
	}
}

func TestDelete_RemovesBothTiersAndCandidateKey(t *testing.T) {
	hot := newFakeHot()
	durable := &memorymock.Store{}
	store := NewStore(hot, durable)
	ctx := context.Background()

	st := newTestState()
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.SetCandidateKey(ctx, st, "sk-secret"); err != nil {
		t.Fatalf("SetCandidateKey: %v", err)
	}

	if err := store.Delete(ctx, "iv-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(hot.data) != 0 {
		t.Errorf("hot tier not emptied: %v", hot.data)
	}
	if durable.CallCount("DeleteInterview") != 1 {
		t.Errorf("durable delete not called")
	}
}
