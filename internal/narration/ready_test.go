package narration

import (
	"context"
	"errors"
	"testing"
	"time"
)

type readyEngine struct {
	fakeEngine
	ready  chan struct{}
	voices []string
}

func (r *readyEngine) Ready() <-chan struct{} { return r.ready }
func (r *readyEngine) Voices() []string       { return r.voices }

func TestWaitReady(t *testing.T) {
	closed := make(chan struct{})
	close(closed)

	tests := []struct {
		name    string
		engine  Engine
		wantErr error
	}{
		{"no readiness", &fakeEngine{}, nil},
		{"ready with voices", &readyEngine{ready: closed, voices: []string{"en"}}, nil},
		{"ready without voices", &readyEngine{ready: closed}, ErrEngineUnavailable},
		{"timeout then voices found", &readyEngine{ready: make(chan struct{}), voices: []string{"en"}}, nil},
		{"timeout without voices", &readyEngine{ready: make(chan struct{})}, ErrEngineUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WaitReady(context.Background(), tt.engine, 10*time.Millisecond)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("WaitReady() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWaitReadyContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitReady(ctx, &readyEngine{ready: make(chan struct{})}, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WaitReady() = %v, want context.Canceled", err)
	}
}

func TestIsCancellation(t *testing.T) {
	for _, code := range []string{"", "canceled", "cancelled", "interrupted"} {
		if !IsCancellation(code) {
			t.Errorf("IsCancellation(%q) = false", code)
		}
	}
	for _, code := range []string{"synthesis-failed", "not-allowed", "Interrupted "} {
		if IsCancellation(code) {
			t.Errorf("IsCancellation(%q) = true", code)
		}
	}
}
