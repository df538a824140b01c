package loraterm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPermissionGateAlreadyGranted(t *testing.T) {
	auth := newManualAuthorizer()
	auth.granted = true
	gate := NewPermissionGate(auth, DefaultActionTag)

	if err := gate.Request(context.Background(), radio); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if len(auth.requests) != 0 {
		t.Errorf("issued %d requests, want 0", len(auth.requests))
	}
}

func TestPermissionGateEvents(t *testing.T) {
	other := radio
	other.Address = 7

	tests := []struct {
		name    string
		events  []PermissionEvent
		wantErr error
	}{
		{
			name:   "granted",
			events: []PermissionEvent{{Tag: DefaultActionTag, Device: radio, Granted: true}},
		},
		{
			name:    "denied",
			events:  []PermissionEvent{{Tag: DefaultActionTag, Device: radio, Granted: false}},
			wantErr: ErrPermissionDenied,
		},
		{
			name: "foreign tag then grant",
			events: []PermissionEvent{
				{Tag: "com.example.OTHER", Device: radio, Granted: false},
				{Tag: DefaultActionTag, Device: radio, Granted: true},
			},
		},
		{
			name: "other device then deny",
			events: []PermissionEvent{
				{Tag: DefaultActionTag, Device: other, Granted: true},
				{Tag: DefaultActionTag, Device: radio, Granted: false},
			},
			wantErr: ErrPermissionDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := newManualAuthorizer()
			gate := NewPermissionGate(auth, DefaultActionTag)

			result := make(chan error, 1)
			go func() { result <- gate.Request(context.Background(), radio) }()
			<-auth.requested

			for _, ev := range tt.events {
				auth.answer(ev)
			}

			select {
			case err := <-result:
				if tt.wantErr == nil && err != nil {
					t.Errorf("Request failed: %v", err)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("Request error = %v, want %v", err, tt.wantErr)
				}
			case <-time.After(time.Second):
				t.Fatal("Request did not resolve")
			}
		})
	}
}

func TestPermissionGateCancelled(t *testing.T) {
	auth := newManualAuthorizer()
	gate := NewPermissionGate(auth, DefaultActionTag)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- gate.Request(ctx, radio) }()
	<-auth.requested
	cancel()

	if err := <-result; !errors.Is(err, context.Canceled) {
		t.Fatalf("Request error = %v, want context.Canceled", err)
	}

	// a late answer is dropped and does not leak into the next request
	auth.answer(PermissionEvent{Tag: DefaultActionTag, Device: radio, Granted: true})

	result = make(chan error, 1)
	go func() { result <- gate.Request(context.Background(), radio) }()
	<-auth.requested
	auth.answer(PermissionEvent{Tag: DefaultActionTag, Device: radio, Granted: false})

	if err := <-result; !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("second Request error = %v, want ErrPermissionDenied", err)
	}
}

func TestPermissionGateRequestError(t *testing.T) {
	auth := newManualAuthorizer()
	auth.err = errors.New("no watcher")
	gate := NewPermissionGate(auth, DefaultActionTag)

	err := gate.Request(context.Background(), radio)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Request error = %v, want ErrPermissionDenied", err)
	}
}

func TestGrantAll(t *testing.T) {
	gate := NewPermissionGate(nil, DefaultActionTag)
	if err := gate.Request(context.Background(), radio); err != nil {
		t.Errorf("Request failed: %v", err)
	}
}
