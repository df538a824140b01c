package access

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/allbin/loraterm"
	"github.com/rs/zerolog"
)

func deviceNode(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ttyUSB0")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("Failed to create node: %v", err)
	}
	return path
}

// gatedCheck denies access until allow is set.
func gatedCheck(allow *atomic.Bool) func(string) error {
	return func(string) error {
		if allow.Load() {
			return nil
		}
		return errors.New("permission denied")
	}
}

func TestHasPermission(t *testing.T) {
	var allow atomic.Bool
	a := New(time.Second, zerolog.Nop())
	a.check = gatedCheck(&allow)

	d := loraterm.Descriptor{Path: "/dev/ttyUSB0"}
	if a.HasPermission(d) {
		t.Error("HasPermission = true before grant")
	}
	allow.Store(true)
	if !a.HasPermission(d) {
		t.Error("HasPermission = false after grant")
	}
	if !New(time.Second, zerolog.Nop()).HasPermission(loraterm.Descriptor{}) {
		t.Error("descriptor without a node should be accessible")
	}
}

func TestRequestPermissionGranted(t *testing.T) {
	var allow atomic.Bool
	path := deviceNode(t)
	a := New(5*time.Second, zerolog.Nop())
	a.check = gatedCheck(&allow)

	events := make(chan loraterm.PermissionEvent, 1)
	d := loraterm.Descriptor{Path: path}
	if err := a.RequestPermission(d, "test.TAG", func(ev loraterm.PermissionEvent) { events <- ev }); err != nil {
		t.Fatalf("RequestPermission failed: %v", err)
	}

	allow.Store(true)
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}

	select {
	case ev := <-events:
		if !ev.Granted || ev.Tag != "test.TAG" || ev.Device.Path != path {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no permission event after chmod")
	}
	a.Wait()
}

func TestRequestPermissionTimeout(t *testing.T) {
	var allow atomic.Bool
	a := New(20*time.Millisecond, zerolog.Nop())
	a.check = gatedCheck(&allow)

	events := make(chan loraterm.PermissionEvent, 1)
	d := loraterm.Descriptor{Path: deviceNode(t)}
	if err := a.RequestPermission(d, "test.TAG", func(ev loraterm.PermissionEvent) { events <- ev }); err != nil {
		t.Fatalf("RequestPermission failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Granted {
			t.Error("timeout delivered a grant")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no permission event after timeout")
	}
	a.Wait()
}

func TestRequestPermissionMissingDirectory(t *testing.T) {
	a := New(time.Second, zerolog.Nop())
	a.check = func(string) error { return errors.New("no such file") }

	d := loraterm.Descriptor{Path: filepath.Join(t.TempDir(), "missing", "ttyUSB0")}
	err := a.RequestPermission(d, "test.TAG", func(loraterm.PermissionEvent) {
		t.Error("deliver called on a failed request")
	})
	if err == nil {
		t.Error("RequestPermission succeeded without a watchable directory")
	}
}

func TestGateWithAuthorizer(t *testing.T) {
	var allow atomic.Bool
	path := deviceNode(t)
	a := New(5*time.Second, zerolog.Nop())
	a.check = gatedCheck(&allow)
	gate := loraterm.NewPermissionGate(a, loraterm.DefaultActionTag)

	go func() {
		time.Sleep(20 * time.Millisecond)
		allow.Store(true)
		os.Chmod(path, 0666)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := gate.Request(ctx, loraterm.Descriptor{Path: path}); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	a.Wait()
}

func TestCloseAbandonsRequests(t *testing.T) {
	var allow atomic.Bool
	a := New(time.Minute, zerolog.Nop())
	a.check = gatedCheck(&allow)

	var answered atomic.Bool
	d := loraterm.Descriptor{Path: deviceNode(t)}
	if err := a.RequestPermission(d, "test.TAG", func(loraterm.PermissionEvent) { answered.Store(true) }); err != nil {
		t.Fatalf("RequestPermission failed: %v", err)
	}

	closed := make(chan struct{})
	go func() {
		a.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("Close blocked on an outstanding request")
	}
	if answered.Load() {
		t.Error("abandoned request was answered")
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestRequestPermissionRecreatedNode(t *testing.T) {
	var allow atomic.Bool
	path := deviceNode(t)
	a := New(5*time.Second, zerolog.Nop())
	a.check = gatedCheck(&allow)
	defer a.Close()

	events := make(chan loraterm.PermissionEvent, 1)
	d := loraterm.Descriptor{Path: path}
	if err := a.RequestPermission(d, "test.TAG", func(ev loraterm.PermissionEvent) { events <- ev }); err != nil {
		t.Fatalf("RequestPermission failed: %v", err)
	}

	// udev replaces the node when the bridge re-enumerates
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	allow.Store(true)
	if err := os.WriteFile(path, nil, 0666); err != nil {
		t.Fatalf("Failed to recreate node: %v", err)
	}

	select {
	case ev := <-events:
		if !ev.Granted {
			t.Errorf("event = %+v, want a grant", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no permission event after the node was recreated")
	}
}
