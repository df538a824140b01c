// Package access decides whether the process may open a device node and
// waits for an outside grant (udev rule, chmod, group change) when it may not.
package access

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/allbin/loraterm"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// DefaultTimeout bounds how long a request waits for a grant.
const DefaultTimeout = 30 * time.Second

// Authorizer implements loraterm.Authorizer on top of file permissions.
type Authorizer struct {
	timeout time.Duration
	log     zerolog.Logger
	check   func(path string) error

	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

var _ loraterm.Authorizer = (*Authorizer)(nil)

func New(timeout time.Duration, log zerolog.Logger) *Authorizer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Authorizer{
		timeout: timeout,
		log:     log,
		check:   checkReadWrite,
		done:    make(chan struct{}),
	}
}

func checkReadWrite(path string) error {
	return unix.Access(path, unix.R_OK|unix.W_OK)
}

// HasPermission reports whether d's node is readable and writable now.
// Descriptors without a node are treated as accessible.
func (a *Authorizer) HasPermission(d loraterm.Descriptor) bool {
	if d.Path == "" {
		return true
	}
	return a.check(d.Path) == nil
}

// RequestPermission watches d's node and its directory and delivers a
// grant as soon as the node becomes accessible, or a denial on timeout.
func (a *Authorizer) RequestPermission(d loraterm.Descriptor, tag string, deliver func(loraterm.PermissionEvent)) error {
	if d.Path == "" {
		deliver(loraterm.PermissionEvent{Tag: tag, Device: d, Granted: true})
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(d.Path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(d.Path), err)
	}
	if err := watcher.Add(d.Path); err != nil {
		// the node may be recreated; the directory watch still sees it
		a.log.Debug().Err(err).Str("path", d.Path).Msg("cannot watch device node")
	}

	a.log.Warn().
		Str("path", d.Path).
		Dur("timeout", a.timeout).
		Msg("no read/write access to device; waiting for a udev rule or chmod")

	a.wg.Add(1)
	go a.wait(watcher, d, tag, deliver)
	return nil
}

func (a *Authorizer) wait(watcher *fsnotify.Watcher, d loraterm.Descriptor, tag string, deliver func(loraterm.PermissionEvent)) {
	defer a.wg.Done()
	defer watcher.Close()

	answer := func(granted bool) {
		a.log.Info().Str("path", d.Path).Bool("granted", granted).Msg("permission resolved")
		deliver(loraterm.PermissionEvent{Tag: tag, Device: d, Granted: granted})
	}

	// the grant may have landed before the watch was set up
	if a.check(d.Path) == nil {
		answer(true)
		return
	}

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				answer(false)
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(d.Path) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if err := watcher.Add(d.Path); err != nil {
					a.log.Debug().Err(err).Str("path", d.Path).Msg("cannot watch recreated device node")
				}
			}
			if a.check(d.Path) == nil {
				answer(true)
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				answer(false)
				return
			}
			a.log.Warn().Err(err).Str("path", d.Path).Msg("device watch error")
		case <-timer.C:
			answer(false)
			return
		case <-a.done:
			// the requester is gone, nobody is left to answer
			return
		}
	}
}

// Wait blocks until every outstanding request has resolved.
func (a *Authorizer) Wait() {
	a.wg.Wait()
}

// Close abandons outstanding requests without answering them and waits for
// their watches to be released.
func (a *Authorizer) Close() error {
	a.closeOnce.Do(func() { close(a.done) })
	a.Wait()
	return nil
}
