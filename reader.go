package loraterm

import (
	"context"
	"time"
)

// runReader is the session's single background task. done is closed once
// the loop can no longer touch link.
func (s *Session) runReader(ctx context.Context, link Link, source string, done chan struct{}) {
	s.log.Debug().Str("device", source).Msg("reader started")
	err := s.readLoop(ctx, link, source)
	close(done)

	if err != nil {
		s.linkLost(link, &TransferError{Op: "read", Endpoint: s.cfg.InEndpoint, Err: err})
		return
	}
	s.log.Debug().Str("device", source).Msg("reader stopped")
}

// readLoop polls link until ctx is cancelled or a transfer fails hard.
// Cancellation is checked between transfers, never during one.
func (s *Session) readLoop(ctx context.Context, link Link, source string) error {
	buf := make([]byte, s.cfg.ReadBufferSize)
	dec := newTextDecoder()
	defer func() {
		if rest := dec.Flush(); rest != "" {
			s.received(rest, source)
		}
	}()

	pause := time.NewTimer(s.cfg.PollInterval)
	defer pause.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := link.ReadBulk(buf, s.cfg.ReadTimeout)
		if n > 0 {
			if text := dec.Decode(buf[:n]); text != "" {
				s.received(text, source)
			}
		}
		if err != nil && !IsTimeout(err) {
			return err
		}

		pause.Reset(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			return nil
		case <-pause.C:
		}
	}
}

func (s *Session) received(text, source string) {
	s.observer.OnReceived(Event{
		Kind:   EventReceived,
		Text:   text,
		Source: source,
		Time:   time.Now(),
	})
}
