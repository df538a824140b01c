package loraterm

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"get debug_info", "get debug_info\n"},
		{"command set wifi_en 1", "command set wifi_en 1\n"},
		{"", "\n"},
		{"größe", "größe\n"},
	}

	for _, tt := range tests {
		if got := string(EncodeCommand(tt.command)); got != tt.want {
			t.Errorf("EncodeCommand(%q) = %q, want %q", tt.command, got, tt.want)
		}
	}
}

func TestWriterErrors(t *testing.T) {
	timeoutErr := errors.New("wrapped")
	tests := []struct {
		name        string
		setup       func(*fakeLink)
		wantErr     error
		wantTimeout bool
	}{
		{"ok", func(*fakeLink) {}, nil, false},
		{"short", func(l *fakeLink) { l.writeN = 2 }, ErrShortTransfer, false},
		{"hard", func(l *fakeLink) { l.writeErr = errors.New("LIBUSB_ERROR_IO") }, ErrTransfer, false},
		{"timeout", func(l *fakeLink) { l.writeErr = errors.Join(timeoutErr, ErrTimeout) }, ErrTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := newFakeLink()
			tt.setup(link)
			w := writer{link: link, endpoint: 1, timeout: 10 * time.Millisecond}

			err := w.write("flash")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("write failed: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("write error = %v, want %v", err, tt.wantErr)
			}
			var te *TransferError
			if !errors.As(err, &te) {
				t.Fatalf("write error %T is not a *TransferError", err)
			}
			if te.Op != "write" || te.Endpoint != 1 {
				t.Errorf("TransferError = %+v", te)
			}
			if te.Timeout() != tt.wantTimeout {
				t.Errorf("Timeout() = %v, want %v", te.Timeout(), tt.wantTimeout)
			}
		})
	}
}
