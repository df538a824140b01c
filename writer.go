package loraterm

import "time"

// EncodeCommand frames a command line for the device: UTF-8 text followed
// by a single newline.
func EncodeCommand(command string) []byte {
	frame := make([]byte, 0, len(command)+1)
	frame = append(frame, command...)
	return append(frame, '\n')
}

// writer performs the outbound half of a session.
type writer struct {
	link     Link
	endpoint int
	timeout  time.Duration
}

// write sends one framed command in a single bulk transfer.
func (w *writer) write(command string) error {
	frame := EncodeCommand(command)
	n, err := w.link.WriteBulk(frame, w.timeout)
	if err != nil {
		return &TransferError{Op: "write", Endpoint: w.endpoint, N: n, Want: len(frame), Err: err}
	}
	if n != len(frame) {
		return &TransferError{Op: "write", Endpoint: w.endpoint, N: n, Want: len(frame), Err: ErrShortTransfer}
	}
	return nil
}
