// Package loraterm provides a host-side bridge to a LoRa radio module
// attached through a USB-serial converter.
//
// The library finds the radio by its vendor/product signature, obtains
// access to the device node, opens a bulk link and runs a single background
// reader that turns inbound bytes into text events. Commands go out as one
// newline-terminated line per bulk transfer.
//
// # Basic Usage
//
// Open a session against the default CP210x signature:
//
//	cfg := loraterm.DefaultConfig()
//	session := loraterm.NewSession(backend, cfg,
//	    loraterm.WithObserver(loraterm.ObserverFunc(func(ev loraterm.Event) {
//	        fmt.Printf("%s: %s\n", ev.Kind, ev.Text)
//	    })),
//	)
//	defer session.Close()
//
//	if err := session.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	err = session.Send("get debug_info")
//
// # Configuration Options
//
// Use functional options for custom configuration:
//
//	cfg, err := loraterm.NewConfig(
//	    loraterm.WithVendorID(0x10C4),
//	    loraterm.WithProductID(0xEA60),
//	    loraterm.WithEndpoints(1, 1),
//	    loraterm.WithReadTimeout(100*time.Millisecond),
//	)
//
// # Backends
//
// A Backend enumerates devices and opens links. The internal/usb package
// talks to the bulk endpoints directly through libusb; internal/tty uses
// the kernel's cp210x driver and a /dev/ttyUSB node.
//
// # Permissions
//
// Opening a device node may need a grant from outside the process. An
// Authorizer answers asynchronously and the session waits in
// StateAwaitingPermission until the answer carrying the configured action
// tag arrives. Answers with any other tag are ignored.
//
// # Error Handling
//
// Use errors.Is() for error type checking:
//
//	if errors.Is(err, loraterm.ErrNotConnected) {
//	    // connect first
//	}
//
// A hard I/O error on either direction tears the session down and emits a
// single "Link lost" status event wrapping ErrLinkLost.
//
// # Default Configuration
//
//   - VendorID: 0x10C4
//   - ProductID: 0xEA60
//   - Endpoints: 1 in, 1 out
//   - ReadTimeout: 100ms
//   - WriteTimeout: 1s
//   - PollInterval: 100ms
//   - ReadBufferSize: 1024
package loraterm
