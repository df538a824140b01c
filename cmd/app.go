/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/allbin/loraterm"
	"github.com/allbin/loraterm/internal/access"
	"github.com/allbin/loraterm/internal/logging"
	"github.com/allbin/loraterm/internal/notify"
	"github.com/allbin/loraterm/internal/relay"
	"github.com/allbin/loraterm/internal/tty"
	"github.com/allbin/loraterm/internal/tui/components"
	"github.com/allbin/loraterm/internal/usb"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// app bundles a session with the backend and collaborators it was built from
type app struct {
	log     zerolog.Logger
	backend loraterm.Backend
	session *loraterm.Session
	link    components.LinkInfo
	closers []func() error
}

// appOptions controls how newApp wires collaborators
type appOptions struct {
	// quiet suppresses console logging when no log file is configured
	quiet bool
	// collaborators enables the MQTT relay and desktop notifications
	collaborators bool
	// observers receive session events in addition to the collaborators
	observers []loraterm.Observer
}

func newLogger(quiet bool) (zerolog.Logger, func() error, error) {
	return logging.New(logging.Options{
		File:  viper.GetString("log-file"),
		Level: viper.GetString("log-level"),
		Quiet: quiet,
	})
}

// sessionConfig builds the core configuration from viper keys
func sessionConfig() (loraterm.Config, error) {
	vendorID, err := parseID("vendor-id")
	if err != nil {
		return loraterm.Config{}, err
	}
	productID, err := parseID("product-id")
	if err != nil {
		return loraterm.Config{}, err
	}

	cfg, err := loraterm.NewConfig(
		loraterm.WithVendorID(vendorID),
		loraterm.WithProductID(productID),
		loraterm.WithEndpoints(viper.GetInt("in-endpoint"), viper.GetInt("out-endpoint")),
		loraterm.WithReadTimeout(viper.GetDuration("read-timeout")),
		loraterm.WithWriteTimeout(viper.GetDuration("write-timeout")),
		loraterm.WithPollInterval(viper.GetDuration("poll-interval")),
		loraterm.WithReadBufferSize(viper.GetInt("read-buffer")),
		loraterm.WithActionTag(viper.GetString("action-tag")),
	)
	if err != nil {
		return loraterm.Config{}, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}

// newBackend creates the backend selected by the backend key
func newBackend(cfg loraterm.Config, log zerolog.Logger) (loraterm.Backend, func() error, error) {
	switch name := strings.ToLower(viper.GetString("backend")); name {
	case "usb", "":
		b := usb.New(usb.Options{
			ConfigNumber: viper.GetInt("config-number"),
			Interface:    viper.GetInt("interface"),
			AltSetting:   viper.GetInt("alt-setting"),
			InEndpoint:   cfg.InEndpoint,
			OutEndpoint:  cfg.OutEndpoint,
		}, log.With().Str("backend", "usb").Logger())
		return b, b.Close, nil
	case "tty":
		opts := tty.DefaultOptions()
		opts.BaudRate = viper.GetInt("baud")
		b := tty.New(opts, log.With().Str("backend", "tty").Logger())
		return b, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown backend %q (valid: usb, tty)", loraterm.ErrInvalidConfig, name)
	}
}

func newApp(opts appOptions) (*app, error) {
	log, closeLog, err := newLogger(opts.quiet)
	if err != nil {
		return nil, err
	}
	a := &app{log: log, closers: []func() error{closeLog}}

	cfg, err := sessionConfig()
	if err != nil {
		a.Close()
		return nil, err
	}

	backend, closeBackend, err := newBackend(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.backend = backend
	a.closers = append(a.closers, closeBackend)
	a.link = components.LinkInfo{
		Backend:     strings.ToLower(viper.GetString("backend")),
		VendorID:    cfg.VendorID,
		ProductID:   cfg.ProductID,
		InEndpoint:  cfg.InEndpoint,
		OutEndpoint: cfg.OutEndpoint,
		BaudRate:    viper.GetInt("baud"),
	}

	observers := loraterm.Observers(opts.observers)

	var mqttRelay *relay.Relay
	if opts.collaborators {
		if broker := viper.GetString("mqtt-broker"); broker != "" {
			mqttRelay = &relay.Relay{
				BrokerURL: broker,
				Username:  viper.GetString("mqtt-username"),
				Password:  viper.GetString("mqtt-password"),
				Topic:     viper.GetString("mqtt-topic"),
				Log:       log.With().Str("component", "relay").Logger(),
			}
			observers = append(observers, mqttRelay)
		}

		if viper.GetBool("notify") {
			notifier, err := notify.New(log.With().Str("component", "notify").Logger())
			if err != nil {
				log.Warn().Err(err).Msg("desktop notifications unavailable")
			} else {
				observers = append(observers, notifier)
				a.closers = append(a.closers, notifier.Close)
			}
		}
	}

	authorizer := access.New(viper.GetDuration("permission-timeout"), log.With().Str("component", "access").Logger())
	// closed after the session, which abandons any pending request first
	a.closers = append(a.closers, authorizer.Close)

	a.session = loraterm.NewSession(backend, cfg,
		loraterm.WithObserver(observers),
		loraterm.WithAuthorizer(authorizer),
		loraterm.WithLogger(log.With().Str("component", "session").Logger()),
	)

	if mqttRelay != nil {
		if err := mqttRelay.Connect(a.session); err != nil {
			a.Close()
			return nil, fmt.Errorf("mqtt relay: %w", err)
		}
		a.closers = append(a.closers, func() error {
			mqttRelay.Close()
			return nil
		})
	}

	return a, nil
}

// Close closes the session and then every collaborator in reverse order
func (a *app) Close() error {
	var errs []error
	if a.session != nil {
		errs = append(errs, a.session.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
