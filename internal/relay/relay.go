// Package relay mirrors session traffic onto an MQTT broker and accepts
// commands from it.
package relay

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/allbin/loraterm"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// DefaultTopic is the root topic when none is configured.
const DefaultTopic = "loraterm"

// Sender is the session entry point used for remote commands.
type Sender interface {
	Send(command string) error
}

// Relay publishes events under <Topic>/status, <Topic>/rx and <Topic>/tx
// and forwards payloads received on <Topic>/cmd to a Sender.
type Relay struct {
	// BrokerURL is the URL of the MQTT broker to connect to.
	BrokerURL string
	// Username is the username for MQTT authentication.
	Username string
	// Password is the password for MQTT authentication.
	Password string
	// AppName prefixes the random client ID.
	AppName string
	// Topic is the root of every topic the relay uses.
	Topic string

	Log zerolog.Logger

	client mqtt.Client
	sender Sender
}

var _ loraterm.Observer = (*Relay)(nil)

// Connect connects to the broker and subscribes to the command topic.
func (r *Relay) Connect(sender Sender) error {
	if r.client != nil && r.client.IsConnected() {
		return nil
	}
	if r.Topic == "" {
		r.Topic = DefaultTopic
	}
	if r.AppName == "" {
		r.AppName = "loraterm"
	}

	randomID := make([]byte, 4)
	_, _ = rand.Read(randomID)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(r.BrokerURL)
	opts.SetUsername(r.Username)
	opts.SetPassword(r.Password)
	opts.SetClientID(fmt.Sprintf("%s-%x", r.AppName, randomID))
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		r.Log.Warn().Err(err).Str("broker", r.BrokerURL).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	<-token.Done()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect MQTT: %w", err)
	}

	return r.attach(client, sender)
}

// attach wires an already connected client.
func (r *Relay) attach(client mqtt.Client, sender Sender) error {
	r.client = client
	r.sender = sender

	token := client.Subscribe(r.topic("cmd"), 0, r.handleCommand)
	<-token.Done()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}

	r.Log.Info().Str("broker", r.BrokerURL).Str("topic", r.Topic).Msg("mqtt relay attached")
	return nil
}

// Close unsubscribes and disconnects from the broker.
func (r *Relay) Close() {
	if r.client == nil || !r.client.IsConnected() {
		return
	}
	r.client.Unsubscribe(r.topic("cmd")).WaitTimeout(time.Second)
	r.client.Disconnect(1000)
}

func (r *Relay) topic(leaf string) string {
	return r.Topic + "/" + leaf
}

func (r *Relay) OnStatus(ev loraterm.Event) {
	r.publish("status", ev.Text)
}

func (r *Relay) OnReceived(ev loraterm.Event) {
	r.publish("rx", ev.Text)
}

func (r *Relay) OnTransmitted(ev loraterm.Event) {
	r.publish("tx", ev.Text)
}

// publish never waits for the broker; observers run on the session's
// goroutines.
func (r *Relay) publish(leaf, payload string) {
	if r.client == nil {
		return
	}
	token := r.client.Publish(r.topic(leaf), 0, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			r.Log.Warn().Err(token.Error()).Str("topic", r.topic(leaf)).Msg("mqtt publish failed")
		}
	}()
}

func (r *Relay) handleCommand(_ mqtt.Client, message mqtt.Message) {
	command := strings.TrimRight(string(message.Payload()), "\r\n")
	if command == "" {
		return
	}

	r.Log.Debug().Str("command", command).Msg("remote command")
	if err := r.sender.Send(command); err != nil && !errors.Is(err, loraterm.ErrNotConnected) {
		r.Log.Warn().Err(err).Str("command", command).Msg("remote command failed")
	}
}
