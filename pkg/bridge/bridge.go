// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge exposes a FEAD bus over MQTT.
//
// Topics, below a configurable prefix:
//
//	<prefix>/<address>/<param>/get    payload: optional query values
//	<prefix>/<address>/<param>/set    payload: value[:extra]
//	<prefix>/<address>/<param>        reply value (published)
//	<prefix>/<address>/<param>/error  request failure (published)
//	<prefix>/discover                 any payload starts discovery
//	<prefix>/devices                  discovered devices (published, retained)
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/fead/pkg/fead"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Requester is the part of a Bus the bridge drives.
type Requester interface {
	Do(ctx context.Context, req *fead.Request) (fead.Response, error)
	Discover(ctx context.Context) ([]*fead.Device, error)
}

var _ Requester = (*fead.Bus)(nil)

// Publisher sends one MQTT message.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) error
}

// DeviceInfo is one entry of the devices topic.
type DeviceInfo struct {
	Address int    `json:"address"`
	UID     *int64 `json:"uid,omitempty"`
}

// Bridge serves bus requests received over MQTT.
type Bridge struct {
	bus    Requester
	pub    Publisher
	prefix string
	params ParamParser
	log    zerolog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithParams resolves parameter names in topics, e.g. with a vocabulary.
func WithParams(p ParamParser) Option {
	return func(b *Bridge) {
		b.params = p
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) {
		b.log = l
	}
}

// New creates a Bridge publishing through pub below prefix.
func New(bus Requester, pub Publisher, prefix string, opts ...Option) *Bridge {
	b := &Bridge{
		bus:    bus,
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "/"),
		params: numericParams{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With().Str("component", "bridge").Logger()
	return b
}

// Filters returns the topic filters the bridge subscribes to.
func (b *Bridge) Filters() []string {
	return []string{
		b.prefix + "/+/+/" + ActionGet,
		b.prefix + "/+/+/" + ActionSet,
		b.prefix + "/" + TopicDiscover,
	}
}

// Handle serves one received message. Messages outside the bridge's topics
// are ignored.
func (b *Bridge) Handle(ctx context.Context, topic string, payload []byte) {
	if !strings.HasPrefix(topic, b.prefix+"/") {
		return
	}
	rel := topic[len(b.prefix)+1:]

	if rel == TopicDiscover {
		b.discover(ctx)
		return
	}

	req, err := ParseCommand(rel, payload, b.params)
	if err != nil {
		b.log.Warn().Err(err).Msg("bad command")
		return
	}

	resp, err := b.bus.Do(ctx, req)
	if err != nil {
		b.log.Debug().Err(err).Str("request", req.String()).Msg("request failed")
		b.publish(ErrorTopic(b.prefix, req.Address, req.Param), []byte(err.Error()), false)
		return
	}
	b.publish(ValueTopic(b.prefix, resp.Address, resp.Param), []byte(FormatValue(resp)), false)
}

func (b *Bridge) discover(ctx context.Context) {
	devices, err := b.bus.Discover(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("discovery failed")
		return
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, DeviceInfo{Address: d.Address, UID: d.UID})
	}
	payload, err := json.Marshal(infos)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to encode device list")
		return
	}
	b.publish(b.prefix+"/"+TopicDevices, payload, true)
}

func (b *Bridge) publish(topic string, payload []byte, retain bool) {
	if err := b.pub.Publish(topic, payload, retain); err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
	}
}

// Run connects client, subscribes and serves messages until ctx is done.
// Messages are served one at a time in arrival order.
func Run(ctx context.Context, client paho.Client, bus Requester, prefix string, opts ...Option) error {
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer client.Disconnect(250)

	b := New(bus, pahoPublisher{client: client, timeout: 5 * time.Second}, prefix, opts...)

	type message struct {
		topic   string
		payload []byte
	}
	inbox := make(chan message, 64)
	handler := func(_ paho.Client, msg paho.Message) {
		select {
		case inbox <- message{msg.Topic(), msg.Payload()}:
		default:
			b.log.Warn().Str("topic", msg.Topic()).Msg("inbox full, message dropped")
		}
	}

	filters := make(map[string]byte)
	for _, f := range b.Filters() {
		filters[f] = 0
	}
	token = client.SubscribeMultiple(filters, handler)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	b.log.Info().Strs("filters", b.Filters()).Msg("bridge running")

	for {
		select {
		case m := <-inbox:
			b.Handle(ctx, m.topic, m.payload)
		case <-ctx.Done():
			return nil
		}
	}
}
