/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package natsutil publishes device snapshots to NATS JetStream as
// CloudEvents.
package natsutil

//go:generate mockgen -destination=mock_publisher.go -package=natsutil github.com/carverauto/netmirror/pkg/natsutil DevicePublisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/netmirror/pkg/logger"
	"github.com/carverauto/netmirror/pkg/models"
)

const (
	// DevicesChangedType is the CloudEvent type of a device snapshot.
	DevicesChangedType = "com.carverauto.netmirror.devices.changed"

	eventSource = "netmirror/mirror"
)

var ErrTargetRequired = errors.New("event target is required")

// DevicePublisher delivers device snapshots to subscribers.
type DevicePublisher interface {
	PublishDevices(ctx context.Context, change models.DevicesChangedData) error
}

// JetStreamPublisher is the subset of jetstream.JetStream used for
// publishing.
type JetStreamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher publishes CloudEvents to a JetStream stream.
type EventPublisher struct {
	js     JetStreamPublisher
	stream string
	prefix string
	log    logger.Logger
}

var _ DevicePublisher = (*EventPublisher)(nil)

// NewEventPublisher creates an EventPublisher that publishes to
// <prefix>.<target> subjects.
func NewEventPublisher(js JetStreamPublisher, streamName, prefix string, log logger.Logger) *EventPublisher {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &EventPublisher{
		js:     js,
		stream: streamName,
		prefix: prefix,
		log:    log,
	}
}

// Subject returns the subject that events for target are published to.
func (p *EventPublisher) Subject(target string) string {
	return p.prefix + "." + subjectToken(target)
}

// PublishDevices publishes change as a devices-changed CloudEvent.
func (p *EventPublisher) PublishDevices(ctx context.Context, change models.DevicesChangedData) error {
	if change.Target == "" {
		return ErrTargetRequired
	}

	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now().UTC()
	}

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            DevicesChangedType,
		DataContentType: "application/json",
		Subject:         p.Subject(change.Target),
		Time:            &change.Timestamp,
		Data:            change,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal devices event: %w", err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish devices event: %w", err)
	}

	p.log.Debug().
		Str("event_id", event.ID).
		Str("subject", event.Subject).
		Uint64("seq", ack.Sequence).
		Int("devices", len(change.Devices)).
		Msg("Published devices event")

	return nil
}

// ConnectWithEventPublisher connects to NATS, makes sure the stream
// covers the publisher's subjects and returns the publisher.
func ConnectWithEventPublisher(
	ctx context.Context, cfg models.NATSConfig, log logger.Logger, extraOpts ...nats.Option,
) (*EventPublisher, *nats.Conn, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	nc, err := ConnectWithSecurity(cfg, log, extraOpts...)
	if err != nil {
		return nil, nil, err
	}

	var js jetstream.JetStream

	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()

		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, cfg.Stream, cfg.SubjectPrefix+".>", log); err != nil {
		nc.Close()

		return nil, nil, err
	}

	return NewEventPublisher(js, cfg.Stream, cfg.SubjectPrefix, log), nc, nil
}

// ConnectWithSecurity connects to cfg.URL, using mutual TLS when
// cfg.TLS is set.
func ConnectWithSecurity(cfg models.NATSConfig, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	var opts []nats.Option

	if cfg.TLS != nil {
		tlsConf, err := TLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	opts = append(opts,
		nats.Name("netmirror"),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")

	return nc, nil
}

// ensureStream creates streamName, or widens its subjects so that subject
// is captured.
func ensureStream(ctx context.Context, js jetstream.JetStream, streamName, subject string, log logger.Logger) error {
	stream, err := js.Stream(ctx, streamName)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
		}

		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: []string{subject},
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}

		log.Info().Str("stream", streamName).Str("subject", subject).Msg("Created JetStream stream")

		return nil
	}

	cfg := stream.CachedInfo().Config

	subjects := ensureSubjectList(cfg.Subjects, subject)
	if len(subjects) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = subjects

	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to update stream %s: %w", streamName, err)
	}

	log.Info().Str("stream", streamName).Strs("subjects", subjects).Msg("Updated JetStream stream subjects")

	return nil
}

// ensureSubjectList appends subject unless a pattern already covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether the NATS subject pattern covers subject.
// A pattern token "*" matches one token and a trailing ">" matches the rest.
func matchesSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return len(st) > i
		}

		if i >= len(st) {
			return false
		}

		if tok != "*" && tok != st[i] {
			return false
		}
	}

	return len(pt) == len(st)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}

// subjectToken makes target usable as a single subject token.
func subjectToken(target string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n':
			return '_'
		default:
			return r
		}
	}, target)
}
