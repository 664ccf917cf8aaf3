// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud provides the configuration, credentials and client plumbing
// shared by every provider. This file defines the Pub/Sub listener that feeds
// pipeline jobs into the studio. Receiving is delegated to the subscription,
// processing to a cor.Command.
//
// Logic Flow:
//  1. A PubSubListener is created for a subscription and a command is attached.
//  2. Listen starts a goroutine that receives messages until ctx is done.
//  3. Each message body is placed under cor.CtxIn and the command is executed.
//  4. The message is acknowledged when the command succeeds, or when it failed
//     with ErrInvalidMessage (redelivery cannot fix a malformed job). Any other
//     failure leaves the message to be redelivered by the subscription policy.
package cloud

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/jaycherian/movielab/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrInvalidMessage marks job payloads that can never be processed.
var ErrInvalidMessage = errors.New("invalid message")

// PubSubListener connects a subscription to a processing command.
type PubSubListener struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
	command      cor.Command
	timeout      time.Duration
}

// NewPubSubListener creates a listener for subscriptionID. The command may be
// nil and attached later with SetCommand, once the workflows are built.
func NewPubSubListener(
	pubsubClient *pubsub.Client,
	subscriptionID string,
	command cor.Command,
) (cmd *PubSubListener, err error) {
	if pubsubClient == nil {
		return nil, errors.New("pubsub client is required")
	}
	sub := pubsubClient.Subscription(subscriptionID)
	cmd = &PubSubListener{
		client:       pubsubClient,
		subscription: sub,
		command:      command,
	}
	return cmd, nil
}

// SetCommand attaches command unless one is already set.
func (m *PubSubListener) SetCommand(command cor.Command) {
	if m.command == nil {
		m.command = command
	}
}

// SetTimeout bounds the processing time of a single message. Zero means no bound.
func (m *PubSubListener) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// Listen starts receiving in the background. Cancelling ctx stops the listener.
func (m *PubSubListener) Listen(ctx context.Context) {
	slog.Info("listening for pipeline jobs", "subscription", m.subscription.ID())

	go func() {
		tracer := otel.Tracer("job-listener")

		err := m.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
			if m.timeout > 0 {
				var cancel context.CancelFunc
				msgCtx, cancel = context.WithTimeout(msgCtx, m.timeout)
				defer cancel()
			}
			spanCtx, span := tracer.Start(msgCtx, "receive-job")
			defer span.End()
			span.SetAttributes(attribute.String("message.id", msg.ID))

			if ack := m.handle(spanCtx, msg.Data); ack {
				span.SetStatus(codes.Ok, "success")
				msg.Ack()
				return
			}
			span.SetStatus(codes.Error, "failed")
		})
		if err != nil {
			slog.Error("error receiving pipeline jobs", "subscription", m.subscription.ID(), "error", err)
		}
	}()
}

// handle runs the command for one payload and reports whether it should be acknowledged.
func (m *PubSubListener) handle(ctx context.Context, data []byte) bool {
	if m.command == nil {
		slog.Error("no command attached to listener", "subscription", m.subscription.ID())
		return false
	}
	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, string(data))

	m.command.Execute(chainCtx)

	if !chainCtx.HasErrors() {
		return true
	}
	permanent := false
	for name, e := range chainCtx.GetErrors() {
		slog.Error("error executing job", "command", name, "error", e)
		if errors.Is(e, ErrInvalidMessage) {
			permanent = true
		}
	}
	return permanent
}
