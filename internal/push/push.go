// Package push delivers push notifications to user devices. The pipeline
// depends on the Pusher interface; production uses the FCM adapter and
// tests use the recording fake.
package push

import "context"

// Payload is one notification addressed to a single device token.
type Payload struct {
	Token      string
	Title      string
	Body       string
	ChatroomID string
}

// Pusher sends a notification to one device.
type Pusher interface {
	Send(ctx context.Context, payload Payload) error
}
