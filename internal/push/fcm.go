package push

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// FCM sends notifications through Firebase Cloud Messaging.
type FCM struct {
	client *messaging.Client
}

// NewFCM creates an FCM pusher around an existing messaging client.
func NewFCM(client *messaging.Client) *FCM {
	return &FCM{client: client}
}

// Send delivers one notification to the payload's device token.
func (f *FCM) Send(ctx context.Context, payload Payload) error {
	_, err := f.client.Send(ctx, &messaging.Message{
		Token: payload.Token,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: map[string]string{
			"chatroomID": payload.ChatroomID,
		},
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	return nil
}
