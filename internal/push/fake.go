package push

import (
	"context"
	"sync"
)

// Fake records sent payloads and can be told to fail specific tokens.
type Fake struct {
	mu       sync.Mutex
	sent     []Payload
	failures map[string]error
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{failures: make(map[string]error)}
}

// FailToken makes every Send to token return err.
func (f *Fake) FailToken(token string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[token] = err
}

// Send records the payload, or fails if the token was marked.
func (f *Fake) Send(_ context.Context, payload Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[payload.Token]; err != nil {
		return err
	}
	f.sent = append(f.sent, payload)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (f *Fake) Sent() []Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Payload, len(f.sent))
	copy(out, f.sent)
	return out
}
