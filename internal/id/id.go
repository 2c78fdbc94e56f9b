// Package id generates the identifiers used across the sync core.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// inviteCodeAlphabet avoids characters that are easy to misread
	// when an invite code is shared out loud or over a screenshot.
	inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// inviteCodeLength keeps codes short enough to type; uniqueness is
	// assumed rather than enforced (32^8 ≈ 1.1e12 combinations).
	inviteCodeLength = 8
)

// NewUUID returns a random UUID string. Watchlists, chatrooms and messages
// use client-generated UUIDs that are mirrored verbatim to the remote store.
func NewUUID() string {
	return uuid.NewString()
}

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "sub-V1StGXR8_Z5jdHi6B-myT").
//
// Used for internal handles (bus subscriptions, listener keys) where a
// compact URL-safe ID is preferred over a UUID.
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
// Use this only when failure should crash the program (e.g., during initialization).
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// NewInviteCode generates a short random chatroom invite code.
func NewInviteCode() string {
	return gonanoid.MustGenerate(inviteCodeAlphabet, inviteCodeLength)
}
