// Package queue defines message payloads exchanged over the message broker
// together with the publisher and background consumers for them.
package queue

import "time"

// Queue names.  Both queues are durable.
const (
    PasswordResetQueue    = "mail.password_reset"
    ContentPublishedQueue = "content.published"
)

// PasswordResetMail asks the mail worker to deliver a reset link.  The
// link already embeds the raw token; nothing else about the token travels
// over the broker.
type PasswordResetMail struct {
    To        string    `json:"to"`
    Link      string    `json:"link"`
    ExpiresAt time.Time `json:"expires_at"`
}

// ContentPublishedEvent is emitted whenever an event or publication becomes
// visible on the public site, either by publishing a draft or by creating
// it directly in published state.
type ContentPublishedEvent struct {
    Kind        string    `json:"kind"` // "event" or "publication"
    ID          uint64    `json:"id"`
    Title       string    `json:"title"`
    CreatedBy   uint64    `json:"created_by"`
    PublishedBy uint64    `json:"published_by"`
    PublishedAt time.Time `json:"published_at"`
}
