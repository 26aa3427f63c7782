// Package channels defines the interfaces and types for the bot's
// communication channels. Each channel (Telegram, Discord, console)
// implements the Channel interface to receive and send messages in a
// unified way.
package channels

import (
	"context"
	"fmt"
	"time"
)

// MessageType identifies the kind of message content.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageVoice MessageType = "voice"
	MessageImage MessageType = "image"
)

// Channel defines the interface that every communication channel must implement.
type Channel interface {
	// Name returns the channel identifier (e.g. "telegram", "discord").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send delivers a text message and returns the platform identifier
	// of the sent message, so it can later be edited or deleted.
	Send(ctx context.Context, to string, msg *OutgoingMessage) (string, error)

	// Receive returns a Go channel that emits incoming messages.
	Receive() <-chan *IncomingMessage

	// IsConnected returns true if the channel is connected.
	IsConnected() bool

	// MaxTextLen returns the platform's per-message character limit.
	MaxTextLen() int

	// Health returns the channel health status.
	Health() HealthStatus
}

// EditableChannel extends Channel with in-place message edits.
type EditableChannel interface {
	Channel

	// Edit replaces the text of a previously sent message.
	Edit(ctx context.Context, to, messageID, text string) error

	// Delete removes a previously sent message.
	Delete(ctx context.Context, to, messageID string) error
}

// MediaChannel extends Channel with media capabilities.
type MediaChannel interface {
	Channel

	// SendMedia sends a media message and returns the sent message ID.
	SendMedia(ctx context.Context, to string, media *MediaMessage) (string, error)

	// DownloadMedia downloads the media attached to an incoming message.
	// Returns the raw bytes and MIME type.
	DownloadMedia(ctx context.Context, msg *IncomingMessage) ([]byte, string, error)
}

// PresenceChannel extends Channel with typing indicators.
type PresenceChannel interface {
	Channel

	// SendTyping shows a typing or uploading indicator to the recipient.
	SendTyping(ctx context.Context, to string, action MessageType) error
}

// IncomingMessage represents a message received from any channel.
type IncomingMessage struct {
	// ID is the unique message identifier in the source channel.
	ID string

	// Channel identifies the source channel (e.g. "telegram").
	Channel string

	// UserID is the stable numeric identity the session is keyed on.
	UserID int64

	// FromName is the sender display name (if available).
	FromName string

	// ChatID is where replies go. For DMs it matches the user.
	ChatID string

	// Type is the message content type.
	Type MessageType

	// Content is the text content of the message.
	Content string

	// Timestamp is when the message was sent.
	Timestamp time.Time

	// Media contains media attachment details (if any).
	Media *MediaInfo
}

// OutgoingMessage represents a text message to be sent through a channel.
type OutgoingMessage struct {
	// Content is the text content of the message.
	Content string

	// ReplyTo contains the ID of the message to reply to.
	ReplyTo string
}

// MediaMessage represents a media file to be sent.
type MediaMessage struct {
	// Type is the media type (voice, image).
	Type MessageType

	// Data is the raw media bytes.
	Data []byte

	// MimeType is the MIME type (e.g. "image/png", "audio/ogg").
	MimeType string

	// Filename is the suggested filename.
	Filename string

	// Caption is the text caption accompanying the media.
	Caption string
}

// MediaInfo describes media attached to an incoming message.
type MediaInfo struct {
	// Type is the media type.
	Type MessageType

	// FileID is the platform handle used to download the media.
	FileID string

	// MimeType is the MIME type of the media.
	MimeType string

	// FileSize is the size in bytes.
	FileSize int64

	// Duration is the duration in seconds (voice).
	Duration int

	// Caption is the media caption text.
	Caption string
}

// HealthStatus represents the health state of a channel.
type HealthStatus struct {
	Connected     bool
	LastMessageAt time.Time
	ErrorCount    int
}

// Errors.
var (
	ErrChannelDisconnected = fmt.Errorf("channel is not connected")
	ErrMediaNotSupported   = fmt.Errorf("media not supported by this channel")
	ErrEditNotSupported    = fmt.Errorf("edit not supported by this channel")
)
