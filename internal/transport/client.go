package transport

import "context"

// Handler processes one inbound message. Listen calls it sequentially.
type Handler func(ctx context.Context, msg *Message) error

// Session is the long-lived connection to the chat network.
type Session interface {
	// Connect establishes and authenticates the connection.
	Connect(ctx context.Context) error
	// Listen delivers new messages from chats to h until ctx is cancelled
	// (returns nil) or the connection fails (returns a classified error).
	Listen(ctx context.Context, chats []int64, h Handler) error
	Close() error
}

// Sender performs the outbound calls used by the delivery pipeline.
type Sender interface {
	// Send copies msg to the address without attribution.
	Send(ctx context.Context, msg *Message, to Address) error
	// Download writes msg's media to path.
	Download(ctx context.Context, msg *Message, path string) error
	// SendLocal resends msg using the media file at path.
	SendLocal(ctx context.Context, msg *Message, to Address, path string) error
}

// Directory resolves display names for chats.
type Directory interface {
	ChatName(ctx context.Context, chatID int64) (string, error)
}

// Client is everything the relay needs from a transport.
type Client interface {
	Session
	Sender
	Directory
}
