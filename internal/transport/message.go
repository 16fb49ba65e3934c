// Package transport defines the boundary between the relay engine and the
// chat network. Adapters translate their native update and error types into
// the shapes declared here once, so routing and delivery never probe
// transport-specific fields.
package transport

// MediaKind names the upload method needed to resend a media payload.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaAudio     MediaKind = "audio"
	MediaVoice     MediaKind = "voice"
	MediaAnimation MediaKind = "animation"
	MediaDocument  MediaKind = "document"
)

// Message is an inbound chat message. It is read-only for the duration of
// one dispatch and never persisted.
type Message struct {
	ID     int
	ChatID int64 // as delivered by the transport, before normalization

	// Reply is nil when the message carries no reply/thread linkage.
	Reply *ReplyLink

	Text     string
	Entities []Entity
	Media    *Media

	// Protected is set when the source forbids re-transmission.
	Protected bool
	// Service marks join/leave/pin and other system messages.
	Service bool
}

// ReplyLink is the reply/thread linkage of a message. Zero means unset.
type ReplyLink struct {
	// TopTarget is the top-of-thread message id (the topic root).
	TopTarget int
	// DirectTarget is the id of the message being replied to.
	DirectTarget int
}

// Media references a downloadable attachment.
type Media struct {
	Kind     MediaKind
	FileID   string
	FileName string
	Size     int64
}

// Entity is a formatting span over Message.Text, in UTF-16 code units.
type Entity struct {
	Type          string
	Offset        int
	Length        int
	URL           string
	Language      string
	CustomEmojiID string
}

func (m *Message) HasMedia() bool {
	return m.Media != nil
}

func (m *Message) ReplyTopTarget() int {
	if m.Reply == nil {
		return 0
	}
	return m.Reply.TopTarget
}

func (m *Message) ReplyDirectTarget() int {
	if m.Reply == nil {
		return 0
	}
	return m.Reply.DirectTarget
}

// Preview returns a single-line excerpt for logs.
func (m *Message) Preview(limit int) string {
	if m.Text == "" {
		if m.Media != nil {
			return "[" + string(m.Media.Kind) + "]"
		}
		return ""
	}

	runes := []rune(m.Text)
	truncated := len(runes) > limit
	if truncated {
		runes = runes[:limit]
	}
	for i, r := range runes {
		if r == '\n' || r == '\r' {
			runes[i] = ' '
		}
	}
	if truncated {
		return string(runes) + "..."
	}
	return string(runes)
}

// Address is a delivery target: a chat plus an optional topic (0 = none).
type Address struct {
	ChatID  int64
	TopicID int
}
