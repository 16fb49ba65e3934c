package telegram

import (
	"github.com/mymmrac/telego"

	"relay/internal/transport"
)

// toMessage converts a Bot API message. Captions of media messages are
// carried as Text so the engine sees a single body.
func toMessage(m *telego.Message) *transport.Message {
	msg := &transport.Message{
		ID:        m.MessageID,
		ChatID:    m.Chat.ID,
		Text:      m.Text,
		Entities:  toEntities(m.Entities),
		Media:     toMedia(m),
		Protected: m.HasProtectedContent,
		Service:   isService(m),
	}

	if msg.Media != nil && m.Caption != "" {
		msg.Text = m.Caption
		msg.Entities = toEntities(m.CaptionEntities)
	}

	msg.Reply = toReplyLink(m)
	return msg
}

// generalTopicID is the fixed id of a forum's General topic. The Bot API
// sends General messages without a thread id.
const generalTopicID = 1

// toReplyLink maps forum threading onto the engine's reply link. A topic
// message's thread id is the topic root, and a forum message outside any
// topic belongs to General. A reply outside a forum carries only the
// replied-to id.
func toReplyLink(m *telego.Message) *transport.ReplyLink {
	var link transport.ReplyLink
	switch {
	case m.IsTopicMessage && m.MessageThreadID != 0:
		link.TopTarget = m.MessageThreadID
	case m.Chat.IsForum:
		link.TopTarget = generalTopicID
	}
	if m.ReplyToMessage != nil {
		link.DirectTarget = m.ReplyToMessage.MessageID
	}
	if link.TopTarget == 0 && link.DirectTarget == 0 {
		return nil
	}
	return &link
}

func toMedia(m *telego.Message) *transport.Media {
	switch {
	case len(m.Photo) > 0:
		// Sizes are ascending; the last one is the original.
		p := m.Photo[len(m.Photo)-1]
		return &transport.Media{Kind: transport.MediaPhoto, FileID: p.FileID, Size: int64(p.FileSize)}
	case m.Animation != nil:
		return &transport.Media{Kind: transport.MediaAnimation, FileID: m.Animation.FileID, FileName: m.Animation.FileName, Size: int64(m.Animation.FileSize)}
	case m.Video != nil:
		return &transport.Media{Kind: transport.MediaVideo, FileID: m.Video.FileID, FileName: m.Video.FileName, Size: int64(m.Video.FileSize)}
	case m.Audio != nil:
		return &transport.Media{Kind: transport.MediaAudio, FileID: m.Audio.FileID, FileName: m.Audio.FileName, Size: int64(m.Audio.FileSize)}
	case m.Voice != nil:
		return &transport.Media{Kind: transport.MediaVoice, FileID: m.Voice.FileID, Size: int64(m.Voice.FileSize)}
	case m.Document != nil:
		return &transport.Media{Kind: transport.MediaDocument, FileID: m.Document.FileID, FileName: m.Document.FileName, Size: int64(m.Document.FileSize)}
	default:
		return nil
	}
}

func isService(m *telego.Message) bool {
	return len(m.NewChatMembers) > 0 ||
		m.LeftChatMember != nil ||
		m.NewChatTitle != "" ||
		len(m.NewChatPhoto) > 0 ||
		m.DeleteChatPhoto ||
		m.GroupChatCreated ||
		m.PinnedMessage != nil ||
		m.ForumTopicCreated != nil ||
		m.ForumTopicEdited != nil ||
		m.ForumTopicClosed != nil ||
		m.ForumTopicReopened != nil
}

func toEntities(in []telego.MessageEntity) []transport.Entity {
	if len(in) == 0 {
		return nil
	}
	out := make([]transport.Entity, len(in))
	for i, e := range in {
		out[i] = transport.Entity{
			Type:          e.Type,
			Offset:        e.Offset,
			Length:        e.Length,
			URL:           e.URL,
			Language:      e.Language,
			CustomEmojiID: e.CustomEmojiID,
		}
	}
	return out
}

func fromEntities(in []transport.Entity) []telego.MessageEntity {
	if len(in) == 0 {
		return nil
	}
	out := make([]telego.MessageEntity, len(in))
	for i, e := range in {
		out[i] = telego.MessageEntity{
			Type:          e.Type,
			Offset:        e.Offset,
			Length:        e.Length,
			URL:           e.URL,
			Language:      e.Language,
			CustomEmojiID: e.CustomEmojiID,
		}
	}
	return out
}
