package routing

import "relay/internal/transport"

// TopicOf extracts the topic a message belongs to from its reply link. The
// top-of-thread pointer wins over the replied-to id. It reports false when
// the message has no usable link.
func TopicOf(msg *transport.Message) (int, bool) {
	if top := msg.ReplyTopTarget(); top != 0 {
		return top, true
	}
	if direct := msg.ReplyDirectTarget(); direct != 0 {
		return direct, true
	}
	return 0, false
}

// Route resolves msg from source to its destinations and reports the topic
// used. A message with no reply link may itself be a topic root, so its own
// id is checked against the topic keys before falling back to the group.
func (ix *Index) Route(source int64, msg *transport.Message) (int, []Destination) {
	if msg.Reply == nil {
		if dests, ok := ix.Lookup(TopicKey(source, msg.ID)); ok {
			return msg.ID, dests
		}
		return 0, ix.Resolve(source, 0)
	}

	topic, _ := TopicOf(msg)
	return topic, ix.Resolve(source, topic)
}
