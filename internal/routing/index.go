// Package routing resolves inbound messages to their configured
// destinations.
package routing

import (
	"fmt"

	"relay/internal/config"
)

// supergroupOffset is the base of the signed "-100..." chat id convention.
const supergroupOffset int64 = -1000000000000

// Mapping is one configured source -> target rule. Zero topic ids mean the
// rule is not topic-scoped.
type Mapping struct {
	SourceID      int64
	SourceTopicID int
	TargetID      int64
	TargetTopicID int
}

// Destination is a resolved delivery target.
type Destination struct {
	TargetID      int64
	TargetTopicID int
}

func (d Destination) String() string {
	if d.TargetTopicID != 0 {
		return fmt.Sprintf("%d#%d", d.TargetID, d.TargetTopicID)
	}
	return fmt.Sprintf("%d", d.TargetID)
}

// Key addresses the index: either a whole source chat or one topic in it.
type Key struct {
	Source int64
	Topic  int
	scoped bool
}

func GroupKey(source int64) Key {
	return Key{Source: source}
}

func TopicKey(source int64, topic int) Key {
	return Key{Source: source, Topic: topic, scoped: true}
}

func (k Key) IsTopic() bool {
	return k.scoped
}

func (k Key) String() string {
	if k.scoped {
		return fmt.Sprintf("%d#%d", k.Source, k.Topic)
	}
	return fmt.Sprintf("%d", k.Source)
}

// Index maps keys to destinations in configuration order. It is read-only
// after Build.
type Index struct {
	entries map[Key][]Destination
	sources []int64
	size    int
}

func Build(mappings []Mapping) *Index {
	ix := &Index{
		entries: make(map[Key][]Destination),
		size:    len(mappings),
	}
	seen := make(map[int64]struct{})

	for _, m := range mappings {
		key := GroupKey(m.SourceID)
		if m.SourceTopicID != 0 {
			key = TopicKey(m.SourceID, m.SourceTopicID)
		}
		ix.entries[key] = append(ix.entries[key], Destination{
			TargetID:      m.TargetID,
			TargetTopicID: m.TargetTopicID,
		})

		if _, ok := seen[m.SourceID]; !ok {
			seen[m.SourceID] = struct{}{}
			ix.sources = append(ix.sources, m.SourceID)
		}
	}

	return ix
}

// FromConfig converts configured mappings, preserving their order.
func FromConfig(cfgs []config.MappingConfig) []Mapping {
	mappings := make([]Mapping, len(cfgs))
	for i, c := range cfgs {
		mappings[i] = Mapping{
			SourceID:      c.SourceID,
			SourceTopicID: c.SourceTopicID,
			TargetID:      c.TargetID,
			TargetTopicID: c.TargetTopicID,
		}
	}
	return mappings
}

// Lookup returns the destinations stored under exactly key.
func (ix *Index) Lookup(key Key) ([]Destination, bool) {
	dests, ok := ix.entries[key]
	return dests, ok
}

// Resolve returns the destinations for a source and optional topic (0 =
// none). A topic without its own mapping falls back to the group-level
// destinations. Unmatched input yields nil.
func (ix *Index) Resolve(source int64, topic int) []Destination {
	if topic != 0 {
		if dests, ok := ix.entries[TopicKey(source, topic)]; ok {
			return dests
		}
	}
	return ix.entries[GroupKey(source)]
}

// Sources returns the distinct source ids in first-seen order.
func (ix *Index) Sources() []int64 {
	out := make([]int64, len(ix.sources))
	copy(out, ix.sources)
	return out
}

// Len returns the number of mappings the index was built from.
func (ix *Index) Len() int {
	return ix.size
}

// NormalizeChatID converts a raw positive channel id to the signed
// supergroup convention. Already-signed ids pass through.
func NormalizeChatID(raw int64) int64 {
	if raw > 0 {
		return supergroupOffset - raw
	}
	return raw
}
