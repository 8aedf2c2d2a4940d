package library

import (
	"github.com/nbd-wtf/go-nostr"
)

// GetAllTagValues returns the value of every tag named name, in tag order.
func GetAllTagValues(e nostr.Event, name string) (r []string) {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			r = append(r, tag[1])
		}
	}
	return
}

// HasTag reports whether e carries a tag (name, value).
func HasTag(e nostr.Event, name, value string) bool {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name && tag[1] == value {
			return true
		}
	}
	return false
}

// CopyTags returns a deep copy so callers can append without touching the source event.
func CopyTags(tags nostr.Tags) nostr.Tags {
	out := make(nostr.Tags, 0, len(tags)+1)
	for _, tag := range tags {
		t := make(nostr.Tag, len(tag))
		copy(t, tag)
		out = append(out, t)
	}
	return out
}
