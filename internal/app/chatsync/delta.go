package chatsync

import "marketchat/internal/domain/chat"

// DetectIncoming decides whether growth from prev to next deserves an alert.
// Only the trailing message is inspected: it is returned when next is longer
// than prev and someone other than self sent it.
func DetectIncoming(prev, next []chat.Message, self string) (chat.Message, bool) {
	if len(next) <= len(prev) {
		return chat.Message{}, false
	}
	last := next[len(next)-1]
	if last.SenderID == self {
		return chat.Message{}, false
	}
	return last, true
}
