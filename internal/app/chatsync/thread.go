package chatsync

import (
	"context"

	"marketchat/internal/domain/chat"
)

// threadState is the active thread as displayed: server messages in backend
// order followed by optimistic entries the backend has not acknowledged yet.
type threadState struct {
	messages    []chat.Message
	other       chat.OtherUser
	serverCount int
	loaded      bool

	// confirmations counts sends acknowledged while this thread is active; a
	// poll that started under an older value may predate one of them.
	confirmations uint64
}

// load installs the first fetch of the thread. Sends issued while the fetch was
// in flight survive: unsettled entries are re-appended and entries confirmed
// after the server snapshot are kept after it.
func (t *threadState) load(th Thread, self string) {
	server := settledCopy(th.Messages)
	known := make(map[string]struct{}, len(server))
	for _, m := range server {
		known[m.ID] = struct{}{}
	}
	out := append([]chat.Message(nil), server...)
	for _, m := range t.messages {
		if !m.Settled() {
			continue
		}
		if _, ok := known[m.ID]; !ok {
			out = append(out, m)
		}
	}
	t.serverCount = len(out)
	claimed := make([]bool, len(server))
	for _, m := range t.messages {
		if m.Settled() {
			continue
		}
		if m.Delivery == chat.DeliveryPending && claimFrom(server, claimed, 0, self, m.Content) {
			continue
		}
		out = append(out, m)
	}
	t.messages = out
	if th.OtherUser.Name != "" || !t.loaded {
		t.other = th.OtherUser
	}
	t.loaded = true
}

func (t *threadState) find(id string) int {
	for i := range t.messages {
		if t.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// settled returns the entries the backend is known to hold.
func (t *threadState) settled() []chat.Message {
	out := make([]chat.Message, 0, len(t.messages))
	for _, m := range t.messages {
		if m.Settled() {
			out = append(out, m)
		}
	}
	return out
}

// SyncThread runs one poll of the active thread and reports whether its
// messages changed.
func (s *Store) SyncThread(ctx context.Context) (bool, error) {
	s.mu.Lock()
	id, epoch := s.selected, s.epoch
	s.mu.Unlock()
	if id == "" {
		return false, ErrNotSelected
	}
	return s.syncThread(ctx, id, epoch)
}

func (s *Store) syncThread(ctx context.Context, id string, epoch uint64) (bool, error) {
	s.mu.Lock()
	confirmations := s.thread.confirmations
	s.mu.Unlock()

	th, err := s.gateway.GetThread(ctx, id)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("thread poll failed", "conversation_id", id, "error", err)
		}
		return false, err
	}

	s.mu.Lock()
	if s.epoch != epoch || s.selected != id {
		// selection moved on while the request was in flight
		s.mu.Unlock()
		return false, nil
	}
	if !s.thread.loaded {
		s.thread.load(th, s.session.UserID)
		s.mu.Unlock()
		s.emit(Event{Kind: EventThread, ConversationID: id})
		return true, nil
	}
	if s.thread.confirmations != confirmations {
		// a send was confirmed after this snapshot was taken; the next tick sees it
		s.mu.Unlock()
		return false, nil
	}
	if len(th.Messages) == s.thread.serverCount {
		s.mu.Unlock()
		return false, nil
	}

	prev := s.thread.settled()
	next := settledCopy(th.Messages)
	grew := len(next) > s.thread.serverCount
	s.thread.messages = reconcile(next, s.thread.messages, s.thread.serverCount, s.session.UserID)
	s.thread.serverCount = len(next)
	if th.OtherUser.Name != "" {
		s.thread.other = th.OtherUser
	}
	var (
		incoming chat.Message
		alert    bool
	)
	if grew {
		incoming, alert = DetectIncoming(prev, next, s.session.UserID)
	}
	sender := s.otherUserLocked().Name
	s.mu.Unlock()

	if alert {
		if sender == "" {
			sender = fallbackSender
		}
		s.notify(ctx, sender, incoming.Content, id)
	}
	s.emit(Event{Kind: EventThread, ConversationID: id})
	return true, nil
}

// reconcile replaces the displayed thread with the server list and re-appends
// optimistic entries the server does not hold yet. A pending entry whose text
// shows up among the new server messages from self has been delivered and is
// dropped in favor of the server copy.
func reconcile(server, local []chat.Message, knownCount int, self string) []chat.Message {
	claimed := make([]bool, len(server))
	out := append([]chat.Message(nil), server...)
	for _, m := range local {
		if m.Settled() {
			continue
		}
		if m.Delivery == chat.DeliveryPending && claimFrom(server, claimed, knownCount, self, m.Content) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func claimFrom(server []chat.Message, claimed []bool, from int, self, content string) bool {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(server); i++ {
		if claimed[i] || server[i].SenderID != self || server[i].Content != content {
			continue
		}
		claimed[i] = true
		return true
	}
	return false
}

func settledCopy(in []chat.Message) []chat.Message {
	out := make([]chat.Message, len(in))
	for i, m := range in {
		if m.Delivery == "" {
			m.Delivery = chat.DeliveryConfirmed
		}
		out[i] = m
	}
	return out
}
