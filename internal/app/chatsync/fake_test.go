package chatsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketchat/internal/domain/chat"
)

const me = "user_me"

// fakeGateway is an in-memory backend honoring the REST contract.
type fakeGateway struct {
	mu            sync.Mutex
	conversations []chat.Conversation
	threads       map[string][]chat.Message
	others        map[string]chat.OtherUser
	listErr       error
	threadErr     error
	sendErr       error
	listCalls     int
	threadCalls   map[string]int
	sends         []SendRequest
	sendGate      chan struct{}
	threadGate    chan struct{}
	nextConvID    string
	seq           int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		threads:     make(map[string][]chat.Message),
		others:      make(map[string]chat.OtherUser),
		threadCalls: make(map[string]int),
	}
}

func (g *fakeGateway) addConversation(conv chat.Conversation, msgs ...chat.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	conv.MessageCount = len(msgs)
	g.conversations = append(g.conversations, conv)
	g.threads[conv.ID] = append([]chat.Message(nil), msgs...)
	g.others[conv.ID] = conv.OtherUser
}

// deliver simulates a message arriving server-side.
func (g *fakeGateway) deliver(convID, sender, content string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendLocked(convID, sender, content)
}

func (g *fakeGateway) appendLocked(convID, sender, content string) chat.Message {
	g.seq++
	msg := chat.Message{
		ID:             fmt.Sprintf("msg_%d", g.seq),
		ConversationID: convID,
		SenderID:       sender,
		Content:        content,
		CreatedAt:      time.Date(2026, 1, 1, 12, 0, g.seq, 0, time.UTC),
	}
	g.threads[convID] = append(g.threads[convID], msg)
	for i := range g.conversations {
		if g.conversations[i].ID == convID {
			g.conversations[i].MessageCount++
			g.conversations[i].LastMessage = content
			if sender != me {
				g.conversations[i].UnreadCount++
			}
		}
	}
	return msg
}

func (g *fakeGateway) setUnread(convID string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.conversations {
		if g.conversations[i].ID == convID {
			g.conversations[i].UnreadCount = n
		}
	}
}

func (g *fakeGateway) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]chat.Conversation, len(g.conversations))
	for i, c := range g.conversations {
		out[i] = c.Clone()
	}
	return out, nil
}

// GetThread takes its snapshot before waiting on threadGate, so a gated call
// models a response that is slow to arrive.
func (g *fakeGateway) GetThread(ctx context.Context, id string) (Thread, error) {
	g.mu.Lock()
	g.threadCalls[id]++
	gate := g.threadGate
	err := g.threadErr
	th := Thread{
		Messages:  append([]chat.Message(nil), g.threads[id]...),
		OtherUser: g.others[id],
	}
	if err == nil {
		for i := range g.conversations {
			if g.conversations[i].ID == id {
				g.conversations[i].UnreadCount = 0
			}
		}
	}
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Thread{}, ctx.Err()
		}
	}
	if err != nil {
		return Thread{}, err
	}
	return th, nil
}

func (g *fakeGateway) SendMessage(ctx context.Context, req SendRequest) (SendResult, error) {
	g.mu.Lock()
	g.sends = append(g.sends, req)
	gate := g.sendGate
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return SendResult{}, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return SendResult{}, g.sendErr
	}
	convID := ""
	for _, c := range g.conversations {
		if c.AdID == req.AdID && contains(c.Participants, req.ReceiverID) {
			convID = c.ID
		}
	}
	if convID == "" {
		convID = g.nextConvID
		g.conversations = append(g.conversations, chat.Conversation{
			ID:           convID,
			AdID:         req.AdID,
			Participants: []string{me, req.ReceiverID},
			OtherUser:    chat.OtherUser{ID: req.ReceiverID, Name: "Seller"},
		})
		g.others[convID] = chat.OtherUser{ID: req.ReceiverID, Name: "Seller"}
	}
	msg := g.appendLocked(convID, me, req.Content)
	return SendResult{MessageID: msg.ID, ConversationID: convID, CreatedAt: msg.CreatedAt}, nil
}

func (g *fakeGateway) threadCallCount(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.threadCalls[id]
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

type sentAlert struct {
	sender, preview, url string
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []sentAlert
}

func (n *fakeNotifier) NewMessage(_ context.Context, sender, preview, url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, sentAlert{sender: sender, preview: preview, url: url})
}

func (n *fakeNotifier) all() []sentAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentAlert(nil), n.alerts...)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func sellerConversation(id string) chat.Conversation {
	return chat.Conversation{
		ID:           id,
		AdID:         "ad_" + id,
		AdTitle:      "Bicicletă " + id,
		Participants: []string{me, "seller_" + id},
		OtherUser:    chat.OtherUser{ID: "seller_" + id, Name: "Seller " + id},
	}
}
