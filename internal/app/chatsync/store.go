package chatsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/app/policies"
	"marketchat/internal/app/schedule"
	"marketchat/internal/domain/chat"
)

const (
	DefaultConversationsInterval = 10 * time.Second
	DefaultThreadInterval        = 3 * time.Second

	conversationsTask = "conversations"
	threadTask        = "thread"
	fallbackSender    = "Cineva"
	fallbackPreview   = "Mesaj nou"
	messagesURL       = "/messages"
)

// Options tune a Store. Zero values fall back to defaults.
type Options struct {
	ConversationsInterval time.Duration
	ThreadInterval        time.Duration
	Notifier              policies.MessageNotifier
	Scheduler             *schedule.Scheduler
	Logger                *slog.Logger
	Now                   func() time.Time
	NewTempID             func() string
}

// Store keeps the local view of the user's conversations and of the active
// thread consistent with the backend.
type Store struct {
	session   Session
	gateway   Gateway
	notifier  policies.MessageNotifier
	sched     *schedule.Scheduler
	ownSched  bool
	logger    *slog.Logger
	now       func() time.Time
	newTempID func() string

	listInterval   time.Duration
	threadInterval time.Duration

	mu            sync.Mutex
	conversations []chat.Conversation
	watermarks    map[string]int
	seeded        bool
	selected      string
	epoch         uint64
	thread        threadState
	listeners     []Listener
	closed        bool
}

// NewStore wires a store for session over gateway.
func NewStore(session Session, gateway Gateway, opts Options) *Store {
	s := &Store{
		session:        session,
		gateway:        gateway,
		notifier:       opts.Notifier,
		sched:          opts.Scheduler,
		logger:         opts.Logger,
		now:            opts.Now,
		newTempID:      opts.NewTempID,
		listInterval:   opts.ConversationsInterval,
		threadInterval: opts.ThreadInterval,
		watermarks:     make(map[string]int),
	}
	if s.sched == nil {
		s.sched = schedule.New(context.Background(), opts.Logger)
		s.ownSched = true
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newTempID == nil {
		s.newTempID = func() string { return chat.TempIDPrefix + uuid.NewString() }
	}
	if s.listInterval <= 0 {
		s.listInterval = DefaultConversationsInterval
	}
	if s.threadInterval <= 0 {
		s.threadInterval = DefaultThreadInterval
	}
	return s
}

// Subscribe registers l for change events.
func (s *Store) Subscribe(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Start loads the conversation list and keeps refreshing it in the background.
// The refresh error is returned but polling is scheduled regardless.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schedule.ErrStopped
	}
	err := s.sched.Every(conversationsTask, "", s.listInterval, func(ctx context.Context) {
		_ = s.Refresh(ctx)
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Close stops both pollers. The store keeps its last state for reading.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.sched.Cancel(conversationsTask)
	s.sched.Cancel(threadTask)
	s.mu.Unlock()
	if s.ownSched {
		s.sched.Stop()
	}
}

// Refresh fetches the full conversation list. Failures are logged and leave
// the current state untouched; the next tick retries.
func (s *Store) Refresh(ctx context.Context) error {
	convs, err := s.gateway.ListConversations(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("conversation refresh failed", "error", err)
		}
		return fmt.Errorf("refresh conversations: %w", err)
	}

	type alert struct {
		conversationID string
		sender         string
		preview        string
	}
	var alerts []alert

	s.mu.Lock()
	for _, conv := range convs {
		prev := s.watermarks[conv.ID]
		if s.seeded && conv.MessageCount > prev && conv.ID != s.selected {
			preview := conv.LastMessage
			if strings.TrimSpace(preview) == "" {
				preview = fallbackPreview
			}
			alerts = append(alerts, alert{
				conversationID: conv.ID,
				sender:         conv.DisplayName(fallbackSender),
				preview:        preview,
			})
		}
		s.watermarks[conv.ID] = conv.MessageCount
	}
	s.seeded = true
	s.conversations = convs
	if idx := s.indexOf(s.selected); idx >= 0 {
		// the open thread is read as it arrives
		s.conversations[idx].UnreadCount = 0
	}
	s.mu.Unlock()

	for _, a := range alerts {
		s.notify(ctx, a.sender, a.preview, a.conversationID)
	}
	s.emit(Event{Kind: EventConversations})
	return nil
}

// Select makes id the active thread. Its unread count is zeroed before any
// network call; the previous thread poll is canceled before the new fetch.
// An empty id deselects.
func (s *Store) Select(ctx context.Context, id string) error {
	if id == "" {
		s.Deselect()
		return nil
	}

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.selected = id
	s.thread = threadState{}
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			s.conversations[i].UnreadCount = 0
		}
	}
	s.sched.Cancel(threadTask)
	s.mu.Unlock()
	s.emit(Event{Kind: EventSelection, ConversationID: id})

	thread, fetchErr := s.gateway.GetThread(ctx, id)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	if fetchErr == nil {
		s.thread.load(thread, s.session.UserID)
	} else {
		s.logger.Warn("conversation fetch failed", "conversation_id", id, "error", fetchErr)
	}
	var schedErr error
	if !s.closed {
		schedErr = s.sched.Every(threadTask, id, s.threadInterval, func(ctx context.Context) {
			_, _ = s.syncThread(ctx, id, epoch)
		})
	}
	s.mu.Unlock()

	if fetchErr != nil {
		return fmt.Errorf("load conversation %s: %w", id, fetchErr)
	}
	s.emit(Event{Kind: EventThread, ConversationID: id})
	return schedErr
}

// Deselect closes the active thread and stops its poll.
func (s *Store) Deselect() {
	s.mu.Lock()
	if s.selected == "" {
		s.mu.Unlock()
		return
	}
	s.epoch++
	s.selected = ""
	s.thread = threadState{}
	s.sched.Cancel(threadTask)
	s.mu.Unlock()
	s.emit(Event{Kind: EventSelection})
}

// StartConversation sends the seed message for a listing, reloads the list and
// selects the conversation the backend created. On failure nothing is selected.
func (s *Store) StartConversation(ctx context.Context, adID, receiverID string) error {
	res, err := s.gateway.SendMessage(ctx, SendRequest{
		AdID:       adID,
		ReceiverID: receiverID,
		Content:    SeedMessage,
	})
	if err != nil {
		s.logger.Error("start conversation failed", "ad_id", adID, "receiver_id", receiverID, "error", err)
		return fmt.Errorf("start conversation: %w", err)
	}
	if res.ConversationID == "" {
		return ErrNoConversationID
	}
	_ = s.Refresh(ctx)
	return s.Select(ctx, res.ConversationID)
}

// Send posts text to the active thread. The optimistic entry is appended and
// announced before the request goes out; on failure it is marked failed.
func (s *Store) Send(ctx context.Context, id, text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if id == "" || s.selected != id {
		s.mu.Unlock()
		return chat.Message{}, ErrNotSelected
	}
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return chat.Message{}, ErrUnknownConversation
	}
	conv := s.conversations[idx]
	receiver, err := conv.Counterpart(s.session.UserID)
	if err != nil {
		s.mu.Unlock()
		return chat.Message{}, fmt.Errorf("%w: %v", ErrNoReceiver, err)
	}
	msg := chat.Message{
		ID:             s.newTempID(),
		ConversationID: id,
		SenderID:       s.session.UserID,
		Content:        text,
		CreatedAt:      s.now().UTC(),
		Delivery:       chat.DeliveryPending,
	}
	s.thread.messages = append(s.thread.messages, msg)
	s.conversations[idx].LastMessage = text
	s.conversations[idx].LastMessageAt = msg.CreatedAt
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessageAppended, ConversationID: id, Message: msg})
	return s.deliver(ctx, conv.AdID, receiver, msg)
}

// Retry re-posts an optimistic message that previously failed.
func (s *Store) Retry(ctx context.Context, tempID string) (chat.Message, error) {
	s.mu.Lock()
	pos := s.thread.find(tempID)
	if pos < 0 || s.thread.messages[pos].Delivery != chat.DeliveryFailed {
		s.mu.Unlock()
		return chat.Message{}, ErrNotFailed
	}
	msg := s.thread.messages[pos]
	idx := s.indexOf(msg.ConversationID)
	if idx < 0 {
		s.mu.Unlock()
		return chat.Message{}, ErrUnknownConversation
	}
	conv := s.conversations[idx]
	receiver, err := conv.Counterpart(s.session.UserID)
	if err != nil {
		s.mu.Unlock()
		return chat.Message{}, fmt.Errorf("%w: %v", ErrNoReceiver, err)
	}
	msg.Delivery = chat.DeliveryPending
	s.thread.messages[pos] = msg
	s.mu.Unlock()

	s.emit(Event{Kind: EventThread, ConversationID: msg.ConversationID, Message: msg})
	return s.deliver(ctx, conv.AdID, receiver, msg)
}

func (s *Store) deliver(ctx context.Context, adID, receiver string, msg chat.Message) (chat.Message, error) {
	res, err := s.gateway.SendMessage(ctx, SendRequest{
		AdID:       adID,
		ReceiverID: receiver,
		Content:    msg.Content,
	})

	s.mu.Lock()
	pos := -1
	if s.selected == msg.ConversationID {
		pos = s.thread.find(msg.ID)
	}
	if err != nil {
		msg.Delivery = chat.DeliveryFailed
		if pos >= 0 {
			s.thread.messages[pos] = msg
		}
		s.mu.Unlock()
		s.logger.Error("send message failed", "conversation_id", msg.ConversationID, "error", err)
		s.emit(Event{Kind: EventSendFailed, ConversationID: msg.ConversationID, Message: msg, Err: err})
		return msg, fmt.Errorf("send message: %w", err)
	}

	msg.Delivery = chat.DeliveryConfirmed
	if res.MessageID != "" {
		msg.ID = res.MessageID
	}
	if pos >= 0 {
		s.thread.messages[pos] = msg
		s.thread.serverCount++
		s.thread.confirmations++
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventThread, ConversationID: msg.ConversationID, Message: msg})
	return msg, nil
}

// Session returns the user the store acts for.
func (s *Store) Session() Session {
	return s.session
}

// Conversations returns a copy of the conversation list in server order.
func (s *Store) Conversations() []chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return out
}

// Conversation looks up a loaded conversation.
func (s *Store) Conversation(id string) (chat.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return chat.Conversation{}, false
	}
	return s.conversations[idx].Clone(), true
}

// Selected returns the active thread id, empty when none.
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Messages returns a copy of the active thread.
func (s *Store) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.CloneMessages(s.thread.messages)
}

// OtherUser returns the counterpart of the active thread.
func (s *Store) OtherUser() chat.OtherUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otherUserLocked()
}

// TotalUnread is the header badge value.
func (s *Store) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.TotalUnread(s.conversations)
}

func (s *Store) otherUserLocked() chat.OtherUser {
	other := s.thread.other
	if other.Name == "" {
		if idx := s.indexOf(s.selected); idx >= 0 {
			other.Name = s.conversations[idx].OtherUser.Name
			if other.Picture == "" {
				other.Picture = s.conversations[idx].OtherUser.Picture
			}
		}
	}
	return other
}

func (s *Store) indexOf(id string) int {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notify(ctx context.Context, sender, preview, conversationID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NewMessage(ctx, sender, preview, messagesURL+"?conversation="+conversationID)
}

func (s *Store) emit(ev Event) {
	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}
