package dto

import (
	"time"

	"marketchat/internal/domain/chat"
)

// OtherUser is the counterpart summary embedded in conversation payloads.
type OtherUser struct {
	UserID  string `json:"user_id,omitempty"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// Conversation describes one entry of GET /conversations.
type Conversation struct {
	ID            string     `json:"conversation_id"`
	AdID          string     `json:"ad_id"`
	AdTitle       string     `json:"ad_title,omitempty"`
	Participants  []string   `json:"participants"`
	OtherUser     *OtherUser `json:"other_user,omitempty"`
	OtherUserName string     `json:"other_user_name,omitempty"`
	LastMessage   string     `json:"last_message,omitempty"`
	LastMessageAt time.Time  `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	MessageCount  int        `json:"message_count"`
}

// ConversationList is the GET /conversations envelope.
type ConversationList struct {
	Conversations []Conversation `json:"conversations"`
}

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID             string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Thread is the GET /conversations/{id} envelope.
type Thread struct {
	Messages  []ChatMessage `json:"messages"`
	OtherUser *OtherUser    `json:"other_user,omitempty"`
}

// SendMessageRequest is the POST /messages body.
type SendMessageRequest struct {
	AdID       string `json:"ad_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// UnreadCount is the GET /messages/unread-count envelope.
type UnreadCount struct {
	UnreadCount int `json:"unread_count"`
}

func (c Conversation) ToDomain() chat.Conversation {
	conv := chat.Conversation{
		ID:            c.ID,
		AdID:          c.AdID,
		AdTitle:       c.AdTitle,
		Participants:  append([]string(nil), c.Participants...),
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		UnreadCount:   c.UnreadCount,
		MessageCount:  c.MessageCount,
	}
	if c.OtherUser != nil {
		conv.OtherUser = c.OtherUser.ToDomain()
	}
	if conv.OtherUser.Name == "" {
		conv.OtherUser.Name = c.OtherUserName
	}
	return conv
}

func (u OtherUser) ToDomain() chat.OtherUser {
	return chat.OtherUser{ID: u.UserID, Name: u.Name, Picture: u.Picture}
}

func (m ChatMessage) ToDomain() chat.Message {
	return chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		Delivery:       chat.DeliveryConfirmed,
	}
}

// NewConversation maps a domain conversation into its wire form.
func NewConversation(c chat.Conversation) Conversation {
	other := NewOtherUser(c.OtherUser)
	return Conversation{
		ID:            c.ID,
		AdID:          c.AdID,
		AdTitle:       c.AdTitle,
		Participants:  append([]string(nil), c.Participants...),
		OtherUser:     &other,
		OtherUserName: c.OtherUser.Name,
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		UnreadCount:   c.UnreadCount,
		MessageCount:  c.MessageCount,
	}
}

func NewOtherUser(u chat.OtherUser) OtherUser {
	return OtherUser{UserID: u.ID, Name: u.Name, Picture: u.Picture}
}

func NewChatMessage(m chat.Message) ChatMessage {
	return ChatMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}
