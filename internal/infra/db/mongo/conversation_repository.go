package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketchat/internal/domain/chat"
)

// ConversationRepository stores one document per conversation with its
// messages embedded.
type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(ctx context.Context, db *mongo.Database) (*ConversationRepository, error) {
	col := db.Collection("conversations")
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "ad_id", Value: 1}, {Key: "participants", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create conversation indexes: %w", err)
	}
	return &ConversationRepository{col: col}, nil
}

func (r *ConversationRepository) ByID(ctx context.Context, id string) (*chat.Record, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ConversationRepository) ByAdAndParticipants(ctx context.Context, adID, a, b string) (*chat.Record, error) {
	return r.findOne(ctx, bson.M{
		"ad_id":        adID,
		"participants": bson.M{"$all": bson.A{a, b}},
	})
}

func (r *ConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*chat.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*chat.Record
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toRecord())
	}
	return out, cursor.Err()
}

func (r *ConversationRepository) Save(ctx context.Context, rec *chat.Record) error {
	doc := newConversationDocument(rec)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *ConversationRepository) findOne(ctx context.Context, filter bson.M) (*chat.Record, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, chat.ErrConversationNotFound
		}
		return nil, err
	}
	return doc.toRecord(), nil
}

type conversationDocument struct {
	ID           string            `bson:"_id"`
	AdID         string            `bson:"ad_id"`
	AdTitle      string            `bson:"ad_title"`
	Participants []string          `bson:"participants"`
	Messages     []messageDocument `bson:"messages"`
	Unread       map[string]int    `bson:"unread"`
	CreatedAt    time.Time         `bson:"created_at"`
	UpdatedAt    time.Time         `bson:"updated_at"`
}

type messageDocument struct {
	ID        string    `bson:"id"`
	SenderID  string    `bson:"sender_id"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
}

func newConversationDocument(rec *chat.Record) conversationDocument {
	doc := conversationDocument{
		ID:           rec.ID,
		AdID:         rec.AdID,
		AdTitle:      rec.AdTitle,
		Participants: append([]string(nil), rec.Participants...),
		Messages:     make([]messageDocument, 0, len(rec.Messages)),
		Unread:       make(map[string]int, len(rec.Unread)),
		CreatedAt:    rec.CreatedAt.UTC(),
		UpdatedAt:    rec.UpdatedAt.UTC(),
	}
	for _, m := range rec.Messages {
		doc.Messages = append(doc.Messages, messageDocument{
			ID:        m.ID,
			SenderID:  m.SenderID,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.UTC(),
		})
	}
	for k, v := range rec.Unread {
		doc.Unread[k] = v
	}
	return doc
}

func (d conversationDocument) toRecord() *chat.Record {
	rec := &chat.Record{
		ID:           d.ID,
		AdID:         d.AdID,
		AdTitle:      d.AdTitle,
		Participants: d.Participants,
		Messages:     make([]chat.Message, 0, len(d.Messages)),
		Unread:       d.Unread,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if rec.Unread == nil {
		rec.Unread = make(map[string]int)
	}
	for _, m := range d.Messages {
		rec.Messages = append(rec.Messages, chat.Message{
			ID:             m.ID,
			ConversationID: d.ID,
			SenderID:       m.SenderID,
			Content:        m.Content,
			CreatedAt:      m.CreatedAt,
			Delivery:       chat.DeliveryConfirmed,
		})
	}
	return rec
}

var _ chat.Repository = (*ConversationRepository)(nil)
