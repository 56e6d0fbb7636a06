package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainmessaging "marketplace/internal/domain/messaging"
)

type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{col: db.Collection(conversationsCollection)}
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainmessaging.ConversationID) (*domainmessaging.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ConversationRepository) FindBetween(ctx context.Context, a, b domainmessaging.UserID) (*domainmessaging.Conversation, error) {
	return r.findOne(ctx, bson.M{"pair_key": domainmessaging.PairKey(a, b), "is_active": true})
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domainmessaging.Conversation) error {
	if _, err := r.col.InsertOne(ctx, newConversationDocument(conv)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %w", domainmessaging.ErrConversationExists, writeErr(ctx, err))
		}
		return writeErr(ctx, err)
	}
	return nil
}

func (r *ConversationRepository) ListForUser(ctx context.Context, user domainmessaging.UserID) ([]*domainmessaging.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, activeFor(user), opts)
	if err != nil {
		return nil, err
	}
	var docs []conversationDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainmessaging.Conversation, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

func (r *ConversationRepository) IDsForUser(ctx context.Context, user domainmessaging.UserID, limit int) ([]domainmessaging.ConversationID, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, activeFor(user), opts)
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]domainmessaging.ConversationID, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, domainmessaging.ConversationID(doc.ID))
	}
	return ids, nil
}

// UpdateLastMessage is a single findAndModify: the preview is last writer
// wins, timestamps only move forward through $max, and counters use $inc so
// concurrent sends never lose an increment.
func (r *ConversationRepository) UpdateLastMessage(ctx context.Context, id domainmessaging.ConversationID, preview domainmessaging.LastMessage) (*domainmessaging.Conversation, error) {
	current, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive {
		return nil, domainmessaging.ErrConversationNotFound
	}
	at := preview.Timestamp.UTC()
	inc := bson.M{}
	for _, p := range current.Participants {
		if p.UserID == preview.SenderID {
			continue
		}
		inc["unread_count."+string(p.UserID)] = 1
	}
	update := bson.M{
		"$set": bson.M{
			"last_message.content":   domainmessaging.Snippet(preview.Content),
			"last_message.sender_id": string(preview.SenderID),
		},
		"$max": bson.M{
			"last_message.timestamp": at,
			"updated_at":             at,
		},
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": string(id), "is_active": true}, update)
}

func (r *ConversationRepository) MarkRead(ctx context.Context, id domainmessaging.ConversationID, user domainmessaging.UserID, at time.Time) (*domainmessaging.Conversation, error) {
	field := "unread_count." + string(user)
	filter := bson.M{"_id": string(id), "is_active": true, field: bson.M{"$gt": 0}}
	update := bson.M{
		"$set": bson.M{field: 0},
		"$max": bson.M{"updated_at": at.UTC()},
	}
	conv, err := r.findOneAndUpdate(ctx, filter, update)
	if !errors.Is(err, domainmessaging.ErrConversationNotFound) {
		return conv, err
	}
	// Nothing to reset; report the current state or a real miss.
	conv, err = r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive {
		return nil, domainmessaging.ErrConversationNotFound
	}
	return conv, nil
}

func (r *ConversationRepository) Archive(ctx context.Context, id domainmessaging.ConversationID, at time.Time) (*domainmessaging.Conversation, error) {
	update := bson.M{
		"$set": bson.M{"is_active": false},
		"$max": bson.M{"updated_at": at.UTC()},
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": string(id), "is_active": true}, update)
}

func (r *ConversationRepository) findOne(ctx context.Context, filter bson.M) (*domainmessaging.Conversation, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainmessaging.ErrConversationNotFound
		}
		return nil, conflictOr(err)
	}
	return doc.toAggregate(), nil
}

func (r *ConversationRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*domainmessaging.Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc conversationDocument
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainmessaging.ErrConversationNotFound
		}
		return nil, writeErr(ctx, err)
	}
	return doc.toAggregate(), nil
}

func activeFor(user domainmessaging.UserID) bson.M {
	return bson.M{"participant_ids": string(user), "is_active": true}
}

var _ domainmessaging.ConversationRepository = (*ConversationRepository)(nil)
