package mongo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainmessaging "marketplace/internal/domain/messaging"
)

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection(messagesCollection)}
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

func (r *MessageRepository) Append(ctx context.Context, msg *domainmessaging.Message) error {
	if _, err := r.col.InsertOne(ctx, newMessageDocument(msg)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainmessaging.ErrMessageExists
		}
		return writeErr(ctx, err)
	}
	return nil
}

func (r *MessageRepository) ByID(ctx context.Context, id domainmessaging.MessageID) (*domainmessaging.Message, error) {
	var doc messageDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainmessaging.ErrMessageNotFound
		}
		return nil, conflictOr(err)
	}
	return doc.toAggregate(), nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, id domainmessaging.ConversationID, limit, offset int) ([]*domainmessaging.Message, error) {
	opts := options.Find().SetSort(newestFirst)
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{"conversation_id": string(id)}, opts)
}

func (r *MessageRepository) CountByConversation(ctx context.Context, id domainmessaging.ConversationID) (int, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"conversation_id": string(id)})
	return int(n), err
}

func (r *MessageRepository) MarkRead(ctx context.Context, id domainmessaging.MessageID, at time.Time) (*domainmessaging.Message, error) {
	at = at.UTC()
	update := bson.M{"$set": bson.M{"is_read": true, "read_at": at, "updated_at": at}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc messageDocument
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": string(id), "is_read": false}, update, opts).Decode(&doc)
	switch {
	case err == nil:
		return doc.toAggregate(), nil
	case errors.Is(err, mongo.ErrNoDocuments):
		// Already read, or missing.
		return r.ByID(ctx, id)
	default:
		return nil, writeErr(ctx, err)
	}
}

func (r *MessageRepository) MarkAllRead(ctx context.Context, id domainmessaging.ConversationID, reader domainmessaging.UserID, at time.Time) (int, error) {
	at = at.UTC()
	filter := bson.M{
		"conversation_id": string(id),
		"is_read":         false,
		"sender_id":       bson.M{"$ne": string(reader)},
	}
	res, err := r.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"is_read": true, "read_at": at, "updated_at": at}})
	if err != nil {
		return 0, writeErr(ctx, err)
	}
	return int(res.ModifiedCount), nil
}

func (r *MessageRepository) EditContent(ctx context.Context, id domainmessaging.MessageID, content string, at time.Time) (*domainmessaging.Message, error) {
	normalized, err := domainmessaging.NormalizeContent(content)
	if err != nil {
		return nil, err
	}
	at = at.UTC()
	update := bson.M{"$set": bson.M{
		"content":    normalized,
		"is_edited":  true,
		"edited_at":  at,
		"updated_at": at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc messageDocument
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": string(id)}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainmessaging.ErrMessageNotFound
		}
		return nil, writeErr(ctx, err)
	}
	return doc.toAggregate(), nil
}

// Search matches the substring literally; regex metacharacters in the query
// are escaped.
func (r *MessageRepository) Search(ctx context.Context, ids []domainmessaging.ConversationID, substring string, limit int) ([]*domainmessaging.Message, error) {
	needle := strings.TrimSpace(substring)
	if needle == "" || len(ids) == 0 {
		return []*domainmessaging.Message{}, nil
	}
	filter := bson.M{
		"conversation_id": bson.M{"$in": conversationKeys(ids)},
		"content":         primitive.Regex{Pattern: regexp.QuoteMeta(needle), Options: "i"},
	}
	opts := options.Find().SetSort(newestFirst)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

// CountUnreadForUser groups unread messages from others per conversation and
// sums the groups. Callers pass only conversations user belongs to.
func (r *MessageRepository) CountUnreadForUser(ctx context.Context, user domainmessaging.UserID, ids []domainmessaging.ConversationID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"conversation_id": bson.M{"$in": conversationKeys(ids)},
			"is_read":         false,
			"sender_id":       bson.M{"$ne": string(user)},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$conversation_id", "count": bson.M{"$sum": 1}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$count"}}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	var rows []struct {
		Total int `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (r *MessageRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainmessaging.Message, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return lo.Map(docs, func(doc messageDocument, _ int) *domainmessaging.Message {
		return doc.toAggregate()
	}), nil
}

func conversationKeys(ids []domainmessaging.ConversationID) []string {
	return lo.Uniq(lo.Map(ids, func(id domainmessaging.ConversationID, _ int) string { return string(id) }))
}

var _ domainmessaging.MessageRepository = (*MessageRepository)(nil)
