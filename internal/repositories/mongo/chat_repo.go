package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/menycars/copiloto/internal/models"
	"github.com/menycars/copiloto/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChatRepository owns the per-sender session documents and their turn
// history. Buffer mutations are single atomic ops against the store:
// two webhook deliveries for the same phone may run concurrently and
// coordinate only through this record.
type ChatRepository interface {
	// AppendInbound atomically appends a message to the session buffer,
	// creating the session on first contact. Returns the post-update doc.
	AppendInbound(ctx context.Context, sessionID, phone, origin, text string, at time.Time) (*models.ChatSession, error)
	Get(ctx context.Context, sessionID string) (*models.ChatSession, error)
	// ClaimDispatch is a compare-and-swap on (version, dispatching=false,
	// non-empty buffer). Exactly one concurrent caller wins; losers get
	// claimed=false with no error.
	ClaimDispatch(ctx context.Context, sessionID string, version int64) (*models.ChatSession, bool, error)
	// CompleteDispatch appends the turn's history entries and clears the
	// buffer/flag in one transaction, so history is never written with
	// the buffer left uncleared.
	CompleteDispatch(ctx context.Context, sessionID, leadID string, entries []models.TurnEntry) error
	// ReleaseDispatch clears the buffer and resets the flag after a
	// failed dispatch so the session never stays stuck dispatching.
	ReleaseDispatch(ctx context.Context, sessionID string) error
	// RecentHistory returns up to limit entries, newest first.
	RecentHistory(ctx context.Context, sessionID string, limit int64) ([]models.TurnEntry, error)
}

type chatRepo struct {
	sessions *mongo.Collection
	history  *mongo.Collection
}

func NewChatRepo(db *mongo.Database) ChatRepository {
	return &chatRepo{
		sessions: db.Collection("chat_sessions"),
		history:  db.Collection("chat_history"),
	}
}

func (r *chatRepo) AppendInbound(ctx context.Context, sessionID, phone, origin, text string, at time.Time) (*models.ChatSession, error) {
	update := bson.M{
		"$push": bson.M{"buffer": text},
		"$set": bson.M{
			"last_message_at": at.UnixMilli(),
			"dispatching":     false,
			"updated_at":      at.UTC(),
		},
		"$inc": bson.M{"version": 1},
		"$setOnInsert": bson.M{
			"phone":          phone,
			"origin_context": origin,
			"created_at":     at.UTC(),
		},
	}

	res := r.sessions.FindOneAndUpdate(ctx,
		bson.M{"session_id": sessionID},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)

	var s models.ChatSession
	if err := res.Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *chatRepo) Get(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var s models.ChatSession
	err := r.sessions.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *chatRepo) ClaimDispatch(ctx context.Context, sessionID string, version int64) (*models.ChatSession, bool, error) {
	filter := bson.M{
		"session_id":  sessionID,
		"version":     version,
		"dispatching": false,
		"buffer.0":    bson.M{"$exists": true},
	}
	update := bson.M{
		"$set": bson.M{"dispatching": true, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}

	res := r.sessions.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))

	var s models.ChatSession
	err := res.Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

func (r *chatRepo) CompleteDispatch(ctx context.Context, sessionID, leadID string, entries []models.TurnEntry) error {
	docs := make([]any, 0, len(entries))
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = now
		}
		entries[i].SessionID = sessionID
		docs = append(docs, entries[i])
	}

	set := bson.M{"buffer": []string{}, "dispatching": false, "updated_at": now}
	if leadID != "" {
		set["lead_id"] = leadID
	}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}

	sess, err := r.sessions.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if len(docs) > 0 {
			if _, err := r.history.InsertMany(sc, docs); err != nil {
				return nil, err
			}
		}
		if _, err := r.sessions.UpdateOne(sc, bson.M{"session_id": sessionID}, update); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (r *chatRepo) ReleaseDispatch(ctx context.Context, sessionID string) error {
	_, err := r.sessions.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{
			"$set": bson.M{"buffer": []string{}, "dispatching": false, "updated_at": time.Now().UTC()},
			"$inc": bson.M{"version": 1},
		},
	)
	return err
}

func (r *chatRepo) RecentHistory(ctx context.Context, sessionID string, limit int64) ([]models.TurnEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	cur, err := r.history.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TurnEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
