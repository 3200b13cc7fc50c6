package postgres

import (
	"context"

	"github.com/menycars/copiloto/internal/models"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepo interface {
	Insert(ctx context.Context, log *models.ConversationLog) error
	LatestBySession(ctx context.Context, sessionID string, limit int) ([]models.ConversationLog, error)
	// SearchSimilar orders by cosine distance to the query embedding.
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]models.ConversationLog, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Insert(ctx context.Context, log *models.ConversationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *conversationRepo) LatestBySession(ctx context.Context, sessionID string, limit int) ([]models.ConversationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.ConversationLog
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *conversationRepo) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]models.ConversationLog, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.ConversationLog
	err := r.db.WithContext(ctx).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:  "embedding <=> ?",
			Vars: []any{pgvector.NewVector(embedding)},
		}}).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
