package services

import (
	"context"
	"errors"

	"github.com/menycars/copiloto/internal/models"
	"github.com/menycars/copiloto/internal/providers/embedding"
	mongorepo "github.com/menycars/copiloto/internal/repositories/mongo"
	postgresrepo "github.com/menycars/copiloto/internal/repositories/postgres"
	"github.com/menycars/copiloto/internal/utils"
)

// ChatService is the read side for the CRM frontend: session lookup,
// turn history and semantic search over past conversations.
type ChatService interface {
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	History(ctx context.Context, sessionID string, limit int64) ([]models.TurnEntry, error)
	SearchConversations(ctx context.Context, query string, limit int) ([]models.ConversationLog, error)
}

type chatService struct {
	chats    mongorepo.ChatRepository
	convs    postgresrepo.ConversationRepo
	embedder embedding.Embedder
}

func NewChatService(chats mongorepo.ChatRepository, convs postgresrepo.ConversationRepo, embedder embedding.Embedder) ChatService {
	return &chatService{chats: chats, convs: convs, embedder: embedder}
}

func (s *chatService) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	const op = "ChatService.GetSession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.chats.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return out, nil
}

func (s *chatService) History(ctx context.Context, sessionID string, limit int64) ([]models.TurnEntry, error) {
	const op = "ChatService.History"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	rows, err := s.chats.RecentHistory(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list history", err)
	}
	// repo returns newest first; the chat view wants chronological order
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (s *chatService) SearchConversations(ctx context.Context, query string, limit int) ([]models.ConversationLog, error) {
	const op = "ChatService.SearchConversations"

	if query == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "query is required", nil)
	}
	if s.embedder == nil || s.convs == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "conversation search is not configured", nil)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to embed query", err)
	}
	rows, err := s.convs.SearchSimilar(ctx, vec, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to search conversations", err)
	}
	return rows, nil
}
