package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/menycars/copiloto/internal/models"
	"github.com/menycars/copiloto/internal/providers/brain"
	"github.com/menycars/copiloto/internal/providers/embedding"
	"github.com/menycars/copiloto/internal/providers/whatsapp"
	mongorepo "github.com/menycars/copiloto/internal/repositories/mongo"
	postgresrepo "github.com/menycars/copiloto/internal/repositories/postgres"
	"github.com/menycars/copiloto/internal/storage"
	"github.com/menycars/copiloto/internal/utils"
)

// DispatchService runs one coalesced turn end to end: context assembly,
// brain invocation, lead upsert, action side effects, outbound sends
// and history persistence.
type DispatchService interface {
	Dispatch(ctx context.Context, sess *models.ChatSession, joinedText string) error
}

type DispatchDeps struct {
	Chats     mongorepo.ChatRepository
	Leads     LeadService
	Tasks     postgresrepo.TaskRepo
	Convs     postgresrepo.ConversationRepo
	Inventory InventoryService
	Brain     brain.Provider
	Sender    whatsapp.Sender
	Embedder  embedding.Embedder
	Media     storage.Signer
	Redis     *redis.Client
	Logger    *logrus.Logger

	HistoryLimit     int64
	BrainTimeout     time.Duration
	MediaSendDelay   time.Duration
	AppraisalBaseURL string
}

type dispatchService struct {
	DispatchDeps

	// test seam; defaults to time.Sleep bounded by ctx
	sleep func(ctx context.Context, d time.Duration)
}

func NewDispatchService(deps DispatchDeps) DispatchService {
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = 10
	}
	if deps.BrainTimeout <= 0 {
		deps.BrainTimeout = 25 * time.Second
	}
	if deps.MediaSendDelay <= 0 {
		deps.MediaSendDelay = 800 * time.Millisecond
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return &dispatchService{DispatchDeps: deps, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *dispatchService) Dispatch(ctx context.Context, sess *models.ChatSession, joinedText string) error {
	const op = "DispatchService.Dispatch"

	log := s.Logger.WithFields(logrus.Fields{
		"session_id": sess.SessionID,
		"phone":      sess.Phone,
	})

	// 1. chronological history, rendered with role labels
	recent, err := s.Chats.RecentHistory(ctx, sess.SessionID, s.HistoryLimit)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load history", err)
	}
	history := renderHistory(recent)

	// 2. bounded inventory snapshot
	inventory, err := s.Inventory.Snapshot(ctx)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load inventory", err)
	}

	// prior lead snapshot for the brain; absence is not an error
	var prior *models.Lead
	if sess.LeadID != "" {
		if l, err := s.Leads.Get(ctx, sess.LeadID); err == nil {
			prior = l
		}
	}

	// 3. brain invocation, bounded
	brainCtx, cancel := context.WithTimeout(ctx, s.BrainTimeout)
	defer cancel()

	decision, err := s.Brain.Decide(brainCtx, brain.TurnInput{
		Lead:          prior,
		History:       history,
		Inventory:     inventory,
		Message:       joinedText,
		OriginContext: sess.OriginContext,
	})
	if err != nil {
		// no lead/task/note mutation and no outbound send for this turn
		return utils.E(utils.CodeUnavailable, op, "brain invocation failed", err)
	}

	// 4. lead resolution
	lead, err := s.Leads.Resolve(ctx, sess.Phone, sess, decision)
	if err != nil {
		return err
	}

	// 5. action side effects
	finalText := decision.ReplyText
	switch decision.SuggestedAction {
	case brain.ActionSendAppraisalLink:
		finalText = finalText + "\n" + s.AppraisalBaseURL + "?lead=" + lead.ID
	case brain.ActionCreateTask:
		if err := s.createFollowUpTask(ctx, lead.ID, joinedText); err != nil {
			return err
		}
		if err := s.createNote(ctx, lead.ID, decision.Reasoning); err != nil {
			return err
		}
	case brain.ActionCreateNote:
		if err := s.createNote(ctx, lead.ID, decision.Reasoning); err != nil {
			return err
		}
	case brain.ActionReplyOnly, brain.ActionOpenCalculator,
		brain.ActionSendSpecSheet, brain.ActionSendFullCatalog:
		// media/reply carry the whole effect; recorded in turn metadata
	}

	// 6. outbound: media first, in order, spaced out; then the text
	sentMedia := s.sendMedia(ctx, sess.Phone, decision.ReplyMediaRefs, log)
	if err := s.Sender.SendText(ctx, sess.Phone, finalText); err != nil {
		log.WithError(err).Error("outbound text send failed")
	}

	// 7. history + buffer clear in one batch
	meta := decisionMetadata(decision)
	now := time.Now().UTC()
	entries := []models.TurnEntry{
		{Role: models.TurnRoleUser, Content: joinedText, Timestamp: now},
		{Role: models.TurnRoleAssistant, Content: finalText, Media: sentMedia, Metadata: meta, Timestamp: now.Add(time.Millisecond)},
	}
	if err := s.Chats.CompleteDispatch(ctx, sess.SessionID, lead.ID, entries); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to persist turn", err)
	}

	s.publishTurnEvent(ctx, sess.SessionID, lead.ID, decision, finalText)
	s.logConversation(ctx, sess.SessionID, lead.ID, joinedText, finalText, decision)

	log.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"intent":  decision.DetectedIntent,
		"action":  decision.SuggestedAction,
		"media":   len(sentMedia),
	}).Info("turn dispatched")
	return nil
}

func (s *dispatchService) createFollowUpTask(ctx context.Context, leadID, turnText string) error {
	const op = "DispatchService.createFollowUpTask"

	task := &models.Task{
		ID:            uuid.NewString(),
		Title:         "Seguimiento de visita",
		Description:   turnText,
		Date:          time.Now().UTC(),
		Priority:      "Medium",
		Type:          "FollowUp",
		RelatedLeadID: leadID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Tasks.CreateTask(ctx, task); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to create task", err)
	}
	return nil
}

func (s *dispatchService) createNote(ctx context.Context, leadID, content string) error {
	const op = "DispatchService.createNote"

	note := &models.LeadNote{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Tasks.CreateNote(ctx, note); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to create note", err)
	}
	return nil
}

// sendMedia sends each ref as its own message, in list order, with a
// fixed delay between sends so the gateway delivers them in order.
// Send failures are logged and skipped; they never roll back the turn.
func (s *dispatchService) sendMedia(ctx context.Context, to string, refs []string, log *logrus.Entry) []string {
	var sent []string
	for i, ref := range refs {
		if i > 0 {
			s.sleep(ctx, s.MediaSendDelay)
		}
		resolved := s.resolveMediaRef(ctx, ref)
		if err := s.Sender.SendMedia(ctx, to, resolved); err != nil {
			log.WithError(err).WithField("media", ref).Warn("media send failed")
			continue
		}
		sent = append(sent, resolved)
	}
	if len(refs) > 0 {
		s.sleep(ctx, s.MediaSendDelay)
	}
	return sent
}

// resolveMediaRef turns gs:// object refs into signed HTTP URLs the
// gateway can fetch. Plain URLs pass through untouched.
func (s *dispatchService) resolveMediaRef(ctx context.Context, ref string) string {
	if s.Media == nil || !strings.HasPrefix(ref, "gs://") {
		return ref
	}
	object := strings.TrimPrefix(ref, "gs://")
	if i := strings.IndexByte(object, '/'); i >= 0 {
		object = object[i+1:]
	}
	signed, err := s.Media.SignedGetURL(ctx, object, 24*time.Hour)
	if err != nil {
		s.Logger.WithError(err).WithField("media", ref).Warn("media sign failed, sending raw ref")
		return ref
	}
	return signed
}

func (s *dispatchService) publishTurnEvent(ctx context.Context, sessionID, leadID string, d *brain.Decision, finalText string) {
	if s.Redis == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"type":       "turn_dispatched",
		"session_id": sessionID,
		"lead_id":    leadID,
		"intent":     d.DetectedIntent,
		"action":     d.SuggestedAction,
		"reply":      finalText,
	})
	_ = s.Redis.Publish(ctx, "chat:"+sessionID+":events", string(payload)).Err()
}

// logConversation mirrors the turn into Postgres with embeddings,
// best-effort: the dispatch already succeeded.
func (s *dispatchService) logConversation(ctx context.Context, sessionID, leadID, userText, replyText string, d *brain.Decision) {
	if s.Convs == nil || s.Embedder == nil {
		return
	}

	meta, _ := json.Marshal(d)
	now := time.Now().UTC()
	rows := []models.ConversationLog{
		{ID: uuid.NewString(), LeadID: leadID, SessionID: sessionID, Role: models.TurnRoleUser, Content: userText, Timestamp: now},
		{ID: uuid.NewString(), LeadID: leadID, SessionID: sessionID, Role: models.TurnRoleAssistant, Content: replyText, Timestamp: now.Add(time.Millisecond), Metadata: meta},
	}

	for i := range rows {
		vec, err := s.Embedder.Embed(ctx, rows[i].Content)
		if err != nil {
			s.Logger.WithError(err).Warn("embedding failed, skipping conversation log")
			return
		}
		rows[i].Embedding = pgvector.NewVector(vec)
		if err := s.Convs.Insert(ctx, &rows[i]); err != nil {
			s.Logger.WithError(err).Warn("conversation log insert failed")
			return
		}
	}
}

func renderHistory(recent []models.TurnEntry) []string {
	// repo returns newest first; brain wants chronological order
	out := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		label := "CLIENTE"
		if recent[i].Role == models.TurnRoleAssistant {
			label = "COPILOTO"
		}
		out = append(out, label+": "+recent[i].Content)
	}
	return out
}

func decisionMetadata(d *brain.Decision) bson.M {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var m bson.M
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
