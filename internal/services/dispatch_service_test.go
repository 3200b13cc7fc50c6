package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/menycars/copiloto/internal/models"
	"github.com/menycars/copiloto/internal/providers/brain"
	"github.com/menycars/copiloto/internal/utils"
)

func baseDecision() *brain.Decision {
	return &brain.Decision{
		LeadAction:      brain.LeadUpdate,
		PriorityScore:   70,
		PipelineStage:   brain.StageNegotiating,
		DetectedIntent:  brain.IntentNegotiation,
		ReplyText:       "Tenemos el Corolla 2021 disponible.",
		SuggestedAction: brain.ActionReplyOnly,
		Reasoning:       "cliente pregunta por stock",
	}
}

type dispatchFixture struct {
	repo   *fakeChatRepo
	leads  *fakeLeadService
	tasks  *fakeTaskRepo
	brain  *fakeBrain
	sender *fakeSender
	events []string
	svc    *dispatchService
}

func newDispatchFixture(d *brain.Decision) *dispatchFixture {
	f := &dispatchFixture{
		repo:  newFakeChatRepo(),
		leads: &fakeLeadService{lead: &models.Lead{ID: "lead-1", Phone: "5491155556666"}},
		tasks: &fakeTaskRepo{},
		brain: &fakeBrain{decision: d},
	}
	f.sender = newFakeSender(&f.events)

	f.svc = &dispatchService{
		DispatchDeps: DispatchDeps{
			Chats:            f.repo,
			Leads:            f.leads,
			Tasks:            f.tasks,
			Inventory:        &fakeInventory{},
			Brain:            f.brain,
			Sender:           f.sender,
			Logger:           testLogger(),
			HistoryLimit:     10,
			BrainTimeout:     time.Second,
			MediaSendDelay:   800 * time.Millisecond,
			AppraisalBaseURL: "https://crm.example.com/appraisal",
		},
		sleep: func(ctx context.Context, d time.Duration) {
			f.events = append(f.events, "sleep")
		},
	}
	return f
}

func testSession() *models.ChatSession {
	return &models.ChatSession{
		SessionID:   "chat_5491155556666",
		Phone:       "5491155556666",
		Buffer:      []string{"Hola", "tienen Corolla?"},
		Dispatching: true,
		Version:     4,
	}
}

func TestDispatchSendsMediaBeforeTextInOrder(t *testing.T) {
	d := baseDecision()
	d.ReplyMediaRefs = []string{"https://img/corolla-1.jpg", "https://img/corolla-2.jpg"}
	f := newDispatchFixture(d)

	if err := f.svc.Dispatch(context.Background(), testSession(), "Hola . tienen Corolla?"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	want := []string{
		"media:https://img/corolla-1.jpg",
		"sleep",
		"media:https://img/corolla-2.jpg",
		"sleep",
		"text:" + d.ReplyText,
	}
	if !reflect.DeepEqual(f.events, want) {
		t.Errorf("send order = %v, want %v", f.events, want)
	}
}

func TestDispatchSkipsFailedMediaAndStillReplies(t *testing.T) {
	d := baseDecision()
	d.ReplyMediaRefs = []string{"https://img/broken.jpg", "https://img/ok.jpg"}
	f := newDispatchFixture(d)
	f.sender.mediaErr = map[string]error{"https://img/broken.jpg": errors.New("410 gone")}

	if err := f.svc.Dispatch(context.Background(), testSession(), "fotos?"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(f.sender.media) != 1 || f.sender.media[0] != "https://img/ok.jpg" {
		t.Errorf("media sent = %v", f.sender.media)
	}
	if len(f.sender.texts) != 1 {
		t.Fatalf("text not sent after media failure")
	}

	// only the delivered media is recorded on the assistant entry
	if len(f.repo.completed) != 1 {
		t.Fatalf("expected one completed dispatch")
	}
	got := f.repo.completed[0].entries[1].Media
	if !reflect.DeepEqual(got, []string{"https://img/ok.jpg"}) {
		t.Errorf("persisted media = %v", got)
	}
}

func TestDispatchAppendsAppraisalLink(t *testing.T) {
	d := baseDecision()
	d.SuggestedAction = brain.ActionSendAppraisalLink
	f := newDispatchFixture(d)

	if err := f.svc.Dispatch(context.Background(), testSession(), "cuanto vale mi usado?"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(f.sender.texts) != 1 {
		t.Fatalf("expected one text send")
	}
	want := d.ReplyText + "\nhttps://crm.example.com/appraisal?lead=lead-1"
	if f.sender.texts[0] != want {
		t.Errorf("text = %q, want %q", f.sender.texts[0], want)
	}
}

func TestDispatchCreateTaskAlsoLeavesNote(t *testing.T) {
	d := baseDecision()
	d.SuggestedAction = brain.ActionCreateTask
	d.Reasoning = "quiere pasar a ver el auto el sábado"
	f := newDispatchFixture(d)

	joined := "puedo ir el sábado? . a la tarde"
	if err := f.svc.Dispatch(context.Background(), testSession(), joined); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(f.tasks.tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(f.tasks.tasks))
	}
	task := f.tasks.tasks[0]
	if task.RelatedLeadID != "lead-1" || task.Type != "FollowUp" || task.Description != joined {
		t.Errorf("task = %+v", task)
	}

	if len(f.tasks.notes) != 1 {
		t.Fatalf("expected one note, got %d", len(f.tasks.notes))
	}
	if f.tasks.notes[0].Content != d.Reasoning {
		t.Errorf("note content = %q", f.tasks.notes[0].Content)
	}
}

func TestDispatchCreateNoteOnly(t *testing.T) {
	d := baseDecision()
	d.SuggestedAction = brain.ActionCreateNote
	f := newDispatchFixture(d)

	if err := f.svc.Dispatch(context.Background(), testSession(), "dato suelto"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(f.tasks.tasks) != 0 {
		t.Errorf("note action must not create tasks: %+v", f.tasks.tasks)
	}
	if len(f.tasks.notes) != 1 {
		t.Errorf("expected one note, got %d", len(f.tasks.notes))
	}
}

func TestDispatchBrainFailureHasNoSideEffects(t *testing.T) {
	f := newDispatchFixture(nil)
	f.brain.err = errors.New("deadline exceeded")

	err := f.svc.Dispatch(context.Background(), testSession(), "Hola")
	if !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("expected UNAVAILABLE, got %v", err)
	}

	if f.leads.resolveCalls != 0 {
		t.Error("lead mutated after brain failure")
	}
	if len(f.sender.texts) != 0 || len(f.sender.media) != 0 {
		t.Error("outbound send after brain failure")
	}
	if len(f.repo.completed) != 0 {
		t.Error("history persisted after brain failure")
	}
	if len(f.tasks.tasks) != 0 || len(f.tasks.notes) != 0 {
		t.Error("task/note created after brain failure")
	}
}

func TestDispatchPersistsTurnAndClearsBuffer(t *testing.T) {
	d := baseDecision()
	f := newDispatchFixture(d)
	sess := testSession()
	f.repo.sessions[sess.SessionID] = sess

	joined := "Hola . tienen Corolla?"
	if err := f.svc.Dispatch(context.Background(), sess, joined); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(f.repo.completed) != 1 {
		t.Fatalf("expected one completed dispatch")
	}
	done := f.repo.completed[0]
	if done.leadID != "lead-1" {
		t.Errorf("leadID = %q", done.leadID)
	}
	if len(done.entries) != 2 {
		t.Fatalf("expected user+assistant entries, got %d", len(done.entries))
	}
	if done.entries[0].Role != models.TurnRoleUser || done.entries[0].Content != joined {
		t.Errorf("user entry = %+v", done.entries[0])
	}
	if done.entries[1].Role != models.TurnRoleAssistant || done.entries[1].Content != d.ReplyText {
		t.Errorf("assistant entry = %+v", done.entries[1])
	}
	if done.entries[1].Metadata == nil {
		t.Error("assistant entry should carry the decision metadata")
	}
	if !done.entries[1].Timestamp.After(done.entries[0].Timestamp) {
		t.Error("assistant entry must sort after the user entry")
	}

	stored := f.repo.sessions[sess.SessionID]
	if len(stored.Buffer) != 0 || stored.Dispatching {
		t.Errorf("session not reset: buffer=%v dispatching=%v", stored.Buffer, stored.Dispatching)
	}
}

func TestDispatchFeedsChronologicalHistoryToBrain(t *testing.T) {
	d := baseDecision()
	f := newDispatchFixture(d)
	sess := testSession()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	f.repo.history[sess.SessionID] = []models.TurnEntry{
		{SessionID: sess.SessionID, Role: models.TurnRoleUser, Content: "hola", Timestamp: base},
		{SessionID: sess.SessionID, Role: models.TurnRoleAssistant, Content: "buenas!", Timestamp: base.Add(time.Second)},
	}

	if err := f.svc.Dispatch(context.Background(), sess, "sigo acá"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	want := []string{"CLIENTE: hola", "COPILOTO: buenas!"}
	if !reflect.DeepEqual(f.brain.gotInput.History, want) {
		t.Errorf("history = %v, want %v", f.brain.gotInput.History, want)
	}
	if f.brain.gotInput.Message != "sigo acá" {
		t.Errorf("message = %q", f.brain.gotInput.Message)
	}
}

func TestResolveMediaRefPassesThroughPlainURLs(t *testing.T) {
	f := newDispatchFixture(baseDecision())
	url := "https://img/corolla.jpg"
	if got := f.svc.resolveMediaRef(context.Background(), url); got != url {
		t.Errorf("resolveMediaRef = %q", got)
	}
	// gs:// without a signer falls through untouched
	if got := f.svc.resolveMediaRef(context.Background(), "gs://bucket/obj"); !strings.HasPrefix(got, "gs://") {
		t.Errorf("resolveMediaRef = %q", got)
	}
}
