package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/menycars/copiloto/internal/models"
	"github.com/menycars/copiloto/internal/providers/brain"
	"github.com/menycars/copiloto/internal/utils"
)

// fakeClock is a manually advanced clock shared between the service
// under test and the fake sleep.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type completedDispatch struct {
	sessionID string
	leadID    string
	entries   []models.TurnEntry
}

// fakeChatRepo mirrors the store's atomic semantics in memory,
// including the version CAS on the dispatch claim.
type fakeChatRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
	history  map[string][]models.TurnEntry

	completed []completedDispatch
	released  []string

	// runs after Get snapshots the session, before the caller sees it;
	// lets a test inject concurrent mutations behind a stale read
	afterGet func()
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		sessions: make(map[string]*models.ChatSession),
		history:  make(map[string][]models.TurnEntry),
	}
}

func (r *fakeChatRepo) AppendInbound(ctx context.Context, sessionID, phone, origin, text string, at time.Time) (*models.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		s = &models.ChatSession{
			SessionID:     sessionID,
			Phone:         phone,
			OriginContext: origin,
			CreatedAt:     at.UTC(),
		}
		r.sessions[sessionID] = s
	}
	s.Buffer = append(s.Buffer, text)
	s.LastMessageAt = at.UnixMilli()
	s.Dispatching = false
	s.Version++
	s.UpdatedAt = at.UTC()

	cp := *s
	return &cp, nil
}

func (r *fakeChatRepo) Get(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil, utils.ErrNotFound
	}
	cp := *s
	cp.Buffer = append([]string(nil), s.Buffer...)
	hook := r.afterGet
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &cp, nil
}

func (r *fakeChatRepo) ClaimDispatch(ctx context.Context, sessionID string, version int64) (*models.ChatSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.Version != version || s.Dispatching || len(s.Buffer) == 0 {
		return nil, false, nil
	}
	s.Dispatching = true
	s.Version++

	cp := *s
	cp.Buffer = append([]string(nil), s.Buffer...)
	return &cp, true, nil
}

func (r *fakeChatRepo) CompleteDispatch(ctx context.Context, sessionID, leadID string, entries []models.TurnEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history[sessionID] = append(r.history[sessionID], entries...)
	if s, ok := r.sessions[sessionID]; ok {
		s.Buffer = nil
		s.Dispatching = false
		s.Version++
		if leadID != "" {
			s.LeadID = leadID
		}
	}
	r.completed = append(r.completed, completedDispatch{sessionID: sessionID, leadID: leadID, entries: entries})
	return nil
}

func (r *fakeChatRepo) ReleaseDispatch(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		s.Buffer = nil
		s.Dispatching = false
		s.Version++
	}
	r.released = append(r.released, sessionID)
	return nil
}

func (r *fakeChatRepo) RecentHistory(ctx context.Context, sessionID string, limit int64) ([]models.TurnEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := append([]models.TurnEntry(nil), r.history[sessionID]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.After(rows[j].Timestamp) })
	if limit > 0 && int64(len(rows)) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type dispatchCall struct {
	sess   *models.ChatSession
	joined string
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, sess *models.ChatSession, joinedText string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{sess: sess, joined: joinedText})
	return d.err
}

// fakeSender records outbound sends in order on a shared event log so
// tests can assert ordering against the sleep seam.
type fakeSender struct {
	mu       sync.Mutex
	events   *[]string
	texts    []string
	media    []string
	textErr  error
	mediaErr map[string]error
}

func newFakeSender(events *[]string) *fakeSender {
	return &fakeSender{events: events}
}

func (s *fakeSender) record(ev string) {
	if s.events != nil {
		*s.events = append(*s.events, ev)
	}
}

func (s *fakeSender) SendText(ctx context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.textErr != nil {
		return s.textErr
	}
	s.texts = append(s.texts, text)
	s.record("text:" + text)
	return nil
}

func (s *fakeSender) SendMedia(ctx context.Context, to, mediaURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.mediaErr[mediaURL]; ok {
		return err
	}
	s.media = append(s.media, mediaURL)
	s.record("media:" + mediaURL)
	return nil
}

type fakeBrain struct {
	decision *brain.Decision
	err      error
	calls    int
	gotInput brain.TurnInput
}

func (b *fakeBrain) Decide(ctx context.Context, in brain.TurnInput) (*brain.Decision, error) {
	b.calls++
	b.gotInput = in
	if b.err != nil {
		return nil, b.err
	}
	return b.decision, nil
}

func (b *fakeBrain) Close() error { return nil }

type fakeLeadService struct {
	lead         *models.Lead
	err          error
	resolveCalls int
}

func (f *fakeLeadService) Resolve(ctx context.Context, phone string, sess *models.ChatSession, d *brain.Decision) (*models.Lead, error) {
	f.resolveCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.lead, nil
}

func (f *fakeLeadService) Get(ctx context.Context, id string) (*models.Lead, error) {
	if f.lead != nil && f.lead.ID == id {
		return f.lead, nil
	}
	return nil, utils.ErrNotFound
}

type fakeTaskRepo struct {
	tasks []models.Task
	notes []models.LeadNote
}

func (f *fakeTaskRepo) CreateTask(ctx context.Context, task *models.Task) error {
	f.tasks = append(f.tasks, *task)
	return nil
}

func (f *fakeTaskRepo) CreateNote(ctx context.Context, note *models.LeadNote) error {
	f.notes = append(f.notes, *note)
	return nil
}

func (f *fakeTaskRepo) ListByLead(ctx context.Context, leadID string, limit int) ([]models.Task, error) {
	return f.tasks, nil
}

type fakeInventory struct {
	snapshot []brain.VehicleSummary
}

func (f *fakeInventory) Snapshot(ctx context.Context) ([]brain.VehicleSummary, error) {
	return f.snapshot, nil
}

func (f *fakeInventory) List(ctx context.Context, limit int) ([]models.Vehicle, error) {
	return nil, nil
}

func (f *fakeInventory) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	return nil, utils.ErrNotFound
}

func (f *fakeInventory) AddPhoto(ctx context.Context, id, photoURL string) (*models.Vehicle, error) {
	return nil, utils.ErrNotFound
}

type fakeConvRepo struct {
	rows      []models.ConversationLog
	lastQuery []float32
}

func (f *fakeConvRepo) Insert(ctx context.Context, log *models.ConversationLog) error {
	f.rows = append(f.rows, *log)
	return nil
}

func (f *fakeConvRepo) LatestBySession(ctx context.Context, sessionID string, limit int) ([]models.ConversationLog, error) {
	return f.rows, nil
}

func (f *fakeConvRepo) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]models.ConversationLog, error) {
	f.lastQuery = embedding
	return f.rows, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) Close() error { return nil }
