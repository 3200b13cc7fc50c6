package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/menycars/copiloto/internal/utils"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestCoalescer(repo *fakeChatRepo, disp *fakeDispatcher, sender *fakeSender, clock *fakeClock) *coalescerService {
	return &coalescerService{
		chats:       repo,
		dispatcher:  disp,
		sender:      sender,
		logger:      testLogger(),
		quietPeriod: 3500 * time.Millisecond,
		tolerance:   3000 * time.Millisecond,
		now:         clock.Now,
		sleep:       func(ctx context.Context, d time.Duration) { clock.Advance(d) },
	}
}

func TestHandleInboundCoalescesBurstIntoOneTurn(t *testing.T) {
	ctx := context.Background()
	repo := newFakeChatRepo()
	disp := &fakeDispatcher{}
	sender := newFakeSender(nil)
	clock := newFakeClock()
	svc := newTestCoalescer(repo, disp, sender, clock)

	phone := "5491155556666"
	sid := SessionIDFor(phone)

	// during the first invocation's quiet period a second message lands
	// (its own invocation is still mid-wait and never shown here)
	call := 0
	svc.sleep = func(ctx context.Context, d time.Duration) {
		call++
		if call == 1 {
			clock.Advance(time.Second)
			if _, err := repo.AppendInbound(ctx, sid, phone, "whatsapp", "quiero info", clock.Now()); err != nil {
				t.Fatalf("append: %v", err)
			}
			clock.Advance(d - time.Second)
			return
		}
		clock.Advance(d)
	}

	if err := svc.HandleInbound(ctx, phone, "Hola", "whatsapp"); err != nil {
		t.Fatalf("first invocation: %v", err)
	}
	if len(disp.calls) != 0 {
		t.Fatalf("superseded invocation dispatched: %+v", disp.calls)
	}

	if err := svc.HandleInbound(ctx, phone, "del Corolla", "whatsapp"); err != nil {
		t.Fatalf("last invocation: %v", err)
	}

	if len(disp.calls) != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", len(disp.calls))
	}
	want := "Hola . quiero info . del Corolla"
	if got := disp.calls[0].joined; got != want {
		t.Errorf("joined turn = %q, want %q", got, want)
	}
	if !disp.calls[0].sess.Dispatching {
		t.Error("dispatched session should carry the claimed flag")
	}
}

func TestHandleInboundAbortsWhenNewerMessageArrives(t *testing.T) {
	ctx := context.Background()
	repo := newFakeChatRepo()
	disp := &fakeDispatcher{}
	clock := newFakeClock()
	svc := newTestCoalescer(repo, disp, newFakeSender(nil), clock)

	phone := "5491155556666"
	sid := SessionIDFor(phone)

	svc.sleep = func(ctx context.Context, d time.Duration) {
		clock.Advance(d)
		// lands right at the end of the wait
		if _, err := repo.AppendInbound(ctx, sid, phone, "whatsapp", "y otra cosa", clock.Now()); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := svc.HandleInbound(ctx, phone, "Hola", "whatsapp"); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if len(disp.calls) != 0 {
		t.Fatalf("expected no dispatch, got %d", len(disp.calls))
	}

	sess, err := repo.Get(ctx, sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(sess.Buffer) != 2 {
		t.Errorf("buffer should keep both messages, got %v", sess.Buffer)
	}
}

func TestHandleInboundAbortsWhenDispatchInProgress(t *testing.T) {
	ctx := context.Background()
	repo := newFakeChatRepo()
	disp := &fakeDispatcher{}
	clock := newFakeClock()
	svc := newTestCoalescer(repo, disp, newFakeSender(nil), clock)

	phone := "5491155556666"
	sid := SessionIDFor(phone)

	svc.sleep = func(ctx context.Context, d time.Duration) {
		clock.Advance(d)
		// another invocation claims the session while we slept
		repo.mu.Lock()
		s := repo.sessions[sid]
		s.Dispatching = true
		s.Version++
		repo.mu.Unlock()
	}

	if err := svc.HandleInbound(ctx, phone, "Hola", "whatsapp"); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if len(disp.calls) != 0 {
		t.Fatalf("expected no dispatch while another is in progress, got %d", len(disp.calls))
	}
}

func TestHandleInboundLosesClaimRace(t *testing.T) {
	ctx := context.Background()
	repo := newFakeChatRepo()
	disp := &fakeDispatcher{}
	clock := newFakeClock()
	svc := newTestCoalescer(repo, disp, newFakeSender(nil), clock)

	phone := "5491155556666"
	sid := SessionIDFor(phone)

	// the session mutates between the re-read and the claim: the stale
	// version must lose the CAS
	repo.afterGet = func() {
		repo.mu.Lock()
		if s, ok := repo.sessions[sid]; ok {
			s.Version++
		}
		repo.mu.Unlock()
	}

	if err := svc.HandleInbound(ctx, phone, "Hola", "whatsapp"); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if len(disp.calls) != 0 {
		t.Fatalf("stale claim must not dispatch, got %d dispatches", len(disp.calls))
	}
}

func TestHandleInboundDispatchFailureUnlocksAndNotifies(t *testing.T) {
	ctx := context.Background()
	repo := newFakeChatRepo()
	disp := &fakeDispatcher{err: errors.New("model exploded: quota exceeded")}
	sender := newFakeSender(nil)
	clock := newFakeClock()
	svc := newTestCoalescer(repo, disp, sender, clock)

	phone := "5491155556666"
	sid := SessionIDFor(phone)

	err := svc.HandleInbound(ctx, phone, "Hola", "whatsapp")
	if err == nil {
		t.Fatal("expected dispatch error to propagate")
	}

	if len(repo.released) != 1 || repo.released[0] != sid {
		t.Errorf("session not released after failure: %v", repo.released)
	}
	sess, gerr := repo.Get(ctx, sid)
	if gerr != nil {
		t.Fatalf("get session: %v", gerr)
	}
	if sess.Dispatching || len(sess.Buffer) != 0 {
		t.Errorf("session left locked or buffered: dispatching=%v buffer=%v", sess.Dispatching, sess.Buffer)
	}

	if len(sender.texts) != 1 {
		t.Fatalf("expected one error notice, got %d", len(sender.texts))
	}
	if sender.texts[0] != genericErrorReply {
		t.Errorf("notice = %q, want generic reply", sender.texts[0])
	}
	if strings.Contains(sender.texts[0], "quota") {
		t.Error("raw error leaked to the end user")
	}
}

func TestHandleInboundRejectsEmptyInput(t *testing.T) {
	svc := newTestCoalescer(newFakeChatRepo(), &fakeDispatcher{}, newFakeSender(nil), newFakeClock())

	if err := svc.HandleInbound(context.Background(), "", "hola", ""); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Errorf("empty phone: got %v", err)
	}
	if err := svc.HandleInbound(context.Background(), "549", "", ""); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Errorf("empty text: got %v", err)
	}
}

func TestSessionIDFor(t *testing.T) {
	if got := SessionIDFor("5491155556666"); got != "chat_5491155556666" {
		t.Errorf("SessionIDFor = %q", got)
	}
}
