package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	mongorepo "github.com/menycars/copiloto/internal/repositories/mongo"
	"github.com/menycars/copiloto/internal/providers/whatsapp"
	"github.com/menycars/copiloto/internal/utils"
)

const (
	turnSeparator = " . "
	// Never the raw error: the sender is an end customer.
	genericErrorReply = "Disculpá, tuve un problema técnico. ¿Me lo repetís?"
)

// CoalescerService buffers rapid consecutive messages from one sender
// into a single logical turn and dispatches it exactly once per quiet
// period. Concurrent webhook deliveries for the same sender coordinate
// only through the session document.
type CoalescerService interface {
	HandleInbound(ctx context.Context, phone, text, origin string) error
}

type coalescerService struct {
	chats      mongorepo.ChatRepository
	dispatcher DispatchService
	sender     whatsapp.Sender
	logger     *logrus.Logger

	quietPeriod time.Duration
	tolerance   time.Duration

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewCoalescerService(chats mongorepo.ChatRepository, dispatcher DispatchService, sender whatsapp.Sender, logger *logrus.Logger, quietPeriod, tolerance time.Duration) CoalescerService {
	if quietPeriod <= 0 {
		quietPeriod = 3500 * time.Millisecond
	}
	if tolerance <= 0 {
		tolerance = 3000 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &coalescerService{
		chats:       chats,
		dispatcher:  dispatcher,
		sender:      sender,
		logger:      logger,
		quietPeriod: quietPeriod,
		tolerance:   tolerance,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

func SessionIDFor(phone string) string { return "chat_" + phone }

func (s *coalescerService) HandleInbound(ctx context.Context, phone, text, origin string) error {
	const op = "CoalescerService.HandleInbound"

	if phone == "" || text == "" {
		return utils.E(utils.CodeInvalidArgument, op, "phone and text are required", nil)
	}

	sessionID := SessionIDFor(phone)
	log := s.logger.WithFields(logrus.Fields{"session_id": sessionID})

	// 1. atomic read-or-create + buffer append
	if _, err := s.chats.AppendInbound(ctx, sessionID, phone, origin, text, s.now()); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to buffer message", err)
	}

	// 2. quiet period; per-invocation, other senders are unaffected
	s.sleep(ctx, s.quietPeriod)

	// 3. supersession check: if a newer message landed while we slept,
	// its own wait cycle owns the dispatch
	sess, err := s.chats.Get(ctx, sessionID)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to re-read session", err)
	}
	if s.now().Sub(time.UnixMilli(sess.LastMessageAt)) < s.tolerance {
		log.Debug("newer message arrived during quiet period, aborting")
		return nil
	}

	// 4. someone else is mid-dispatch
	if sess.Dispatching {
		log.Debug("dispatch already in progress, aborting")
		return nil
	}
	if len(sess.Buffer) == 0 {
		return nil
	}

	// 5. CAS claim; exactly one concurrent invocation wins
	claimed, ok, err := s.chats.ClaimDispatch(ctx, sessionID, sess.Version)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to claim dispatch", err)
	}
	if !ok {
		log.Debug("lost dispatch claim race, aborting")
		return nil
	}

	joined := strings.Join(claimed.Buffer, turnSeparator)

	if err := s.dispatcher.Dispatch(ctx, claimed, joined); err != nil {
		log.WithError(err).Error("dispatch failed")
		// unlock the session whatever happened; the turn is dropped, the
		// next inbound message starts fresh
		if rerr := s.chats.ReleaseDispatch(ctx, sessionID); rerr != nil {
			log.WithError(rerr).Error("failed to release session after dispatch failure")
		}
		if serr := s.sender.SendText(ctx, phone, genericErrorReply); serr != nil {
			log.WithError(serr).Warn("failed to send error notice")
		}
		return err
	}
	return nil
}
