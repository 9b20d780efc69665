package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

const maxMessageLen = 4000

type SupportService struct {
	db     port.SupportRepository
	events port.EventPublisher
	logger *zap.Logger
}

func NewSupportService(db port.SupportRepository, events port.EventPublisher, logger *zap.Logger) *SupportService {
	return &SupportService{
		db:     db,
		events: publisherOrNop(events),
		logger: logger.With(zap.String("component", "support")),
	}
}

type OpenThreadInput struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Concierge bool   `json:"concierge"`
}

// ThreadView is a thread with its messages in posting order.
type ThreadView struct {
	domain.SupportThread
	Messages []domain.SupportMessage `json:"messages"`
}

func (s *SupportService) OpenThread(ctx context.Context, actor domain.Actor, in OpenThreadInput) (*ThreadView, error) {
	if actor.ID == "" {
		return nil, domain.ErrForbidden
	}
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is required", domain.ErrValidation)
	}
	t := now()
	thread := domain.SupportThread{
		ID:        newID(),
		UserID:    actor.ID,
		Subject:   subject,
		Concierge: in.Concierge,
		Status:    domain.ThreadStatusOpen,
		CreatedAt: t,
		UpdatedAt: t,
	}
	if err := s.db.CreateThread(ctx, thread); err != nil {
		return nil, err
	}
	view := &ThreadView{SupportThread: thread}
	if strings.TrimSpace(in.Body) != "" {
		msgs, err := s.post(ctx, actor, thread, in.Body)
		if err != nil {
			return nil, err
		}
		view.Messages = msgs
	}
	return view, nil
}

// PostMessage appends to an open thread. On concierge threads a buyer's
// message gets an immediate canned reply, which is returned with it.
func (s *SupportService) PostMessage(ctx context.Context, actor domain.Actor, threadID, body string) ([]domain.SupportMessage, error) {
	thread, err := s.authorised(ctx, actor, threadID)
	if err != nil {
		return nil, err
	}
	if thread.Status != domain.ThreadStatusOpen {
		return nil, fmt.Errorf("%w: thread is closed", domain.ErrInvalidTransition)
	}
	return s.post(ctx, actor, *thread, body)
}

func (s *SupportService) post(ctx context.Context, actor domain.Actor, thread domain.SupportThread, body string) ([]domain.SupportMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: body is required", domain.ErrValidation)
	}
	if len(body) > maxMessageLen {
		return nil, fmt.Errorf("%w: body longer than %d bytes", domain.ErrValidation, maxMessageLen)
	}
	role := actor.Role
	if !role.Valid() {
		role = domain.RoleBuyer
	}

	msg := domain.SupportMessage{
		ID:         newID(),
		ThreadID:   thread.ID,
		SenderID:   actor.ID,
		SenderRole: role,
		Body:       body,
		CreatedAt:  now(),
	}
	if err := s.db.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	out := []domain.SupportMessage{msg}
	s.publish(ctx, thread, msg)

	if thread.Concierge && role == domain.RoleBuyer {
		reply := domain.SupportMessage{
			ID:         newID(),
			ThreadID:   thread.ID,
			SenderID:   ConciergeName,
			SenderRole: domain.RoleConcierge,
			Body:       ConciergeReply(body),
			// keeps the reply strictly after the question when clocks are coarse
			CreatedAt: msg.CreatedAt.Add(time.Microsecond),
		}
		if err := s.db.AddMessage(ctx, reply); err != nil {
			s.logger.Error("concierge reply failed", zap.String("thread_id", thread.ID), zap.Error(err))
			return out, nil
		}
		out = append(out, reply)
		s.publish(ctx, thread, reply)
	}
	return out, nil
}

func (s *SupportService) authorised(ctx context.Context, actor domain.Actor, threadID string) (*domain.SupportThread, error) {
	thread, err := s.db.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.UserID != actor.ID && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return thread, nil
}

func (s *SupportService) GetThread(ctx context.Context, actor domain.Actor, threadID string) (*ThreadView, error) {
	thread, err := s.authorised(ctx, actor, threadID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.db.ListMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return &ThreadView{SupportThread: *thread, Messages: msgs}, nil
}

// ListThreads returns the caller's own threads, or every thread for admins.
func (s *SupportService) ListThreads(ctx context.Context, actor domain.Actor, filter domain.ThreadFilter) ([]domain.SupportThread, error) {
	if !actor.IsAdmin() {
		filter.UserID = actor.ID
	}
	return s.db.ListThreads(ctx, filter)
}

func (s *SupportService) CloseThread(ctx context.Context, actor domain.Actor, threadID string) (*domain.SupportThread, error) {
	thread, err := s.authorised(ctx, actor, threadID)
	if err != nil {
		return nil, err
	}
	if thread.Status == domain.ThreadStatusClosed {
		return thread, nil
	}
	if err := s.db.UpdateThreadStatus(ctx, threadID, domain.ThreadStatusClosed); err != nil {
		return nil, err
	}
	thread.Status = domain.ThreadStatusClosed
	thread.UpdatedAt = now()
	return thread, nil
}

func (s *SupportService) publish(ctx context.Context, thread domain.SupportThread, msg domain.SupportMessage) {
	s.events.Publish(ctx, domain.Event{
		Type:     domain.EventSupportMessage,
		BuyerID:  thread.UserID,
		EntityID: thread.ID,
		Data:     msg,
		At:       msg.CreatedAt,
	})
}
