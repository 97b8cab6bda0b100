package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// Repository is the persistence contract for audit events.
// It is append-only: there are no Update or Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Service records operator actions. Callers treat it as best-effort and never fail a
// request because the audit write failed.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" || e.Subject == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogTaskTrigger records a manual run of a scheduler task.
func (s *Service) LogTaskTrigger(ctx context.Context, subject, role, ip, task string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeTaskTrigger,
		Subject:   subject,
		Role:      role,
		IPAddress: ip,
		Task:      task,
		Message:   "task triggered",
	})
}

func (s *Service) LogTokenRefresh(ctx context.Context, subject, role, ip string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeTokenRefresh,
		Subject:   subject,
		Role:      role,
		IPAddress: ip,
		Message:   "token pair refreshed",
	})
}

// Recent clamps limit to [1, MaxRecentLimit]; zero means DefaultRecentLimit.
func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}
	return s.repo.Recent(ctx, limit)
}
