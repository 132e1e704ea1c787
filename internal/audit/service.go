// Package audit exposes the just-in-time elevation audit trail for querying.
// Entries are written by the policy engine, the session manager and the
// launch service; this package only reads them.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service answers audit queries with sane bounds on paging and time ranges.
type Service struct {
	store  storage.Storage
	logger *slog.Logger
}

func NewService(store storage.Storage, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Query returns one page of audit entries. Page parameters are clamped;
// an unset sort column falls back to timestamp descending so the newest
// activity shows first.
func (s *Service) Query(ctx context.Context, q domain.AuditQuery) (*domain.AuditPage, error) {
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	if q.PageNumber <= 0 {
		q.PageNumber = 1
	}
	if q.SortColumn == "" {
		q.SortColumn = domain.SortByTimestamp
		q.SortDescending = true
	}
	if !q.EndTime.IsZero() && q.EndTime.Before(q.StartTime) {
		return nil, fmt.Errorf("%w: end time precedes start time", domain.ErrInvalidParameter)
	}

	page, err := s.store.QueryAuditEntries(ctx, q)
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		return nil, fmt.Errorf("%w: querying audit log", domain.ErrInternal)
	}
	return page, nil
}

// Get returns a single audit entry by id.
func (s *Service) Get(ctx context.Context, id int64) (*domain.AuditEntry, error) {
	entry, err := s.store.GetAuditEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Record appends an entry, stamping the timestamp if the caller left it zero.
// Append failures are logged but never propagated; an elevation decision must
// not fail because the trail could not be written.
func Record(ctx context.Context, store storage.Storage, logger *slog.Logger, entry *domain.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := store.AppendAuditEntry(ctx, entry); err != nil {
		logger.Error("failed to append audit entry",
			"outcome", entry.Outcome,
			"user", entry.User.Key(),
			"error", err)
	}
}
