package tickets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/apperrors"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/identity"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/logger"
)

// DefaultStatusIndex is the name of the status GSI.
const DefaultStatusIndex = "GSI1"

// Table is the set of store primitives the lifecycle engine composes.
// *Store implements it.
type Table interface {
	PutIfAbsent(ctx context.Context, items ...any) error
	GetByKey(ctx context.Context, key Key, out any) error
	QueryByPartition(ctx context.Context, q Query, out any) error
	UpdateIfMatches(ctx context.Context, updates ...ConditionalUpdate) error
}

// Service is the ticket lifecycle engine. It is the only writer of ticket
// records and owner index entries, and keeps them consistent by writing
// both in one transaction.
type Service struct {
	table       Table
	statusIndex string
	publisher   EventPublisher
	nowFunc     func() time.Time
	newID       func() string
}

// Option configures a Service.
type Option func(*Service)

// WithStatusIndex overrides the status index name.
func WithStatusIndex(name string) Option {
	return func(s *Service) { s.statusIndex = name }
}

// WithPublisher enables lifecycle event publishing.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFunc = now }
}

// WithIDGenerator overrides ticket id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates the lifecycle engine over table.
func NewService(table Table, opts ...Option) *Service {
	s := &Service{
		table:       table,
		statusIndex: DefaultStatusIndex,
		nowFunc:     time.Now,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateTicket validates the input and atomically writes the ticket record
// and its owner index entry. Two calls with identical input create two
// tickets.
func (s *Service) CreateTicket(ctx context.Context, ownerID, title, description string) (*CreateResult, error) {
	if ownerID == "" {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "Missing or invalid auth context")
	}
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateDescription(description); err != nil {
		return nil, err
	}

	ticketID := s.newID()
	createdAt := FormatTime(s.nowFunc())

	rec := NewRecord(ticketID, ownerID, strings.TrimSpace(title), strings.TrimSpace(description), createdAt)
	entry := OwnerEntryFor(rec)

	log := logger.FromContext(ctx).With(zap.String("ticketId", ticketID), zap.String("ownerId", ownerID))

	if err := s.table.PutIfAbsent(ctx, rec, entry); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			// a fresh uuid colliding means the id source is broken
			log.Error("ticket id collision", zap.Error(err))
		} else {
			log.Error("create ticket failed", zap.Error(err))
		}
		return nil, apperrors.Wrap(err, apperrors.KindServerError, "Failed to create ticket")
	}

	s.publish(ctx, Event{
		Type:       EventTicketCreated,
		TicketID:   ticketID,
		OwnerID:    ownerID,
		ToStatus:   StatusOpen,
		CreatedAt:  createdAt,
		OccurredAt: createdAt,
	})

	return &CreateResult{TicketID: ticketID, Status: StatusOpen, CreatedAt: createdAt}, nil
}

// ListOwnerTickets returns every ticket of ownerID, newest first.
func (s *Service) ListOwnerTickets(ctx context.Context, ownerID string) ([]Summary, error) {
	if ownerID == "" {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "Missing or invalid auth context")
	}

	var entries []OwnerEntry
	err := s.table.QueryByPartition(ctx, Query{
		PartitionAttr:  AttrPK,
		PartitionValue: OwnerPartition(ownerID),
		SortAttr:       AttrSK,
		SortPrefix:     ticketPrefix,
		Descending:     true,
	}, &entries)
	if err != nil {
		logger.FromContext(ctx).Error("list owner tickets failed", zap.String("ownerId", ownerID), zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.KindServerError, "Failed to list tickets")
	}

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		out = append(out, Summary{
			TicketID:  e.TicketID,
			Status:    e.Status,
			CreatedAt: e.CreatedAt,
			Title:     e.Title,
		})
	}
	return out, nil
}

// ListTicketsByStatus returns every ticket currently in status, across all
// owners, newest first. Callers restrict it to agents.
func (s *Service) ListTicketsByStatus(ctx context.Context, status string) ([]Summary, error) {
	st, ok := ParseStatus(status)
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidInput, "Missing or invalid status. Use OPEN, IN_PROGRESS, or RESOLVED")
	}

	var records []Record
	err := s.table.QueryByPartition(ctx, Query{
		Index:          s.statusIndex,
		PartitionAttr:  AttrGSI1PK,
		PartitionValue: StatusPartition(st),
		SortAttr:       AttrGSI1SK,
		SortPrefix:     createdPrefix,
		Descending:     true,
	}, &records)
	if err != nil {
		logger.FromContext(ctx).Error("list tickets by status failed", zap.String("status", string(st)), zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.KindServerError, "Failed to list tickets by status")
	}

	out := make([]Summary, 0, len(records))
	for _, r := range records {
		out = append(out, Summary{
			TicketID:  r.TicketID,
			OwnerID:   r.OwnerID,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
			Title:     r.Title,
		})
	}
	return out, nil
}

// GetTicket returns one ticket to its owner or to an agent. Other callers get
// NotFound so ticket ids cannot be probed.
func (s *Service) GetTicket(ctx context.Context, ticketID string, viewer identity.Identity) (*Ticket, error) {
	if viewer.SubjectID == "" {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "Missing or invalid auth context")
	}
	rec, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != viewer.SubjectID && !viewer.IsAgent() {
		return nil, apperrors.New(apperrors.KindNotFound, "Ticket not found")
	}
	t := rec.Ticket()
	return &t, nil
}

// TransitionStatus moves a ticket one step along the workflow. The ticket
// record and its owner index entry are rewritten in one transaction guarded
// on the status read here; losing a race yields ConcurrentModification.
func (s *Service) TransitionStatus(ctx context.Context, ticketID, requested string) (*TransitionResult, error) {
	next, ok := ParseStatus(requested)
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidInput, "Missing or invalid status. Use OPEN, IN_PROGRESS, or RESOLVED")
	}

	rec, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if err := CheckTransition(rec.Status, next); err != nil {
		return nil, err
	}

	updatedAt := FormatTime(s.nowFunc())
	if updatedAt < rec.CreatedAt {
		// clock skew between invocations must not produce updatedAt < createdAt
		updatedAt = rec.CreatedAt
	}

	log := logger.FromContext(ctx).With(
		zap.String("ticketId", rec.TicketID),
		zap.String("from", string(rec.Status)),
		zap.String("to", string(next)),
	)

	err = s.table.UpdateIfMatches(ctx,
		ConditionalUpdate{
			Key: TicketKey(rec.TicketID),
			Set: map[string]any{
				AttrStatus:    next,
				AttrGSI1PK:    StatusPartition(next),
				AttrGSI1SK:    StatusSort(rec.CreatedAt, rec.TicketID),
				AttrUpdatedAt: updatedAt,
			},
			ExpectAttr: AttrStatus,
			Expected:   rec.Status,
		},
		ConditionalUpdate{
			Key:        OwnerKey(rec.OwnerID, rec.CreatedAt, rec.TicketID),
			Set:        map[string]any{AttrStatus: next},
			ExpectAttr: AttrStatus,
			Expected:   rec.Status,
		},
	)
	if err != nil {
		if errors.Is(err, ErrConditionFailed) {
			log.Warn("status transition lost a concurrent update", zap.Error(err))
			return nil, apperrors.Wrap(err, apperrors.KindConcurrentModification,
				"Status update rejected (concurrent update); re-read the ticket and retry")
		}
		log.Error("status transition failed", zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.KindServerError, "Failed to update ticket status")
	}

	s.publish(ctx, Event{
		Type:       EventStatusChanged,
		TicketID:   rec.TicketID,
		OwnerID:    rec.OwnerID,
		FromStatus: rec.Status,
		ToStatus:   next,
		CreatedAt:  rec.CreatedAt,
		OccurredAt: updatedAt,
	})

	return &TransitionResult{TicketID: rec.TicketID, Status: next, UpdatedAt: updatedAt}, nil
}

func (s *Service) load(ctx context.Context, ticketID string) (*Record, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, "Missing ticketId path parameter")
	}
	var rec Record
	if err := s.table.GetByKey(ctx, TicketKey(ticketID), &rec); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "Ticket not found")
		}
		logger.FromContext(ctx).Error("read ticket failed", zap.String("ticketId", ticketID), zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.KindServerError, "Failed to read ticket")
	}
	return &rec, nil
}

// publish is best effort: the mutation has already committed, so a delivery
// failure is logged and the caller still sees success.
func (s *Service) publish(ctx context.Context, ev Event) {
	if s.publisher == nil {
		return
	}
	ev.EventID = uuid.NewString()
	ev.RequestID = logger.RequestID(ctx)
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logger.FromContext(ctx).Warn("publish lifecycle event failed",
			zap.String("eventType", string(ev.Type)),
			zap.String("ticketId", ev.TicketID),
			zap.Error(err),
		)
	}
}
