package callService

import (
	"VoiceBooking/internal/api/calls"
	callRepository "VoiceBooking/internal/api/calls/repository"
	"VoiceBooking/internal/entity"
	"VoiceBooking/pkg/queue"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// memCallRepo serializes transactional clients the way the row lock does in postgres.
type memCallRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	byID       map[string]entity.Call
	byExternal map[string]string
}

func newMemCallRepo() *memCallRepo {
	return &memCallRepo{
		byID:       map[string]entity.Call{},
		byExternal: map[string]string{},
	}
}

func (r *memCallRepo) NewClient(tx bool) (callRepository.Client, error) {
	release := func() error { return nil }
	if tx {
		r.txMu.Lock()
		var once sync.Once
		release = func() error {
			once.Do(r.txMu.Unlock)
			return nil
		}
	}

	return callRepository.Client{
		Calls:    &memCallStore{repo: r},
		Commit:   release,
		Rollback: release,
	}, nil
}

func (r *memCallRepo) get(id string) entity.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

func (r *memCallRepo) getByExternal(externalID string) entity.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[r.byExternal[externalID]]
}

func (r *memCallRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type memCallStore struct {
	repo *memCallRepo
}

func (s *memCallStore) UpsertOnStart(_ context.Context, call entity.Call, reset bool) (entity.Call, bool, error) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	if id, ok := s.repo.byExternal[call.ExternalID]; ok {
		existing := s.repo.byID[id]
		existing.FromAddress = call.FromAddress
		existing.ToAddress = call.ToAddress
		if reset {
			existing.Status = call.Status
			existing.Stage = call.Stage
			existing.Slots = call.Slots
		}
		s.repo.byID[id] = existing
		return existing, false, nil
	}

	s.repo.byID[call.ID] = call
	s.repo.byExternal[call.ExternalID] = call.ID
	return call, true, nil
}

func (s *memCallStore) CreateCall(_ context.Context, call entity.Call) error {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	if call.ExternalID != "" {
		if _, ok := s.repo.byExternal[call.ExternalID]; ok {
			return errors.New("duplicate external id")
		}
		s.repo.byExternal[call.ExternalID] = call.ID
	}
	s.repo.byID[call.ID] = call
	return nil
}

func (s *memCallStore) EnsureCall(ctx context.Context, call entity.Call) error {
	s.repo.mu.Lock()
	_, exists := s.repo.byExternal[call.ExternalID]
	s.repo.mu.Unlock()

	if exists {
		return nil
	}
	return s.CreateCall(ctx, call)
}

func (s *memCallStore) GetCallByIDForUpdate(_ context.Context, id string) (entity.Call, error) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	call, ok := s.repo.byID[id]
	if !ok {
		return entity.Call{}, calls.ErrCallNotFound
	}
	return call, nil
}

func (s *memCallStore) GetCallByExternalIDForUpdate(_ context.Context, externalID string) (entity.Call, error) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	id, ok := s.repo.byExternal[externalID]
	if !ok {
		return entity.Call{}, calls.ErrCallNotFound
	}
	return s.repo.byID[id], nil
}

func (s *memCallStore) UpdateCall(_ context.Context, call entity.Call) error {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	existing, ok := s.repo.byID[call.ID]
	if !ok {
		return calls.ErrCallNotFound
	}
	existing.Stage = call.Stage
	existing.Slots = call.Slots
	existing.LastUtterance = call.LastUtterance
	existing.UpdatedAt = time.Now().UTC()
	s.repo.byID[call.ID] = existing
	return nil
}

func (s *memCallStore) MarkBooking(_ context.Context, id string) (bool, error) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	existing, ok := s.repo.byID[id]
	if !ok {
		return false, nil
	}
	if existing.Status != entity.CallStatusInitiated && existing.Status != entity.CallStatusInDialog {
		return false, nil
	}
	existing.Status = entity.CallStatusBooking
	s.repo.byID[id] = existing
	return true, nil
}

type memQueue struct {
	mu       sync.Mutex
	payloads []queue.BookingPayload
	err      error
}

func (q *memQueue) EnqueueBooking(_ context.Context, payload queue.BookingPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.err != nil {
		return q.err
	}
	q.payloads = append(q.payloads, payload)
	return nil
}

func (q *memQueue) Close() error { return nil }

func (q *memQueue) enqueued() []queue.BookingPayload {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.BookingPayload(nil), q.payloads...)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (u *seqIDs) NewULIDFromTimestamp(time.Time) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.n++
	return fmt.Sprintf("call-%03d", u.n), nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
