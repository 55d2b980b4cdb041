package bookingService

import (
	"VoiceBooking/internal/api/bookings"
	bookingRepository "VoiceBooking/internal/api/bookings/repository"
	"VoiceBooking/internal/entity"
	"VoiceBooking/pkg/notify"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// memBookingRepo holds one calendar. A transactional client owns txMu until it commits or rolls
// back, like the advisory lock, and its writes only become visible on commit.
type memBookingRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	calls    map[string]entity.Call
	bookings []entity.Booking

	listErr error
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{calls: map[string]entity.Call{}}
}

func (r *memBookingRepo) addCall(id, from string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[id] = entity.Call{
		ID:          id,
		FromAddress: from,
		Status:      entity.CallStatusBooking,
		Stage:       entity.StageDone,
	}
}

func (r *memBookingRepo) addConfirmed(callID string, start time.Time, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = append(r.bookings, entity.Booking{
		ID:        fmt.Sprintf("seed-%d", len(r.bookings)),
		CallID:    callID,
		StartTime: start,
		EndTime:   start.Add(d),
		Status:    entity.BookingStatusConfirmed,
	})
}

func (r *memBookingRepo) call(id string) entity.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

func (r *memBookingRepo) all() []entity.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]entity.Booking(nil), r.bookings...)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r *memBookingRepo) confirmed() []entity.Booking {
	var out []entity.Booking
	for _, b := range r.all() {
		if b.Status == entity.BookingStatusConfirmed {
			out = append(out, b)
		}
	}
	return out
}

func (r *memBookingRepo) NewClient(tx bool) (bookingRepository.Client, error) {
	if !tx {
		return bookingRepository.Client{}, errors.New("booking fakes only support transactions")
	}

	r.txMu.Lock()
	t := &memTx{repo: r, finished: map[string]entity.CallStatus{}}

	var once sync.Once
	release := func() { once.Do(r.txMu.Unlock) }

	return bookingRepository.Client{
		Bookings: t,
		Calls:    t,
		Commit: func() error {
			t.apply()
			release()
			return nil
		},
		Rollback: func() error {
			release()
			return nil
		},
	}, nil
}

type memTx struct {
	repo     *memBookingRepo
	applied  bool
	created  []entity.Booking
	finished map[string]entity.CallStatus
}

func (t *memTx) apply() {
	if t.applied {
		return
	}
	t.applied = true

	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.bookings = append(t.repo.bookings, t.created...)
	for id, status := range t.finished {
		c := t.repo.calls[id]
		c.Status = status
		c.Stage = entity.StageDone
		t.repo.calls[id] = c
	}
}

func (t *memTx) visible() []entity.Booking {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	return append(append([]entity.Booking(nil), t.repo.bookings...), t.created...)
}

func (t *memTx) LockCalendar(context.Context) error { return nil }

func (t *memTx) CreateBooking(_ context.Context, booking entity.Booking) error {
	if booking.Status == entity.BookingStatusConfirmed {
		for _, b := range t.visible() {
			if b.Status != entity.BookingStatusConfirmed {
				continue
			}
			if b.CallID == booking.CallID {
				return bookings.ErrAlreadyBooked
			}
			if b.Overlaps(booking.StartTime, booking.EndTime) {
				return bookings.ErrSlotTaken
			}
		}
	}
	t.created = append(t.created, booking)
	return nil
}

func (t *memTx) GetConfirmedByCall(_ context.Context, callID string) (entity.Booking, error) {
	for _, b := range t.visible() {
		if b.CallID == callID && b.Status == entity.BookingStatusConfirmed {
			return b, nil
		}
	}
	return entity.Booking{}, bookings.ErrBookingNotFound
}

func (t *memTx) ListConfirmedOverlapping(_ context.Context, start, end time.Time) ([]entity.Booking, error) {
	if t.repo.listErr != nil {
		return nil, t.repo.listErr
	}

	var out []entity.Booking
	for _, b := range t.visible() {
		if b.Status == entity.BookingStatusConfirmed && b.Overlaps(start, end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *memTx) GetCallByID(_ context.Context, id string) (entity.Call, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	c, ok := t.repo.calls[id]
	if !ok {
		return entity.Call{}, bookings.ErrCallNotFound
	}
	if status, ok := t.finished[id]; ok {
		c.Status = status
		c.Stage = entity.StageDone
	}
	return c, nil
}

func (t *memTx) FinishCall(_ context.Context, id string, status entity.CallStatus) error {
	t.repo.mu.Lock()
	_, ok := t.repo.calls[id]
	t.repo.mu.Unlock()

	if !ok {
		return bookings.ErrCallNotFound
	}
	t.finished[id] = status
	return nil
}

// fixedParser resolves only the expressions it was given.
type fixedParser map[string]time.Time

func (p fixedParser) Parse(text string, _ time.Time) (time.Time, bool) {
	t, ok := p[text]
	return t, ok
}

type memNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *memNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *memNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type memDedup struct {
	mu   sync.Mutex
	keys map[string]string
}

func (d *memDedup) SetOnce(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys == nil {
		d.keys = map[string]string{}
	}
	if _, ok := d.keys[key]; ok {
		return false, nil
	}
	d.keys[key] = value
	return true, nil
}

func (d *memDedup) Close() error { return nil }

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (a *memArchive) UploadJSON(_ context.Context, key string, body []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = body
	return "s3://test/" + key, nil
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (u *seqIDs) NewULIDFromTimestamp(time.Time) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.n++
	return fmt.Sprintf("bk-%04d", u.n), nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
