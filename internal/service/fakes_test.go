package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ezlevup/supportdesk/config"
	"github.com/ezlevup/supportdesk/internal/kafka"
	"github.com/ezlevup/supportdesk/internal/models"
	"github.com/ezlevup/supportdesk/pkg/redis"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
}

// In-memory stand-ins for the Redis repositories. Get returns a copy so
// callers mutating the result do not change the store until Update, the
// same visibility the real store gives.

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session

	createErr error
	getErr    error
	updateErr error
	countErr  error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.Session)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, ss *models.Session) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ss
	r.sessions[ss.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) Get(ctx context.Context, ssID string) (*models.Session, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ss, ok := r.sessions[ssID]
	if !ok {
		return nil, redis.Nil
	}
	cp := *ss
	return &cp, nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, ss *models.Session) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[ss.ID]; !ok {
		return redis.Nil
	}
	cp := *ss
	r.sessions[ss.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) Exists(ctx context.Context, ssID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[ssID]
	return ok, nil
}

func (r *fakeSessionRepo) FindByStatus(ctx context.Context, status models.SessionStatus) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Session
	for _, ss := range r.sessions {
		if ss.Status == status {
			cp := *ss
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeSessionRepo) FindActiveByOperator(ctx context.Context, operator string) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Session
	for _, ss := range r.sessions {
		if ss.IsActive() && ss.OperatorID == operator {
			cp := *ss
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSessionRepo) CountActiveByOperator(ctx context.Context, operator string) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	sessions, _ := r.FindActiveByOperator(ctx, operator)
	return int64(len(sessions)), nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
	order []string

	getErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Username]; !ok {
		r.order = append(r.order, u.Username)
	}
	cp := *u
	r.users[u.Username] = &cp
	return nil
}

func (r *fakeUserRepo) Get(ctx context.Context, username string) (*models.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return nil, redis.Nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Username]; !ok {
		return redis.Nil
	}
	cp := *u
	r.users[u.Username] = &cp
	return nil
}

func (r *fakeUserRepo) Exists(ctx context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[username]
	return ok, nil
}

// FindAvailableOperators preserves registration order, matching the
// online-since ordering of the real store.
func (r *fakeUserRepo) FindAvailableOperators(ctx context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, username := range r.order {
		u := r.users[username]
		if u.IsAvailable() {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*models.Message

	appendErr error
}

func (r *fakeMessageRepo) Append(ctx context.Context, m *models.Message) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *fakeMessageRepo) List(ctx context.Context, ssID string) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.messages {
		if m.SessionID == ssID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeProducer struct {
	mu       sync.Mutex
	created  []kafka.SessionCreatedEvent
	assigned []kafka.SessionAssignedEvent
	ended    []kafka.SessionEndedEvent
}

func (p *fakeProducer) PublishSessionCreated(ctx context.Context, e kafka.SessionCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *fakeProducer) PublishSessionAssigned(ctx context.Context, e kafka.SessionAssignedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigned = append(p.assigned, e)
	return nil
}

func (p *fakeProducer) PublishSessionEnded(ctx context.Context, e kafka.SessionEndedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = append(p.ended, e)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) endedEvents() []kafka.SessionEndedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]kafka.SessionEndedEvent, len(p.ended))
	copy(out, p.ended)
	return out
}
