// Package workflow holds the asset registry and the allocation,
// maintenance and intake workflows. Every operation runs in one store
// transaction and re-checks its preconditions under row locks.
package workflow

import (
	"context"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Actor is the verified caller as delivered by the identity provider.
type Actor struct {
	UserID string
	Name   string
	Role   models.Role
}

// Event is published after a transition commits.
type Event struct {
	Entity     string    `json:"entity"`
	EntityID   string    `json:"entityId"`
	Action     string    `json:"action"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	MaterielID string    `json:"materielId,omitempty"`
	ActorID    string    `json:"actorId,omitempty"`
	At         time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type Deps struct {
	Store  store.Store
	Log    zerolog.Logger
	Events Publisher         // optional
	Now    func() time.Time // defaults to time.Now
}

type base struct {
	st  store.Store
	log zerolog.Logger
	pub Publisher
	now func() time.Time
}

func newBase(d Deps, component string) base {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return base{st: d.Store, log: d.Log.With().Str("component", component).Logger(), pub: d.Events, now: now}
}

// txn is one unit of work: the store transaction plus the transitions
// recorded in it.
type txn struct {
	store.Tx
	actor  Actor
	now    time.Time
	events []Event
}

// transition writes the audit row for a state change and queues its event.
func (t *txn) transition(entity, id, action, from, to, materielID, reason string) error {
	l := &models.TransitionLog{
		ID:         uuid.NewString(),
		Entity:     entity,
		EntityID:   id,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    t.actor.UserID,
		ActorName:  t.actor.Name,
		CreatedAt:  t.now,
	}
	if reason != "" {
		l.Reason = &reason
	}
	if err := t.LogTransition(l); err != nil {
		return err
	}
	t.events = append(t.events, Event{
		Entity: entity, EntityID: id, Action: action, From: from, To: to,
		MaterielID: materielID, ActorID: t.actor.UserID, At: t.now,
	})
	return nil
}

func (b *base) do(ctx context.Context, op string, actor Actor, fn func(*txn) error) error {
	t := &txn{actor: actor, now: b.now().UTC()}
	err := b.st.Tx(ctx, func(tx store.Tx) error {
		t.Tx = tx
		t.events = t.events[:0]
		return fn(t)
	})
	if err != nil {
		ev := b.log.Warn()
		if KindOf(err) == "" {
			ev = b.log.Error()
		}
		ev.Err(err).Str("op", op).Str("actor", actor.UserID).Msg("operation failed")
		return err
	}
	for _, e := range t.events {
		b.log.Info().Str("op", op).Str("entity", e.Entity).Str("id", e.EntityID).
			Str("from", e.From).Str("to", e.To).Str("actor", actor.UserID).Msg("transition")
		if b.pub != nil {
			b.pub.Publish(ctx, e)
		}
	}
	return nil
}

// read runs fn in a transaction that records nothing.
func (b *base) read(ctx context.Context, fn func(store.Tx) error) error {
	return b.st.Tx(ctx, fn)
}

func (b *base) clock() time.Time { return b.now().UTC() }

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Page is a list result.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

func pageOf[T any](rows []T, total int64, p store.Page) Page[T] {
	p = p.Normalize()
	return Page[T]{Items: rows, Total: total, Page: p.Page, Size: p.Size}
}

// refs resolves display references inside an open transaction.
type refs struct {
	tx       store.Tx
	users    map[string]*models.UserRef
	materiel map[string]*models.MaterielRef
}

func newRefs(tx store.Tx) *refs {
	return &refs{tx: tx, users: map[string]*models.UserRef{}, materiel: map[string]*models.MaterielRef{}}
}

func (r *refs) user(id string) *models.UserRef {
	if id == "" {
		return nil
	}
	if u, ok := r.users[id]; ok {
		return u
	}
	var ref *models.UserRef
	if u, err := r.tx.FindUser(id); err == nil {
		ref = u.Ref()
	}
	r.users[id] = ref
	return ref
}

func (r *refs) userPtr(id *string) *models.UserRef {
	if id == nil {
		return nil
	}
	return r.user(*id)
}

func (r *refs) asset(id string) *models.MaterielRef {
	if id == "" {
		return nil
	}
	if m, ok := r.materiel[id]; ok {
		return m
	}
	var ref *models.MaterielRef
	if m, err := r.tx.FindMateriel(id); err == nil {
		ref = m.Ref()
	}
	r.materiel[id] = ref
	return ref
}
