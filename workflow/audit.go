package workflow

import (
	"context"
	"strings"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"
)

// Audit reads the transition log.
type Audit struct{ base }

func NewAudit(d Deps) *Audit { return &Audit{newBase(d, "audit")} }

func (s *Audit) List(ctx context.Context, q store.TransitionQuery) (Page[models.TransitionLog], error) {
	var out Page[models.TransitionLog]
	err := s.read(ctx, func(tx store.Tx) error {
		rows, total, err := tx.ListTransitions(q)
		if err != nil {
			return err
		}
		out = pageOf(rows, total, q.Page)
		return nil
	})
	return out, err
}

// Users keeps the local copy of identities seen in verified tokens.
type Users struct{ base }

func NewUsers(d Deps) *Users { return &Users{newBase(d, "users")} }

// Provision upserts the caller so display references resolve. The token is
// the source of truth; local edits are overwritten.
func (s *Users) Provision(ctx context.Context, a Actor, email string) error {
	const op = "user.provision"
	if a.UserID == "" {
		return invalid(op, "missing subject")
	}
	u := &models.User{ID: a.UserID, Name: a.Name, Email: strings.ToLower(strings.TrimSpace(email)), Role: a.Role}
	if u.Email == "" {
		u.Email = a.UserID + "@local"
	}
	if u.Name == "" {
		u.Name = u.Email
	}
	err := s.st.Tx(ctx, func(tx store.Tx) error { return tx.UpsertUser(u) })
	return uniq(op, "email already belongs to another user", err)
}

func (s *Users) Get(ctx context.Context, id string) (*models.User, error) {
	const op = "user.get"
	var out *models.User
	err := s.read(ctx, func(tx store.Tx) error {
		u, err := tx.FindUser(id)
		if err != nil {
			return miss(op, "user", err)
		}
		out = u
		return nil
	})
	return out, err
}

// Touch stamps the user's last-seen time.
func (s *Users) Touch(ctx context.Context, id string) error {
	at := s.clock()
	return s.st.Tx(ctx, func(tx store.Tx) error { return tx.TouchUserSeen(id, at) })
}
