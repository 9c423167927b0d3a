// Package session implements Component I: the Session Resolver. Grounded on
// the teacher's session lookup helpers (internal/hivemind/service/agents/store)
// applied to spec §4.I's reuse-by-substring-match rule.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/soulgraph/internal/companion/clock"
	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/store/durable"
)

// Resolver resolves (user, role) to a live session, reusing the most recent
// match or creating a new one (spec §4.I).
type Resolver struct {
	db  *durable.DB
	clk *clock.Clock
	// now overrides the clock in tests; production reads clk so session
	// timestamps carry the configured civil zone (spec §4.A).
	now func() time.Time
}

// New builds a Session Resolver against the civil clock.
func New(db *durable.DB, clk *clock.Clock) *Resolver {
	return &Resolver{db: db, clk: clk}
}

func (r *Resolver) currentTime(ctx context.Context) time.Time {
	if r.now != nil {
		return r.now()
	}
	return r.clk.Now(ctx)
}

// Resolved is the outcome of Resolve: the session plus its current durable
// message count, as spec §4.I step 2 requires ("Return it with its message
// count").
type Resolved struct {
	Session      *domain.Session
	MessageCount int
	Created      bool
}

// Resolve implements spec §4.I's three-step rule.
func (r *Resolver) Resolve(ctx context.Context, userName, roleID, roleName string, forceNew bool) (*Resolved, error) {
	if forceNew {
		s, err := r.create(ctx, userName, roleID, fmt.Sprintf("new conversation with %s", roleName))
		if err != nil {
			return nil, err
		}
		return &Resolved{Session: s, Created: true}, nil
	}

	sessions, err := r.db.ListSessionsByUser(ctx, userName)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if strings.Contains(s.Title, roleName) || strings.Contains(s.Title, roleID) {
			msgs, err := r.db.ListMessagesBySession(ctx, s.SessionID)
			if err != nil {
				return nil, err
			}
			return &Resolved{Session: s, MessageCount: len(msgs)}, nil
		}
	}

	s, err := r.create(ctx, userName, roleID, fmt.Sprintf("conversation with %s", roleName))
	if err != nil {
		return nil, err
	}
	return &Resolved{Session: s, Created: true}, nil
}

func (r *Resolver) create(ctx context.Context, userName, roleID, title string) (*domain.Session, error) {
	now := r.currentTime(ctx)
	s := &domain.Session{
		SessionID:     uuid.NewString(),
		UserName:      userName,
		RoleID:        roleID,
		Title:         title,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if err := r.db.PutSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
