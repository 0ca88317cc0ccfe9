// Package servicetest provides in-memory repositories for service and
// handler tests.
package servicetest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"dbmlviewer/internal/models"
)

// Diagrams implements services.DiagramRepository.
type Diagrams struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]models.Diagram
	clock time.Time

	// When set, GetByIDAndOwner signals Entered and then waits on Release.
	Entered chan struct{}
	Release chan struct{}
}

func NewDiagrams() *Diagrams {
	return &Diagrams{rows: map[uuid.UUID]models.Diagram{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *Diagrams) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *Diagrams) Create(_ context.Context, d *models.Diagram) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.Prepare()
	d.CreatedAt = m.tick()
	d.UpdatedAt = d.CreatedAt
	m.rows[d.ID] = *d
	return nil
}

func (m *Diagrams) GetByIDAndOwner(_ context.Context, id, ownerID uuid.UUID) (*models.Diagram, error) {
	if m.Entered != nil {
		m.Entered <- struct{}{}
		<-m.Release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok || d.OwnerID != ownerID {
		return nil, nil
	}
	return &d, nil
}

func (m *Diagrams) ListByOwner(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Diagram, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Diagram
	for _, d := range m.rows {
		if d.OwnerID == ownerID {
			all = append(all, d)
		}
	}
	slices.SortFunc(all, func(a, b models.Diagram) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)
	return append([]models.Diagram{}, all[offset:end]...), total, nil
}

func (m *Diagrams) Update(_ context.Context, d *models.Diagram) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.rows[d.ID]
	if !ok || old.OwnerID != d.OwnerID {
		return false, nil
	}
	d.UpdatedAt = m.tick()
	m.rows[d.ID] = *d
	return true, nil
}

func (m *Diagrams) Delete(_ context.Context, id, ownerID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok || d.OwnerID != ownerID {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

// Users implements services.UserRepository.
type Users struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*models.User
	Logins int
}

func NewUsers() *Users { return &Users{byID: map[uuid.UUID]*models.User{}} }

func (m *Users) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Prepare()
	u.CreatedAt = time.Now()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *Users) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *Users) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Users) TouchLastLogin(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logins++
	return nil
}

// Sessions implements services.SessionStore.
type Sessions struct {
	mu        sync.Mutex
	sessions  map[string]string
	blacklist map[string]bool
}

func NewSessions() *Sessions {
	return &Sessions{sessions: map[string]string{}, blacklist: map[string]bool{}}
}

func (m *Sessions) StoreSession(_ context.Context, jti, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[jti] = userID
	return nil
}

func (m *Sessions) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blacklist[jti], nil
}

func (m *Sessions) Blacklist(_ context.Context, jti string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklist[jti] = true
	delete(m.sessions, jti)
	return nil
}

// Active reports whether jti has a live session.
func (m *Sessions) Active(jti string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[jti]
	return ok
}

// Len is the number of stored diagrams.
func (m *Diagrams) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
