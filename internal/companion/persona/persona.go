// Package persona implements Component C: loading the per-role static identity
// and caching it in memory for the lifetime of the process. Grounded on the
// teacher's read-mostly, copy-on-load treatment of entity.Agent (spec §5
// "Persona store: read-mostly, copy-on-load — no locking after startup").
package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kiosk404/soulgraph/internal/companion/coderr"
	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/domain"
)

// Descriptor is the seed record a role is registered with before its persona
// text is loaded from disk. It carries only the role's id, name, age and
// initial mood; the Life outline fields of spec §3 (title, birthday, life,
// wealth, theme) are not part of it.
type Descriptor struct {
	RoleID      string
	RoleName    string
	Age         int
	InitialMood domain.Mood
}

// Store loads and caches Persona values by role_id. Immutable after load: once
// a Persona is resolved it is never mutated, matching spec §4.C.
type Store struct {
	paths config.PathsConfig

	mu     sync.RWMutex
	loaded map[string]*domain.Persona
}

// New creates an empty Store rooted at the configured persona path.
func New(paths config.PathsConfig) *Store {
	return &Store{paths: paths, loaded: make(map[string]*domain.Persona)}
}

// personaPath mirrors spec §6: "<persona_root>/<role_id>_L0_prompt.txt".
func (s *Store) personaPath(roleID string) string {
	return filepath.Join(s.paths.PersonaRoot, roleID+"_L0_prompt.txt")
}

// summaryPath mirrors spec §6: "<summary_root>/<role_id>/<role_name>_summary.txt".
func (s *Store) summaryPath(roleID, roleName string) string {
	return filepath.Join(s.paths.SummaryRoot, roleID, roleName+"_summary.txt")
}

// Load resolves a role's Persona, reading its persona text blob from disk.
// Failure to read a role-specific persona is fatal (spec §4.C): no generic
// default is ever substituted, because the character's identity *is* the
// persona text.
func (s *Store) Load(desc Descriptor) (*domain.Persona, error) {
	s.mu.RLock()
	if p, ok := s.loaded[desc.RoleID]; ok {
		s.mu.RUnlock()
		return p, nil
	}
	s.mu.RUnlock()

	path := s.personaPath(desc.RoleID)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, coderr.New(coderr.ErrPersonaMissing,
			fmt.Sprintf("role %q: persona text unreadable at %s: %v", desc.RoleID, path, err))
	}

	p := &domain.Persona{
		RoleID:      desc.RoleID,
		RoleName:    desc.RoleName,
		Age:         desc.Age,
		PersonaText: string(raw),
		InitialMood: desc.InitialMood,
		PersonaPath: path,
		SummaryPath: s.summaryPath(desc.RoleID, desc.RoleName),
		PlotRoot:    s.paths.PlotRoot,
	}

	s.mu.Lock()
	s.loaded[desc.RoleID] = p
	s.mu.Unlock()
	return p, nil
}

// RoleIDs returns every role_id currently loaded in this process, used by the
// Life-Story State Machine's purge step ("for every role") to enumerate known
// roles without a separate registry.
func (s *Store) RoleIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.loaded))
	for id := range s.loaded {
		out = append(out, id)
	}
	return out
}

// Get returns an already-loaded Persona, or ErrRoleNotConfigured if it has
// never been loaded for this process.
func (s *Store) Get(roleID string) (*domain.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.loaded[roleID]
	if !ok {
		return nil, coderr.New(coderr.ErrRoleNotConfigured, fmt.Sprintf("role %q never loaded", roleID))
	}
	return p, nil
}
