package persona

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/soulgraph/internal/companion/coderr"
	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/domain"
)

func newTestStore(t *testing.T) (*Store, config.PathsConfig) {
	t.Helper()
	tmp := t.TempDir()
	paths := config.PathsConfig{
		PersonaRoot: filepath.Join(tmp, "personas"),
		SummaryRoot: filepath.Join(tmp, "summaries"),
		PlotRoot:    filepath.Join(tmp, "plots"),
	}
	require.NoError(t, os.MkdirAll(paths.PersonaRoot, 0o755))
	return New(paths), paths
}

func writePersona(t *testing.T, paths config.PathsConfig, roleID, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(
		filepath.Join(paths.PersonaRoot, roleID+"_L0_prompt.txt"), []byte(text), 0o644))
}

func TestLoadReadsPersonaText(t *testing.T) {
	s, paths := newTestStore(t)
	writePersona(t, paths, "r1", "a wry violinist")

	p, err := s.Load(Descriptor{RoleID: "r1", RoleName: "Mira", Age: 30,
		InitialMood: domain.Mood{Valence: 0.2, Intensity: 3}})
	require.NoError(t, err)
	require.Equal(t, "a wry violinist", p.PersonaText)
	require.Equal(t, "Mira", p.RoleName)
	require.Equal(t, filepath.Join(paths.SummaryRoot, "r1", "Mira_summary.txt"), p.SummaryPath)
}

func TestLoadMissingPersonaIsFatal(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Load(Descriptor{RoleID: "ghost", RoleName: "Ghost"})
	require.Error(t, err)
	require.True(t, errors.Is(err, coderr.ErrPersonaMissing))
}

func TestGetUnloadedRoleFails(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get("never-loaded")
	require.Error(t, err)
	require.True(t, errors.Is(err, coderr.ErrRoleNotConfigured))
}

func TestLoadCachesAndGetReturnsSamePersona(t *testing.T) {
	s, paths := newTestStore(t)
	writePersona(t, paths, "r1", "text v1")

	first, err := s.Load(Descriptor{RoleID: "r1", RoleName: "Mira"})
	require.NoError(t, err)

	// Rewriting the file after load must not change the in-memory persona:
	// identities are immutable after load.
	writePersona(t, paths, "r1", "text v2")
	again, err := s.Load(Descriptor{RoleID: "r1", RoleName: "Mira"})
	require.NoError(t, err)
	require.Same(t, first, again)
	require.Equal(t, "text v1", again.PersonaText)

	got, err := s.Get("r1")
	require.NoError(t, err)
	require.Same(t, first, got)
}

func TestRoleIDsListsLoadedRoles(t *testing.T) {
	s, paths := newTestStore(t)
	writePersona(t, paths, "r1", "one")
	writePersona(t, paths, "r2", "two")
	_, err := s.Load(Descriptor{RoleID: "r1", RoleName: "One"})
	require.NoError(t, err)
	_, err = s.Load(Descriptor{RoleID: "r2", RoleName: "Two"})
	require.NoError(t, err)

	ids := s.RoleIDs()
	require.ElementsMatch(t, []string{"r1", "r2"}, ids)
}
