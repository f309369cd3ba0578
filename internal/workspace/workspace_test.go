package workspace_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savify/savify/internal/audit"
	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/config"
	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/model"
	"github.com/savify/savify/pkg/webhook"
)

func TestInit_CreatesStateDir(t *testing.T) {
	root := t.TempDir()

	ws, err := workspace.Init(root)
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root)
	assert.Equal(t, workspace.FormatVersion, ws.FormatVersion)
	_, err = uuid.Parse(ws.WorkspaceID)
	assert.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, ".savify", "format_version"))
	assert.FileExists(t, filepath.Join(root, ".savify", "workspace_id"))
	assert.FileExists(t, filepath.Join(root, ".savify", "savify_init_object"))

	content, err := os.ReadFile(filepath.Join(root, ".savify", "format_version"))
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(content))
}

func TestInit_Idempotent(t *testing.T) {
	root := t.TempDir()
	first, err := workspace.Init(root)
	require.NoError(t, err)
	second, err := workspace.Init(root)
	require.NoError(t, err)
	assert.Equal(t, first.WorkspaceID, second.WorkspaceID)
}

func TestDiscover_FindsFromNested(t *testing.T) {
	root := t.TempDir()
	_, err := workspace.Init(root)
	require.NoError(t, err)

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	ws, err := workspace.Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root)
}

func TestDiscover_NotFound(t *testing.T) {
	_, err := workspace.Discover(t.TempDir())
	assert.ErrorIs(t, err, workspace.ErrNoWorkspace)
}

func TestDiscover_RejectsNewerFormat(t *testing.T) {
	root := t.TempDir()
	_, err := workspace.Init(root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".savify", "format_version"), []byte("9\n"), 0644))

	_, err = workspace.Discover(root)
	assert.ErrorIs(t, err, errclass.ErrFormatUnsupported)
}

func TestDiscoverOrInit(t *testing.T) {
	root := t.TempDir()
	ws, created, err := workspace.DiscoverOrInit(root)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := workspace.DiscoverOrInit(root)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, ws.WorkspaceID, again.WorkspaceID)
}

func TestEnsureExcluded_AppendsOnce(t *testing.T) {
	root := t.TempDir()
	exclude := filepath.Join(root, ".git", "info", "exclude")
	require.NoError(t, os.MkdirAll(filepath.Dir(exclude), 0755))
	require.NoError(t, os.WriteFile(exclude, []byte("# git ls-files --others --exclude-from=.git/info/exclude\n*.swp"), 0644))

	require.NoError(t, workspace.EnsureExcluded(root))
	require.NoError(t, workspace.EnsureExcluded(root))

	data, err := os.ReadFile(exclude)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "/.savify/"))
	assert.Contains(t, string(data), "*.swp\n/.savify/\n")
}

func TestOpen_BootstrapsRepository(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.Init(root)
	require.NoError(t, err)
	ctx := context.Background()

	s, err := workspace.Open(ctx, ws, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.RepoCreated)
	assert.Equal(t, "master", s.Config.DefaultLine)

	commits, err := s.Git.ListCommits(ctx, "master")
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, workspace.SentinelMessage, commits[0].Label)

	data, err := os.ReadFile(filepath.Join(root, ".git", "info", "exclude"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "/.savify/")

	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.Equal(t, "master", cfg.DefaultLine)
	assert.FileExists(t, filepath.Join(root, ".savify", "index.db"))
}

func TestOpen_SecondOpenKeepsSentinel(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.Init(root)
	require.NoError(t, err)
	ctx := context.Background()

	s, err := workspace.Open(ctx, ws, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = workspace.Open(ctx, ws, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.False(t, s.RepoCreated)

	commits, err := s.Git.ListCommits(ctx, "master")
	require.NoError(t, err)
	assert.Len(t, commits, 1)
}

func TestOpen_RecoversStrayActiveLine(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.Init(root)
	require.NoError(t, err)
	ctx := context.Background()

	s, err := workspace.Open(ctx, ws, nil)
	require.NoError(t, err)
	require.NoError(t, s.Git.SwitchActiveLine(ctx, "AbCdEfGhIjKlMnOpQrSt"))
	require.NoError(t, s.Close())

	s, err = workspace.Open(ctx, ws, nil)
	require.NoError(t, err)
	defer s.Close()
	active, err := s.Git.ActiveLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", active)
}

func TestOpen_KeepsLegacyJSONIndex(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.Init(root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".savify", "savify_db.json"), []byte(`{"_default": {}}`), 0644))

	s, err := workspace.Open(context.Background(), ws, nil)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, config.IndexDriverJSON, s.Config.Index.Driver)
	assert.NoFileExists(t, filepath.Join(root, ".savify", "index.db"))
}

func TestOpen_EndToEndCommit(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.Init(root)
	require.NoError(t, err)
	ctx := context.Background()

	s, err := workspace.Open(ctx, ws, nil)
	require.NoError(t, err)
	defer s.Close()

	p := filepath.Join(root, "notes", "todo.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0644))

	res, err := s.Engine.Commit(ctx, p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, []byte("world"), 0644))
	_, err = s.Engine.Commit(ctx, p)
	require.NoError(t, err)

	snaps, err := s.Engine.ListVersions(ctx, p)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "Version 2", snaps[0].Label)

	_, err = s.Engine.RestoreVersion(ctx, p, string(snaps[1].ID))
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	active, err := s.Git.ActiveLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", active)

	master, err := s.Git.ListCommits(ctx, "master")
	require.NoError(t, err)
	assert.Len(t, master, 1, "default line holds only the sentinel")
	assert.NotEqual(t, "master", res.File.LineID)
}

func TestOpen_DeliversHooks(t *testing.T) {
	var (
		mu     sync.Mutex
		events []webhook.Event
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		if json.NewDecoder(r.Body).Decode(&ev) == nil {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}
	}))
	defer server.Close()

	root := t.TempDir()
	ws, err := workspace.Init(root)
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Hooks = []webhook.Hook{{URL: server.URL, Events: []string{"track"}}}
	require.NoError(t, config.Save(root, cfg))

	ctx := context.Background()
	s, err := workspace.Open(ctx, ws, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NotNil(t, s.Hooks)

	p := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("a"), 0644))
	_, err = s.Engine.Commit(ctx, p)
	require.NoError(t, err)
	_, err = s.Engine.Commit(ctx, p)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1, "only the track event is subscribed")
	assert.Equal(t, model.EventTypeTrack, events[0].Event)
	assert.Equal(t, p, events[0].Path)
	assert.Equal(t, ws.WorkspaceID, events[0].WorkspaceID)

	records, err := audit.ReadAll(ws.AuditPath())
	require.NoError(t, err)
	assert.Len(t, records, 2, "the audit log still gets every record")
}
