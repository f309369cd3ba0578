package doctor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savify/savify/internal/audit"
	"github.com/savify/savify/internal/backend"
	"github.com/savify/savify/internal/doctor"
	"github.com/savify/savify/internal/history"
	"github.com/savify/savify/internal/index"
	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/fsutil"
	"github.com/savify/savify/pkg/model"
)

type env struct {
	root  string
	state string
	mem   *backend.Memory
	store index.Store
	eng   *history.Engine
	doc   *doctor.Doctor
}

func setup(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	ws, err := workspace.Init(root)
	require.NoError(t, err)

	store, err := index.Open(ws.StateDir(), "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mem := backend.NewMemory(root, "master")
	appender := audit.NewFileAppender(ws.AuditPath())
	return &env{
		root:  root,
		state: ws.StateDir(),
		mem:   mem,
		store: store,
		eng:   history.NewEngine(root, mem, store, history.Options{DefaultLine: "master", Audit: appender}),
		doc:   doctor.New(ws.StateDir(), "master", mem, store, appender),
	}
}

func (e *env) track(t *testing.T, name string) model.TrackedFile {
	t.Helper()
	p := filepath.Join(e.root, name)
	require.NoError(t, os.WriteFile(p, []byte(name), 0644))
	res, err := e.eng.Commit(context.Background(), p)
	require.NoError(t, err)
	return res.File
}

func categories(r *doctor.Result) []string {
	var out []string
	for _, f := range r.Findings {
		out = append(out, f.Category)
	}
	return out
}

func TestDoctor_Check_Healthy(t *testing.T) {
	e := setup(t)
	e.track(t, "a.txt")

	result, err := e.doc.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Findings)
}

func TestDoctor_Check_DanglingEntry(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tf := e.track(t, "a.txt")
	require.NoError(t, e.mem.DeleteLine(ctx, tf.LineID))

	result, err := e.doc.Check(ctx)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	assert.Equal(t, []string{doctor.CategoryDangling}, categories(result))
	assert.Equal(t, tf.Path, result.Findings[0].Path)
}

func TestDoctor_Check_OrphanLine(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tf := e.track(t, "a.txt")
	require.NoError(t, e.store.Remove(ctx, tf.Path))

	result, err := e.doc.Check(ctx)
	require.NoError(t, err)
	assert.True(t, result.Healthy, "orphans are warnings")
	require.Equal(t, []string{doctor.CategoryOrphan}, categories(result))
	assert.Equal(t, tf.LineID, result.Findings[0].Line)
}

func TestDoctor_Check_StrayActiveLine(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.mem.SwitchActiveLine(ctx, "elsewhere"))

	result, err := e.doc.Check(ctx)
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	assert.Contains(t, categories(result), doctor.CategoryHead)
}

func TestDoctor_Check_MissingFileAndTmp(t *testing.T) {
	e := setup(t)
	tf := e.track(t, "a.txt")
	require.NoError(t, os.Remove(tf.Path))
	require.NoError(t, os.WriteFile(filepath.Join(e.state, fsutil.TempPrefix+"123"), nil, 0644))

	result, err := e.doc.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.ElementsMatch(t, []string{doctor.CategoryFile, doctor.CategoryTmp}, categories(result))
}

func TestDoctor_Check_BrokenAudit(t *testing.T) {
	e := setup(t)
	e.track(t, "a.txt")
	require.NoError(t, os.WriteFile(filepath.Join(e.state, workspace.AuditFile), []byte("garbage\n"), 0644))

	result, err := e.doc.Check(context.Background())
	require.NoError(t, err)
	assert.Contains(t, categories(result), doctor.CategoryAudit)
}

func TestDoctor_Check_NewerFormat(t *testing.T) {
	e := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.state, workspace.FormatVersionFile), []byte("7\n"), 0644))

	result, err := e.doc.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Healthy)
	assert.Contains(t, categories(result), doctor.CategoryFormat)
}

func TestDoctor_Repair(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	dangling := e.track(t, "a.txt")
	require.NoError(t, e.mem.DeleteLine(ctx, dangling.LineID))
	orphan := e.track(t, "b.txt")
	require.NoError(t, e.store.Remove(ctx, orphan.Path))
	require.NoError(t, e.mem.SwitchActiveLine(ctx, "elsewhere"))

	result, err := e.doc.Repair(ctx, doctor.RepairOptions{})
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Len(t, result.Repaired, 2)
	assert.Equal(t, []string{doctor.CategoryOrphan}, categories(result))

	active, err := e.mem.ActiveLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", active)
	_, err = e.store.Find(ctx, dangling.Path)
	assert.ErrorIs(t, err, index.ErrNotFound)

	result, err = e.doc.Repair(ctx, doctor.RepairOptions{PruneOrphans: true})
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
	exists, err := e.mem.LineExists(ctx, orphan.LineID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDoctor_TmpBesideTrackedFile(t *testing.T) {
	e := setup(t)
	require.NoError(t, os.Mkdir(filepath.Join(e.root, "docs"), 0755))
	e.track(t, filepath.Join("docs", "a.txt"))
	stray := filepath.Join(e.root, "docs", fsutil.TempPrefix+"42")
	require.NoError(t, os.WriteFile(stray, []byte("half"), 0644))

	result, err := e.doc.Check(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{doctor.CategoryTmp}, categories(result))
	assert.Equal(t, stray, result.Findings[0].Path)

	result, err = e.doc.Repair(context.Background(), doctor.RepairOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
	assert.NoFileExists(t, stray)
}

func TestDoctor_ForeignLinesSurvivePrune(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	orphan := e.track(t, "a.txt")
	require.NoError(t, e.store.Remove(ctx, orphan.Path))

	commitOn := func(line, name, message string) {
		require.NoError(t, os.WriteFile(filepath.Join(e.root, name), []byte(name), 0644))
		require.NoError(t, e.mem.SwitchActiveLine(ctx, line))
		_, err := e.mem.CommitOnActiveLine(ctx, name, message)
		require.NoError(t, err)
		require.NoError(t, e.mem.SwitchActiveLine(ctx, "master"))
	}
	commitOn("releasecandidate2024", "notes.txt", "release notes")
	commitOn("mixedpathsline000001", "x.txt", "Version 1")
	commitOn("mixedpathsline000001", "y.txt", "Version 2")
	commitOn("skippedlabels0000001", "z.txt", "Version 2")

	result, err := e.doc.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{doctor.CategoryOrphan}, categories(result))
	assert.Equal(t, orphan.LineID, result.Findings[0].Line)

	_, err = e.doc.Repair(ctx, doctor.RepairOptions{PruneOrphans: true})
	require.NoError(t, err)
	for _, line := range []string{"releasecandidate2024", "mixedpathsline000001", "skippedlabels0000001"} {
		exists, err := e.mem.LineExists(ctx, line)
		require.NoError(t, err)
		assert.True(t, exists, line)
	}
	exists, err := e.mem.LineExists(ctx, orphan.LineID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDoctor_GitUserBranchSurvivesPrune(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.Init(root)
	require.NoError(t, err)
	ctx := context.Background()
	s, err := workspace.Open(ctx, ws, nil)
	require.NoError(t, err)
	defer s.Close()

	repo, err := git.PlainOpen(root)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("hello"), 0644))
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	sig := &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Now()}
	head, err := wt.Commit("add readme", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	branch := plumbing.NewHashReference(plumbing.NewBranchReferenceName("releasecandidate2024"), head)
	require.NoError(t, repo.Storer.SetReference(branch))

	p := filepath.Join(root, "tracked.txt")
	require.NoError(t, os.WriteFile(p, []byte("v1"), 0644))
	res, err := s.Engine.Commit(ctx, p)
	require.NoError(t, err)
	require.NoError(t, s.Index.Remove(ctx, res.File.Path))

	doc := doctor.NewDoctor(s)
	result, err := doc.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{doctor.CategoryOrphan}, categories(result))
	assert.Equal(t, res.File.LineID, result.Findings[0].Line)

	_, err = doc.Repair(ctx, doctor.RepairOptions{PruneOrphans: true})
	require.NoError(t, err)
	exists, err := s.Git.LineExists(ctx, "releasecandidate2024")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.Git.LineExists(ctx, res.File.LineID)
	require.NoError(t, err)
	assert.False(t, exists)
}
