package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/savify/savify/internal/audit"
	"github.com/savify/savify/internal/backend"
	"github.com/savify/savify/internal/history"
	"github.com/savify/savify/internal/index"
	"github.com/savify/savify/pkg/config"
	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/logging"
	"github.com/savify/savify/pkg/webhook"
)

// Session is an opened workspace: its config, repository, index, audit log
// and the engine built over them.
type Session struct {
	*Workspace
	Config *config.Config
	Git    *backend.Git
	Index  index.Store
	Audit  *audit.FileAppender
	// Hooks is nil when config.yaml configures no webhooks.
	Hooks  *webhook.Client
	Engine *history.Engine
	// RepoCreated is set when Open had to initialize the git repository.
	RepoCreated bool
}

// Open loads the workspace stores, restores the active line if a previous
// run was interrupted, and makes sure the default line exists.
func Open(ctx context.Context, ws *Workspace, log *logging.Logger) (*Session, error) {
	if log == nil {
		log = logging.Global()
	}

	cfg, err := loadConfig(ws)
	if err != nil {
		return nil, err
	}

	g, created, err := backend.OpenGit(ws.Root, backend.WithAuthor(backend.Author{
		Name:  cfg.Author.Name,
		Email: cfg.Author.Email,
	}))
	if err != nil {
		return nil, err
	}

	if cfg.DefaultLine == "" {
		active, err := g.ActiveLine(ctx)
		if err != nil {
			return nil, errclass.ErrRepositoryUnavailable.WithMessagef("read HEAD: %v", err)
		}
		cfg.DefaultLine = active
		if err := config.Save(ws.Root, cfg); err != nil {
			return nil, fmt.Errorf("save config: %w", err)
		}
	}

	if err := EnsureExcluded(ws.Root); err != nil {
		return nil, err
	}

	store, err := index.Open(ws.StateDir(), cfg.Index.Driver)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	appender := audit.NewFileAppender(ws.AuditPath())
	var auditor history.Auditor = appender
	var hooks *webhook.Client
	if len(cfg.Hooks) > 0 {
		hooks = webhook.NewClient(webhook.DefaultConfig(cfg.Hooks), ws.WorkspaceID, ws.Root)
		auditor = history.Auditors{appender, hooks}
	}
	eng := history.NewEngine(ws.Root, g, store, history.Options{
		DefaultLine: cfg.DefaultLine,
		Logger:      log,
		Audit:       auditor,
	})

	s := &Session{
		Workspace:   ws,
		Config:      cfg,
		Git:         g,
		Index:       store,
		Audit:       appender,
		Hooks:       hooks,
		Engine:      eng,
		RepoCreated: created,
	}

	if _, err := eng.EnsureDefaultLine(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if err := s.ensureSentinel(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// ensureSentinel gives an unborn default line its bookkeeping commit.
func (s *Session) ensureSentinel(ctx context.Context) error {
	exists, err := s.Git.LineExists(ctx, s.Config.DefaultLine)
	if err != nil {
		return errclass.ErrRepositoryUnavailable.WithMessagef("read default line: %v", err)
	}
	if exists {
		return nil
	}

	marker := filepath.Join(s.StateDir(), InitObjectFile)
	if _, err := os.Stat(marker); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(marker, []byte(SentinelMessage+"\n"), 0644); err != nil {
			return fmt.Errorf("write %s: %w", InitObjectFile, err)
		}
	}
	if _, err := s.Git.CommitOnActiveLine(ctx, InitObjectRel(), SentinelMessage); err != nil {
		return errclass.ErrRepositoryUnavailable.WithMessagef("create default line %s: %v", s.Config.DefaultLine, err)
	}
	return nil
}

// SaveConfig writes the session config back to disk.
func (s *Session) SaveConfig() error {
	return config.Save(s.Root, s.Config)
}

// Close releases the index store.
func (s *Session) Close() error {
	return s.Index.Close()
}

// loadConfig reads config.yaml. A state directory without one that already
// holds a savify_db.json keeps using that file.
func loadConfig(ws *Workspace) (*config.Config, error) {
	_, statErr := os.Stat(config.Path(ws.Root))
	cfg, err := config.Load(ws.Root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if errors.Is(statErr, os.ErrNotExist) {
		_, jsonErr := os.Stat(filepath.Join(ws.StateDir(), index.JSONFile))
		_, sqlErr := os.Stat(filepath.Join(ws.StateDir(), index.SQLiteFile))
		if jsonErr == nil && errors.Is(sqlErr, os.ErrNotExist) {
			cfg.Index.Driver = config.IndexDriverJSON
		}
	}
	return cfg, nil
}
