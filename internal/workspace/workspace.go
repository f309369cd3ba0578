// Package workspace locates and initializes the .savify state directory and
// wires the stores that live in it.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/fsutil"
)

const (
	FormatVersion     = 1
	DirName           = ".savify"
	FormatVersionFile = "format_version"
	WorkspaceIDFile   = "workspace_id"
	InitObjectFile    = "savify_init_object"
	AuditFile         = "audit.jsonl"

	// SentinelMessage is the message of the bookkeeping commit that gives
	// the default line its first commit.
	SentinelMessage = "Started using savify!"
	// ExcludeEntry keeps the state directory out of the repository.
	ExcludeEntry = "/" + DirName + "/"
)

// ErrNoWorkspace is returned by Discover when no ancestor holds .savify/.
var ErrNoWorkspace = errors.New("no savify workspace found (no .savify/ in parent directories)")

// Workspace is an initialized .savify directory and the tree it sits in.
type Workspace struct {
	Root          string
	FormatVersion int
	WorkspaceID   string
}

// StateDir returns the .savify directory.
func (w *Workspace) StateDir() string { return filepath.Join(w.Root, DirName) }

// AuditPath returns the audit log location.
func (w *Workspace) AuditPath() string { return filepath.Join(w.StateDir(), AuditFile) }

// InitObjectRel is the workspace-relative path of the sentinel marker file.
func InitObjectRel() string { return DirName + "/" + InitObjectFile }

// Init creates the state directory at path. An existing workspace at path is
// returned as is.
func Init(path string) (*Workspace, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	stateDir := filepath.Join(abs, DirName)
	if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
		return load(abs)
	}

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", stateDir, err)
	}

	if err := fsutil.AtomicWrite(filepath.Join(stateDir, FormatVersionFile), []byte(fmt.Sprintf("%d\n", FormatVersion)), 0644); err != nil {
		return nil, fmt.Errorf("write format_version: %w", err)
	}

	id := uuid.NewString()
	if err := fsutil.AtomicWrite(filepath.Join(stateDir, WorkspaceIDFile), []byte(id+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("write workspace_id: %w", err)
	}

	marker := fmt.Sprintf("Started using savify on %s\n", time.Now().UTC().Format(time.RFC3339))
	if err := fsutil.AtomicWrite(filepath.Join(stateDir, InitObjectFile), []byte(marker), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", InitObjectFile, err)
	}

	if err := fsutil.FsyncDir(abs); err != nil {
		return nil, fmt.Errorf("fsync workspace root: %w", err)
	}

	return &Workspace{Root: abs, FormatVersion: FormatVersion, WorkspaceID: id}, nil
}

// Discover walks up from cwd to the nearest directory containing .savify/.
func Discover(cwd string) (*Workspace, error) {
	path, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cwd, err)
	}
	for {
		if info, err := os.Stat(filepath.Join(path, DirName)); err == nil && info.IsDir() {
			return load(path)
		}
		parent := filepath.Dir(path)
		if parent == path {
			return nil, ErrNoWorkspace
		}
		path = parent
	}
}

// DiscoverOrInit returns the enclosing workspace, creating one at cwd when
// there is none. created reports whether a new workspace was made.
func DiscoverOrInit(cwd string) (ws *Workspace, created bool, err error) {
	ws, err = Discover(cwd)
	if err == nil {
		return ws, false, nil
	}
	if !errors.Is(err, ErrNoWorkspace) {
		return nil, false, err
	}
	ws, err = Init(cwd)
	return ws, err == nil, err
}

func load(root string) (*Workspace, error) {
	stateDir := filepath.Join(root, DirName)
	version, err := readFormatVersion(stateDir)
	if err != nil {
		return nil, err
	}
	if version > FormatVersion {
		return nil, errclass.ErrFormatUnsupported.WithMessagef(
			"format version %d > supported %d", version, FormatVersion)
	}
	id, _ := readWorkspaceID(stateDir)
	return &Workspace{Root: root, FormatVersion: version, WorkspaceID: id}, nil
}

// readFormatVersion treats a missing file as version 1 so that state
// directories created by older tools still open.
func readFormatVersion(stateDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, FormatVersionFile))
	if os.IsNotExist(err) {
		return FormatVersion, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read format_version: %w", err)
	}
	var version int
	if _, err := fmt.Sscanf(string(data), "%d", &version); err != nil {
		return 0, fmt.Errorf("parse format_version: %w", err)
	}
	return version, nil
}

func readWorkspaceID(stateDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, WorkspaceIDFile))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// EnsureExcluded appends ExcludeEntry to .git/info/exclude once.
func EnsureExcluded(root string) error {
	path := filepath.Join(root, ".git", "info", "exclude")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read exclude file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		switch strings.TrimSpace(line) {
		case ExcludeEntry, DirName, DirName + "/", "/" + DirName:
			return nil
		}
	}

	var b strings.Builder
	b.Write(data)
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(ExcludeEntry + "\n")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	return fsutil.ReplaceFile(path, []byte(b.String()), 0644)
}
