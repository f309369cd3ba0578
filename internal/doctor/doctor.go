// Package doctor checks that the index and the repository agree and repairs
// the drift a crash between their writes can leave behind.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/savify/savify/internal/audit"
	"github.com/savify/savify/internal/backend"
	"github.com/savify/savify/internal/index"
	"github.com/savify/savify/internal/lineid"
	"github.com/savify/savify/internal/workspace"
	"github.com/savify/savify/pkg/fsutil"
	"github.com/savify/savify/pkg/logging"
	"github.com/savify/savify/pkg/model"
)

// Finding categories.
const (
	CategoryFormat   = "format"
	CategoryDangling = "dangling"
	CategoryOrphan   = "orphan"
	CategoryHead     = "head"
	CategoryFile     = "file"
	CategoryAudit    = "audit"
	CategoryTmp      = "tmp"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
	Line        string `json:"line,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
	Repaired []string  `json:"repaired,omitempty"`
}

// Auditor records repairs.
type Auditor interface {
	Append(eventType model.AuditEventType, path, lineID string, snapshotID model.SnapshotID, details map[string]any) error
}

// Doctor performs workspace health checks.
type Doctor struct {
	stateDir    string
	auditPath   string
	defaultLine string
	backend     backend.Backend
	index       index.Store
	audit       Auditor
	log         *logging.Logger
}

// NewDoctor creates a doctor for an opened workspace.
func NewDoctor(s *workspace.Session) *Doctor {
	return New(s.StateDir(), s.Config.DefaultLine, s.Git, s.Index, s.Audit)
}

// New creates a doctor from its parts. a may be nil.
func New(stateDir, defaultLine string, b backend.Backend, store index.Store, a Auditor) *Doctor {
	return &Doctor{
		stateDir:    stateDir,
		auditPath:   filepath.Join(stateDir, workspace.AuditFile),
		defaultLine: defaultLine,
		backend:     b,
		index:       store,
		audit:       a,
		log:         logging.Global(),
	}
}

// Check runs all diagnostic checks.
func (d *Doctor) Check(ctx context.Context) (*Result, error) {
	result := &Result{Healthy: true, Findings: []Finding{}}

	// 1. Check format version
	d.checkFormatVersion(result)

	// 2. Check the active line
	if err := d.checkActiveLine(ctx, result); err != nil {
		return nil, err
	}

	// 3. Check index entries against repository lines
	if err := d.checkLines(ctx, result); err != nil {
		return nil, err
	}

	// 4. Check the audit chain
	d.checkAudit(result)

	// 5. Check for orphan tmp files
	d.checkOrphanTmp(ctx, result)

	return result, nil
}

func (d *Doctor) add(result *Result, f Finding) {
	result.Findings = append(result.Findings, f)
	if f.Severity == "error" || f.Severity == "critical" {
		result.Healthy = false
	}
}

func (d *Doctor) checkFormatVersion(result *Result) {
	versionPath := filepath.Join(d.stateDir, workspace.FormatVersionFile)
	data, err := os.ReadFile(versionPath)
	if err != nil {
		d.add(result, Finding{
			Category:    CategoryFormat,
			Description: "format_version file missing or unreadable",
			Severity:    "warning",
			Path:        versionPath,
		})
		return
	}

	var version int
	fmt.Sscanf(string(data), "%d", &version)
	if version > workspace.FormatVersion {
		d.add(result, Finding{
			Category:    CategoryFormat,
			Description: fmt.Sprintf("format version %d > supported %d", version, workspace.FormatVersion),
			Severity:    "critical",
		})
	}
}

func (d *Doctor) checkActiveLine(ctx context.Context, result *Result) error {
	active, err := d.backend.ActiveLine(ctx)
	if err != nil {
		return fmt.Errorf("read active line: %w", err)
	}
	if active != d.defaultLine {
		d.add(result, Finding{
			Category:    CategoryHead,
			Description: fmt.Sprintf("active line is %s, expected default line %s", active, d.defaultLine),
			Severity:    "error",
			Line:        active,
		})
	}
	return nil
}

func (d *Doctor) checkLines(ctx context.Context, result *Result) error {
	files, err := d.index.All(ctx)
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	lines, err := d.backend.Lines(ctx)
	if err != nil {
		return fmt.Errorf("list lines: %w", err)
	}
	present := make(map[string]bool, len(lines))
	for _, l := range lines {
		present[l] = true
	}

	indexed := make(map[string]bool, len(files))
	for _, f := range files {
		indexed[f.LineID] = true
		if !present[f.LineID] {
			d.add(result, Finding{
				Category:    CategoryDangling,
				Description: fmt.Sprintf("index entry points at missing line %s", f.LineID),
				Severity:    "error",
				Path:        f.Path,
				Line:        f.LineID,
			})
			continue
		}
		if _, err := os.Stat(f.Path); os.IsNotExist(err) {
			d.add(result, Finding{
				Category:    CategoryFile,
				Description: fmt.Sprintf("tracked file no longer exists on disk; its versions remain on line %s", f.LineID),
				Severity:    "info",
				Path:        f.Path,
				Line:        f.LineID,
			})
		}
	}

	sort.Strings(lines)
	for _, l := range lines {
		if indexed[l] || l == d.defaultLine || !lineid.Valid(l) {
			continue
		}
		owned, err := d.ownsLine(ctx, l)
		if err != nil {
			return err
		}
		if !owned {
			d.log.Debug("skipping foreign line", map[string]any{"line": l})
			continue
		}
		d.add(result, Finding{
			Category:    CategoryOrphan,
			Description: fmt.Sprintf("line %s is not referenced by the index", l),
			Severity:    "warning",
			Line:        l,
		})
	}
	return nil
}

// ownsLine reports whether line has the shape savify gives its lines: every
// commit holds the same single file and the labels run "Version 1" to
// "Version N" from the root commit up.
func (d *Doctor) ownsLine(ctx context.Context, line string) (bool, error) {
	snaps, err := d.backend.ListCommits(ctx, line)
	if errors.Is(err, backend.ErrLineNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read line %s: %w", line, err)
	}
	if len(snaps) == 0 || snaps[0].Path == "" {
		return false, nil
	}
	for i, s := range snaps {
		if s.Path != snaps[0].Path || s.Label != model.Label(len(snaps)-i) {
			return false, nil
		}
	}
	return true, nil
}

func (d *Doctor) checkAudit(result *Result) {
	if _, err := audit.Verify(d.auditPath); err != nil {
		d.add(result, Finding{
			Category:    CategoryAudit,
			Description: err.Error(),
			Severity:    "warning",
			Path:        d.auditPath,
		})
	}
}

// checkOrphanTmp looks for interrupted atomic writes in the state directory
// and beside every tracked file.
func (d *Doctor) checkOrphanTmp(ctx context.Context, result *Result) {
	dirs := []string{d.stateDir}
	seen := map[string]bool{d.stateDir: true}
	if files, err := d.index.All(ctx); err == nil {
		for _, f := range files {
			dir := filepath.Dir(f.Path)
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}

	for _, dir := range dirs {
		tmps, err := fsutil.TempFiles(dir)
		if err != nil {
			continue
		}
		for _, p := range tmps {
			d.add(result, Finding{
				Category:    CategoryTmp,
				Description: fmt.Sprintf("orphan temp file: %s", filepath.Base(p)),
				Severity:    "info",
				Path:        p,
			})
		}
	}
}

// RepairOptions selects the optional repairs.
type RepairOptions struct {
	// PruneOrphans deletes lines the index does not reference.
	PruneOrphans bool
}

// Repair fixes what Check finds: it restores the active line, drops dangling
// index entries and removes temp files, and with PruneOrphans deletes
// orphaned lines. The returned result reflects the state after repair.
func (d *Doctor) Repair(ctx context.Context, opts RepairOptions) (*Result, error) {
	before, err := d.Check(ctx)
	if err != nil {
		return nil, err
	}

	var repaired []string
	var errs []error
	for _, f := range before.Findings {
		var action string
		var ferr error
		switch f.Category {
		case CategoryHead:
			ferr = d.backend.SwitchActiveLine(ctx, d.defaultLine)
			action = "restored active line to " + d.defaultLine
		case CategoryDangling:
			ferr = d.index.Remove(ctx, f.Path)
			action = "removed dangling entry " + f.Path
		case CategoryOrphan:
			if !opts.PruneOrphans {
				continue
			}
			ferr = d.backend.DeleteLine(ctx, f.Line)
			if errors.Is(ferr, backend.ErrLineNotFound) {
				ferr = nil
			}
			action = "deleted orphaned line " + f.Line
		case CategoryTmp:
			ferr = os.Remove(f.Path)
			action = "removed " + f.Path
		default:
			continue
		}
		if ferr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", action, ferr))
			continue
		}
		repaired = append(repaired, action)
		d.log.Info("doctor repair", map[string]any{"action": action})
	}

	if len(repaired) > 0 && d.audit != nil {
		if err := d.audit.Append(model.EventTypeRepair, "", "", "", map[string]any{"actions": repaired}); err != nil {
			d.log.WarnErr("audit append failed", err, nil)
		}
	}

	after, err := d.Check(ctx)
	if err != nil {
		return nil, err
	}
	after.Repaired = repaired
	return after, errors.Join(errs...)
}
