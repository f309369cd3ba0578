package history

import (
	"context"
	"sort"
	"strings"

	"github.com/savify/savify/internal/backend"
	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/model"
	"github.com/savify/savify/pkg/pathutil"
	"github.com/savify/savify/pkg/progress"
)

// SetRemote configures the push target, replacing any remote of the same name.
func (e *Engine) SetRemote(ctx context.Context, remote model.Remote) error {
	if err := pathutil.ValidateRemoteName(remote.Name); err != nil {
		return err
	}
	if strings.TrimSpace(remote.URL) == "" {
		return errclass.ErrNameInvalid.WithMessage("remote url must not be empty")
	}
	if err := e.backend.SetRemote(ctx, remote); err != nil {
		return errclass.ErrRepositoryUnavailable.WithMessagef("configure remote %s: %v", remote.Name, err)
	}

	e.log.Info("remote configured", map[string]any{"name": remote.Name, "url": remote.URL})
	e.record(model.EventTypeRemote, "", "", "", map[string]any{"name": remote.Name, "url": remote.URL})
	return nil
}

// PushAll pushes every distinct indexed line to remote under its own name.
// A failed line does not stop the others; the report lists each outcome and
// the error is E_PUSH_FAILED when any line failed.
func (e *Engine) PushAll(ctx context.Context, remote *model.Remote, cb progress.Callback) (*model.PushReport, error) {
	if remote == nil || remote.Name == "" || remote.URL == "" {
		return nil, errclass.ErrRemoteNotConfigured.WithMessage("no remote configured; run `savify remote <name> <url>` first")
	}
	if err := e.backend.SetRemote(ctx, *remote); err != nil {
		return nil, errclass.ErrRepositoryUnavailable.WithMessagef("configure remote %s: %v", remote.Name, err)
	}

	files, err := e.ListAllTrackedFiles(ctx)
	if err != nil {
		return nil, err
	}
	lines := distinctLines(files)

	report := &model.PushReport{Remote: remote.Name, Pushed: []string{}}
	p := progress.New("push", len(lines), cb)
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := e.backend.Push(ctx, remote.Name, backend.BranchRefspec(line)); err != nil {
			if report.Failed == nil {
				report.Failed = make(map[string]string)
			}
			report.Failed[line] = err.Error()
			e.log.WarnErr("push failed", err, map[string]any{"remote": remote.Name, "line": line})
			p.Fail(line, err)
			continue
		}
		report.Pushed = append(report.Pushed, line)
		p.Increment(line)
	}

	e.record(model.EventTypePush, "", "", "", map[string]any{
		"remote": remote.Name,
		"pushed": len(report.Pushed),
		"failed": len(report.Failed),
	})
	if !report.OK() {
		return report, errclass.ErrPushFailed.WithMessagef("%d of %d lines failed to push to %s",
			len(report.Failed), len(lines), remote.Name)
	}
	return report, nil
}

func distinctLines(files []model.TrackedFile) []string {
	seen := make(map[string]struct{}, len(files))
	lines := make([]string, 0, len(files))
	for _, f := range files {
		if _, ok := seen[f.LineID]; ok {
			continue
		}
		seen[f.LineID] = struct{}{}
		lines = append(lines, f.LineID)
	}
	sort.Strings(lines)
	return lines
}
