// Package pathutil provides path and name validation utilities for savify.
package pathutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/savify/savify/pkg/errclass"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// reserved top-level directories that can never hold tracked files.
var reserved = []string{".git", ".savify"}

// Normalize turns a user-supplied path into the absolute, NFC-normalized
// form used as the index key.
func Normalize(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errclass.ErrNameInvalid.WithMessage("file path must not be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errclass.ErrNameInvalid.WithMessagef("cannot make %s absolute: %v", path, err)
	}
	return norm.NFC.String(filepath.Clean(abs)), nil
}

// ValidateRemoteName checks a remote name is safe to use as a git remote.
func ValidateRemoteName(name string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessage("remote name must not be empty")
	}

	name = norm.NFC.String(name)

	if strings.Contains(name, "..") {
		return errclass.ErrNameInvalid.WithMessagef("remote name must not contain '..': %s", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("remote name must not contain control characters: %q", name)
		}
	}
	if !nameRegex.MatchString(name) {
		return errclass.ErrNameInvalid.WithMessagef("remote name must match [a-zA-Z0-9._-]+: %s", name)
	}
	return nil
}

// RelToRoot returns target relative to root in slash form. It fails with
// E_PATH_ESCAPE when target (after resolving symlinks) is not strictly below
// root or lies inside a reserved directory.
func RelToRoot(root, target string) (string, error) {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", errclass.ErrPathEscape.WithMessagef("cannot resolve workspace root: %v", err)
	}

	resolvedTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedTarget = resolveClosestAncestor(target)
		} else {
			return "", errclass.ErrPathEscape.WithMessagef("cannot resolve target: %v", err)
		}
	}

	if !strings.HasPrefix(resolvedTarget, resolvedRoot+string(filepath.Separator)) {
		return "", errclass.ErrPathEscape.WithMessagef("%s is outside workspace %s", target, root)
	}

	rel, err := filepath.Rel(resolvedRoot, resolvedTarget)
	if err != nil {
		return "", errclass.ErrPathEscape.WithMessagef("compute relative path: %v", err)
	}
	rel = filepath.ToSlash(rel)

	first := strings.SplitN(rel, "/", 2)[0]
	for _, r := range reserved {
		if first == r {
			return "", errclass.ErrPathEscape.WithMessagef("%s is inside reserved directory %s", target, r)
		}
	}
	return rel, nil
}

// resolveClosestAncestor walks up from path to find the closest existing
// ancestor, resolves it, then appends the remaining components.
func resolveClosestAncestor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) && dir != path {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(path)
		}
	}
	return filepath.Join(resolved, base)
}
