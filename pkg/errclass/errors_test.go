package errclass_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/savify/savify/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := errclass.ErrNotTracked.WithMessage("/tmp/a.txt")
	assert.Equal(t, "E_NOT_TRACKED: /tmp/a.txt", err.Error())
}

func TestError_Error_WithoutMessage(t *testing.T) {
	assert.Equal(t, "E_ALREADY_TRACKED", errclass.ErrAlreadyTracked.Error())
}

func TestError_Is(t *testing.T) {
	err := errclass.ErrVersionNotFound.WithMessage("abc123")
	require.True(t, errors.Is(err, errclass.ErrVersionNotFound))
	require.False(t, errors.Is(err, errclass.ErrNotTracked))
}

func TestError_Is_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("restore: %w", errclass.ErrVersionNotFound.WithMessagef("tag %s", "deadbeef"))
	require.True(t, errors.Is(err, errclass.ErrVersionNotFound))
}

func TestError_Is_WithStandardError(t *testing.T) {
	err := errclass.ErrDuplicateEntry.WithMessage("test")
	require.False(t, errors.Is(err, errors.New("E_DUPLICATE_ENTRY")))
}

func TestError_WithMessage_LeavesBaseUnchanged(t *testing.T) {
	base := errclass.ErrRemoteNotConfigured
	err := base.WithMessage("run remote first")
	assert.Equal(t, "E_REMOTE_NOT_CONFIGURED", err.Code)
	assert.Equal(t, "run remote first", err.Message)
	assert.Empty(t, base.Message)
}

func TestError_WithMessagef(t *testing.T) {
	err := errclass.ErrPathEscape.WithMessagef("%s is outside %s", "/etc/passwd", "/home/u/ws")
	assert.Equal(t, "/etc/passwd is outside /home/u/ws", err.Message)
	assert.Contains(t, err.Error(), "E_PATH_ESCAPE")
}

func TestError_CodesAreDistinct(t *testing.T) {
	all := []*errclass.Error{
		errclass.ErrAlreadyTracked,
		errclass.ErrNotTracked,
		errclass.ErrVersionNotFound,
		errclass.ErrAmbiguousVersion,
		errclass.ErrDuplicateEntry,
		errclass.ErrRepositoryUnavailable,
		errclass.ErrRemoteNotConfigured,
		errclass.ErrPushFailed,
		errclass.ErrFileNotFound,
		errclass.ErrPathEscape,
		errclass.ErrNameInvalid,
		errclass.ErrFormatUnsupported,
		errclass.ErrAuditChainBroken,
	}
	seen := map[string]bool{}
	for _, e := range all {
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
	}
}
