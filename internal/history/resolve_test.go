package history_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savify/savify/internal/history"
	"github.com/savify/savify/pkg/errclass"
	"github.com/savify/savify/pkg/model"
)

func TestResolve(t *testing.T) {
	snaps := []model.Snapshot{
		{ID: "abcd1234ffff0000", Label: "Version 3"},
		{ID: "abcd5678eeee0000", Label: "Version 2"},
		{ID: "9999aaaabbbb0000", Label: "Version 1"},
	}

	tests := []struct {
		name    string
		ref     string
		want    model.SnapshotID
		wantErr error
	}{
		{name: "exact id", ref: "abcd5678eeee0000", want: "abcd5678eeee0000"},
		{name: "label", ref: "Version 1", want: "9999aaaabbbb0000"},
		{name: "label any case", ref: "version 3", want: "abcd1234ffff0000"},
		{name: "unique prefix", ref: "abcd12", want: "abcd1234ffff0000"},
		{name: "upper-case prefix", ref: "9999AAAA", want: "9999aaaabbbb0000"},
		{name: "ambiguous prefix", ref: "abcd", wantErr: errclass.ErrAmbiguousVersion},
		{name: "prefix too short", ref: "999", wantErr: errclass.ErrVersionNotFound},
		{name: "unknown", ref: "ffffffff", wantErr: errclass.ErrVersionNotFound},
		{name: "empty", ref: "  ", wantErr: errclass.ErrVersionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := history.Resolve(snaps, tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}
