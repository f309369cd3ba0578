package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savify/savify/pkg/color"
	"github.com/savify/savify/pkg/model"
)

var snap = model.Snapshot{ID: "0123456789abcdef0123456789abcdef01234567", Label: "Version 1"}

func TestCompute_NoChanges(t *testing.T) {
	r := Compute("a.txt", snap, []byte("one\ntwo\n"), []byte("one\ntwo\n"))
	assert.True(t, r.Identical())
	assert.Len(t, r.Lines, 2)
}

func TestCompute_LineChanges(t *testing.T) {
	r := Compute("a.txt", snap, []byte("one\ntwo\nthree\n"), []byte("one\n2\nthree\nfour\n"))

	assert.Equal(t, 2, r.Added)
	assert.Equal(t, 1, r.Removed)
	require.Equal(t, []Line{
		{Op: OpEqual, Text: "one"},
		{Op: OpDelete, Text: "two"},
		{Op: OpInsert, Text: "2"},
		{Op: OpEqual, Text: "three"},
		{Op: OpInsert, Text: "four"},
	}, r.Lines)
}

func TestCompute_Binary(t *testing.T) {
	r := Compute("a.bin", snap, []byte{0, 1, 2}, []byte{0, 1, 3})
	assert.True(t, r.Binary)
	assert.False(t, r.Identical())
	assert.Empty(t, r.Lines)

	r = Compute("a.bin", snap, []byte{0, 1}, []byte{0, 1})
	assert.True(t, r.Identical())
}

func TestFormatHuman(t *testing.T) {
	color.Disable()
	defer color.Enable()

	old := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n"
	cur := "1\n2\n3\n4\n5\n6\n7\n8\n9\nten\n"
	out := Compute("a.txt", snap, []byte(old), []byte(cur)).FormatHuman(2)

	assert.Contains(t, out, "--- a.txt (Version 1, 01234567)\n")
	assert.Contains(t, out, "+++ a.txt (working copy)\n")
	assert.Contains(t, out, "@@\n 8\n 9\n-10\n+ten\n")
	assert.NotContains(t, out, " 7\n")
	assert.Contains(t, out, "1 added, 1 removed\n")
}

func TestFormatHuman_Identical(t *testing.T) {
	color.Disable()
	defer color.Enable()

	out := Compute("a.txt", snap, []byte("x\n"), []byte("x\n")).FormatHuman(DefaultContext)
	assert.Contains(t, out, "No changes.")
}
