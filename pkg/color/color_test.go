package color

import (
	"os"
	"testing"

	fcolor "github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func withColor(t *testing.T, enabled bool) {
	orig := fcolor.NoColor
	t.Cleanup(func() { fcolor.NoColor = orig })
	if enabled {
		Enable()
	} else {
		Disable()
	}
}

func TestEnableDisable(t *testing.T) {
	withColor(t, true)
	assert.True(t, Enabled())

	Disable()
	assert.False(t, Enabled())
}

func TestFormatters_Disabled(t *testing.T) {
	withColor(t, false)

	for _, f := range []func(string) string{
		Success, Error, Warning, Info, SnapshotID, Line, Header, Dim, Highlight, Removed, Added,
	} {
		assert.Equal(t, "text", f("text"))
	}
	assert.Equal(t, "ok 3", Successf("ok %d", 3))
}

func TestFormatters_Enabled(t *testing.T) {
	withColor(t, true)

	out := Error("boom")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "\x1b[")
	assert.NotEqual(t, Success("x"), Error("x"))
}

func TestIsTerminal_Pipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()
	assert.False(t, IsTerminal(w))
}
