package progress

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DefaultsToNoop(t *testing.T) {
	p := New("push", 3, nil)
	assert.Equal(t, "push", p.Op)
	assert.Equal(t, 3, p.Total)
	p.Increment("no panic")
	assert.Equal(t, 1, p.Current())
}

func TestIncrementAndFail(t *testing.T) {
	type call struct {
		current, total int
		msg            string
	}
	var calls []call
	p := New("push", 2, func(op string, current, total int, message string) {
		assert.Equal(t, "push", op)
		calls = append(calls, call{current, total, message})
	})

	p.Increment("a")
	p.Fail("b", errors.New("rejected"))

	assert.Equal(t, []call{{1, 2, "a"}, {2, 2, "b failed: rejected"}}, calls)
	assert.Equal(t, 2, p.Current())
	assert.Equal(t, 1, p.Failed())
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	cb := NewPrinter(&buf).Callback()

	cb("push", 1, 12, "abc")
	cb("push", 12, 12, "")

	assert.Equal(t, "push [ 1/12] abc\npush [12/12]\n", buf.String())
}
