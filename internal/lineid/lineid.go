// Package lineid allocates history line identifiers.
package lineid

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
)

// Length is the number of characters in a line identifier. 62^20 values
// keep birthday collisions negligible for any realistic number of files.
const Length = 20

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxByte is the largest multiple of len(alphabet) that fits in a byte;
// bytes at or above it are rejected so every character is equally likely.
const maxByte = 256 - 256%len(alphabet)

// DefaultMaxAttempts bounds the re-roll loop.
const DefaultMaxAttempts = 64

// TakenFunc reports whether id is already in use.
type TakenFunc func(ctx context.Context, id string) (bool, error)

// Allocator produces identifiers no TakenFunc reports as in use.
type Allocator struct {
	taken       []TakenFunc
	rand        io.Reader
	maxAttempts int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithRand replaces the random source (tests only).
func WithRand(r io.Reader) Option {
	return func(a *Allocator) { a.rand = r }
}

// WithMaxAttempts sets the re-roll limit.
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) { a.maxAttempts = n }
}

// NewAllocator creates an Allocator consulting every checker on each draw.
func NewAllocator(checkers []TakenFunc, opts ...Option) *Allocator {
	a := &Allocator{
		taken:       checkers,
		rand:        rand.Reader,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Allocate returns a fresh identifier.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		id, err := a.candidate()
		if err != nil {
			return "", err
		}
		inUse, err := a.inUse(ctx, id)
		if err != nil {
			return "", err
		}
		if !inUse {
			return id, nil
		}
	}
	return "", fmt.Errorf("allocate line id: no free identifier after %d attempts", a.maxAttempts)
}

func (a *Allocator) inUse(ctx context.Context, id string) (bool, error) {
	for _, taken := range a.taken {
		used, err := taken(ctx, id)
		if err != nil {
			return false, fmt.Errorf("check line id %s: %w", id, err)
		}
		if used {
			return true, nil
		}
	}
	return false, nil
}

func (a *Allocator) candidate() (string, error) {
	out := make([]byte, 0, Length)
	buf := make([]byte, Length)
	for len(out) < Length {
		if _, err := io.ReadFull(a.rand, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out), nil
}

// Valid reports whether s has the shape of an allocated identifier.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
