package qchain

import (
	"fmt"
	"strings"
)

/*
Product names a product state. It is either a RawInteger, whose bit i is spin i,
or a Pattern of 'U' (up) and 'D' (down) characters where the leftmost character
is spin 0. Both forms describe the same integer; the string is only a display
convention.
*/
type Product interface {
	productState(L int) (uint64, error)
}

// RawInteger is a product state given directly as its integer encoding.
type RawInteger uint64

func (r RawInteger) productState(L int) (uint64, error) {
	return uint64(r), nil
}

// Pattern is a product state spelled out one site per character, e.g. "UUDD".
type Pattern string

const (
	up   = 'U'
	down = 'D'
)

func (p Pattern) productState(L int) (uint64, error) {
	if len(p) != L {
		return 0, fmt.Errorf("%w: state string must have length L=%d (got %d)", ErrValidation, L, len(p))
	}

	var state uint64
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case up:
			state |= uint64(1) << uint(i)
		case down:
		default:
			return 0, fmt.Errorf("%w: only characters U and D allowed in state (got %q)", ErrValidation, p[i])
		}
	}
	return state, nil
}

// PatternOf renders state over L sites in Pattern form.
func PatternOf(state uint64, L int) Pattern {
	var b strings.Builder
	b.Grow(L)
	for i := 0; i < L; i++ {
		if state>>uint(i)&1 == 1 {
			b.WriteByte(up)
		} else {
			b.WriteByte(down)
		}
	}
	return Pattern(b.String())
}

// AllUp returns the pattern with every one of the L spins up.
func AllUp(L int) Pattern {
	return Pattern(strings.Repeat(string(up), L))
}
