// Package tuple defines the immutable record model of the space: ordered,
// fixed-arity sequences of typed fields, and the templates used to match
// them.
package tuple

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Kind discriminates the field payload.
type Kind string

const (
	KindString Kind = "str"
	KindBinary Kind = "bin"
	KindAtom   Kind = "atom"
)

// Field is a single typed tuple element. Exactly one payload is set,
// selected by Kind.
type Field struct {
	Kind Kind   `json:"kind"`
	Str  string `json:"str,omitempty"`
	Bin  []byte `json:"bin,omitempty"`
}

func String(s string) Field { return Field{Kind: KindString, Str: s} }
func Binary(b []byte) Field { return Field{Kind: KindBinary, Bin: b} }
func Atom(a string) Field   { return Field{Kind: KindAtom, Str: a} }

func (f Field) Equal(other Field) bool {
	if f.Kind != other.Kind {
		return false
	}
	switch f.Kind {
	case KindBinary:
		return bytes.Equal(f.Bin, other.Bin)
	default:
		return f.Str == other.Str
	}
}

func (f Field) String() string {
	switch f.Kind {
	case KindBinary:
		return "0x" + hex.EncodeToString(f.Bin)
	case KindAtom:
		return f.Str
	default:
		return fmt.Sprintf("%q", f.Str)
	}
}

// Tuple is an ordered, fixed-arity record. Tuples are immutable once
// stored; callers must not mutate fields after insertion.
type Tuple []Field

func New(fields ...Field) Tuple { return Tuple(fields) }

func (t Tuple) Arity() int { return len(t) }

func (t Tuple) Equal(other Tuple) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if !t[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, f := range t {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Clone returns a deep copy; binary payloads are duplicated so the stored
// instance cannot alias caller memory.
func (t Tuple) Clone() Tuple {
	cp := make(Tuple, len(t))
	for i, f := range t {
		if f.Kind == KindBinary {
			f.Bin = append([]byte(nil), f.Bin...)
		}
		cp[i] = f
	}
	return cp
}
