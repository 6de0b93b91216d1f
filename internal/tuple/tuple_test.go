package tuple

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldEqual(t *testing.T) {
	h := sha256.Sum256([]byte("7"))

	assert.True(t, String("7").Equal(String("7")))
	assert.False(t, String("7").Equal(String("8")))
	assert.True(t, Binary(h[:]).Equal(Binary(h[:])))
	assert.False(t, String("task").Equal(Atom("task")), "kind participates in equality")
}

func TestPatternMatches(t *testing.T) {
	h := sha256.Sum256([]byte("7"))
	h2 := sha256.Sum256([]byte("8"))

	tup := New(String("7"), Binary(h[:]))

	tests := []struct {
		name    string
		pattern Pattern
		want    bool
	}{
		{"all wildcards", NewPattern(Any(), Any()), true},
		{"wildcard plus literal hash", NewPattern(Any(), LitBinary(h[:])), true},
		{"exact literals", NewPattern(LitString("7"), LitBinary(h[:])), true},
		{"wrong hash", NewPattern(Any(), LitBinary(h2[:])), false},
		{"wrong password", NewPattern(LitString("8"), Any()), false},
		{"arity too short", NewPattern(Any()), false},
		{"arity too long", NewPattern(Any(), Any(), Any()), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.pattern.Matches(tup))
		})
	}
}

func TestPatternMatchesAtoms(t *testing.T) {
	h := sha256.Sum256([]byte("pw"))
	task := New(Atom("search_task"), Binary(h[:]))

	assert.True(t, NewPattern(LitAtom("search_task"), Any()).Matches(task))
	assert.False(t, NewPattern(LitString("search_task"), Any()).Matches(task),
		"a string literal must not match an atom of the same spelling")
}

func TestTupleClone(t *testing.T) {
	h := sha256.Sum256([]byte("x"))
	orig := New(String("x"), Binary(h[:]))

	cp := orig.Clone()
	require.True(t, orig.Equal(cp))

	cp[1].Bin[0] ^= 0xff
	assert.False(t, orig.Equal(cp), "clone must not alias binary payloads")
}

func TestTupleString(t *testing.T) {
	tup := New(Atom("found_password"), String("7"))
	assert.Equal(t, `(found_password, "7")`, tup.String())

	p := NewPattern(Any(), LitString("7"))
	assert.Equal(t, `(_, "7")`, p.String())
}
