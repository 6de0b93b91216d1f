package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuplespace/internal/tuple"
)

func TestParseTuple(t *testing.T) {
	tup, err := parseTuple([]string{"hello", "str:a:b", "atom:done", "bin:deadbeef"})
	require.NoError(t, err)
	require.Len(t, tup, 4)

	assert.Equal(t, tuple.String("hello"), tup[0])
	assert.Equal(t, tuple.String("a:b"), tup[1])
	assert.Equal(t, tuple.Atom("done"), tup[2])
	assert.Equal(t, tuple.Binary([]byte{0xde, 0xad, 0xbe, 0xef}), tup[3])
}

func TestParseTupleBadHex(t *testing.T) {
	_, err := parseTuple([]string{"bin:zz"})
	require.Error(t, err)
}

func TestParsePatternWildcards(t *testing.T) {
	p, err := parsePattern([]string{"atom:found", "_"})
	require.NoError(t, err)
	require.Len(t, p, 2)

	assert.False(t, p[0].Wildcard)
	assert.True(t, p[1].Wildcard)
	assert.True(t, p.Matches(tuple.New(tuple.Atom("found"), tuple.String("7"))))
	assert.False(t, p.Matches(tuple.New(tuple.Atom("other"), tuple.String("7"))))
}

func TestParsePatternEmptyAtom(t *testing.T) {
	_, err := parsePattern([]string{"atom:"})
	require.Error(t, err)
}
