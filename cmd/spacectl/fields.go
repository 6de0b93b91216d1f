package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"tuplespace/internal/tuple"
)

// Field syntax on the command line:
//
//	hello        string "hello"
//	str:a:b      string "a:b" (explicit prefix keeps colons literal)
//	atom:done    atom done
//	bin:deadbeef binary, hex encoded
//
// Patterns additionally accept _ as a wildcard.

func parseField(arg string) (tuple.Field, error) {
	switch {
	case strings.HasPrefix(arg, "str:"):
		return tuple.String(arg[len("str:"):]), nil
	case strings.HasPrefix(arg, "atom:"):
		name := arg[len("atom:"):]
		if name == "" {
			return tuple.Field{}, fmt.Errorf("empty atom name")
		}
		return tuple.Atom(name), nil
	case strings.HasPrefix(arg, "bin:"):
		data, err := hex.DecodeString(arg[len("bin:"):])
		if err != nil {
			return tuple.Field{}, fmt.Errorf("invalid hex in %q: %w", arg, err)
		}
		return tuple.Binary(data), nil
	default:
		return tuple.String(arg), nil
	}
}

func parseTuple(args []string) (tuple.Tuple, error) {
	fields := make([]tuple.Field, 0, len(args))
	for _, arg := range args {
		f, err := parseField(arg)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return tuple.New(fields...), nil
}

func parsePattern(args []string) (tuple.Pattern, error) {
	fields := make([]tuple.PatternField, 0, len(args))
	for _, arg := range args {
		if arg == "_" {
			fields = append(fields, tuple.Any())
			continue
		}
		f, err := parseField(arg)
		if err != nil {
			return nil, err
		}
		fields = append(fields, tuple.Lit(f))
	}
	return tuple.NewPattern(fields...), nil
}
