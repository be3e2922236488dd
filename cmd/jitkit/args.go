package main

import (
	"fmt"
	"strconv"
	"strings"

	"jitkit/internal/jit"
)

// parseArgs converts command line words to call arguments following the
// parameter types of fn.
func parseArgs(fn *jit.Function, words []string) ([]any, error) {
	params := fn.Signature().Params()
	if len(words) != len(params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", fn.Name(), len(params), len(words))
	}
	out := make([]any, len(words))
	for i, w := range words {
		v, err := parseArg(params[i], w)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseArg(t jit.Type, w string) (any, error) {
	switch {
	case t.Kind() == jit.TypeBool:
		return strconv.ParseBool(w)
	case t.IsStringz():
		return w, nil
	case t.IsFloat():
		return strconv.ParseFloat(w, 64)
	case t.IsUnsigned(), t.Kind() == jit.TypePointer:
		return strconv.ParseUint(w, 0, 64)
	case t.IsInteger():
		return strconv.ParseInt(w, 0, 64)
	default:
		return nil, fmt.Errorf("cannot pass %s from the command line", t)
	}
}

// parseSets splits comma separated argument sets, one set per word.
func parseSets(fn *jit.Function, words []string) ([][]any, error) {
	sets := make([][]any, len(words))
	for i, w := range words {
		var parts []string
		if w != "" {
			parts = strings.Split(w, ",")
		}
		args, err := parseArgs(fn, parts)
		if err != nil {
			return nil, fmt.Errorf("set %d: %w", i+1, err)
		}
		sets[i] = args
	}
	return sets, nil
}

func formatResult(res any) string {
	switch v := res.(type) {
	case nil:
		return "void"
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
