package redis

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// WithParams prefixes query with a "CYPHER k=v ..." header, the way the graph
// module receives parameters. Keys are emitted in lexical order.
func WithParams(query string, params domain.Params) (string, error) {
	if len(params) == 0 {
		return query, nil
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if !identifier.MatchString(k) {
			return "", fmt.Errorf("invalid parameter name %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("CYPHER")
	for _, k := range keys {
		lit, err := Literal(params[k])
		if err != nil {
			return "", fmt.Errorf("parameter %q: %w", k, err)
		}
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(lit)
	}
	b.WriteByte(' ')
	b.WriteString(query)
	return b.String(), nil
}

// Literal renders v as a Cypher literal.
func Literal(v domain.Value) (string, error) {
	switch v.Kind() {
	case domain.KindNull:
		return "null", nil
	case domain.KindString:
		return quote(v.Str()), nil
	case domain.KindInt:
		return strconv.FormatInt(v.IntVal(), 10), nil
	case domain.KindFloat:
		f := v.FloatVal()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedValue, f)
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, nil
	case domain.KindBool:
		return strconv.FormatBool(v.BoolVal()), nil
	case domain.KindList:
		parts := make([]string, len(v.Items()))
		for i, item := range v.Items() {
			lit, err := Literal(item)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case domain.KindMap:
		keys := v.SortedKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			lit, err := Literal(v.Fields()[k])
			if err != nil {
				return "", err
			}
			name := k
			if !identifier.MatchString(k) {
				name = "`" + strings.ReplaceAll(k, "`", "``") + "`"
			}
			parts[i] = name + ": " + lit
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", fmt.Errorf("%w: kind %s", domain.ErrUnsupportedValue, v.Kind())
	}
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
