package redis

import (
	"math"
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   domain.Value
		want string
	}{
		{"null", domain.Null(), "null"},
		{"string", domain.String(`say "hi"\n`), `"say \"hi\"\\n"`},
		{"newline", domain.String("a\nb"), `"a\nb"`},
		{"int", domain.Int(-42), "-42"},
		{"whole float", domain.Float(3), "3.0"},
		{"float", domain.Float(0.25), "0.25"},
		{"bool", domain.Bool(true), "true"},
		{"list", domain.List(domain.Int(1), domain.String("a")), `[1, "a"]`},
		{"map", domain.Map(map[string]domain.Value{
			"b":      domain.Int(2),
			"a":      domain.Bool(false),
			"has sp": domain.Null(),
		}), "{a: false, b: 2, `has sp`: null}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Literal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLiteral_RejectsNaN(t *testing.T) {
	_, err := Literal(domain.Float(math.NaN()))
	assert.ErrorIs(t, err, domain.ErrUnsupportedValue)
}

func TestWithParams(t *testing.T) {
	got, err := WithParams("RETURN $a, $b", domain.Params{
		"b": domain.String("x"),
		"a": domain.Int(1),
	})
	require.NoError(t, err)
	assert.Equal(t, `CYPHER a=1 b="x" RETURN $a, $b`, got)

	got, err = WithParams("RETURN 1", nil)
	require.NoError(t, err)
	assert.Equal(t, "RETURN 1", got)

	_, err = WithParams("RETURN 1", domain.Params{"1bad": domain.Int(1)})
	assert.Error(t, err)
}
