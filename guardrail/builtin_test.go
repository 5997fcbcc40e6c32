package guardrail

import (
	"testing"

	"github.com/smallnest/nodeflow/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins(t *testing.T) {
	matches, err := Matches(`^\d{3}$`)
	require.NoError(t, err)

	tests := []struct {
		name string
		rule Rule
		in   data.Data
		want bool
	}{
		{"not empty text", NotEmpty(), data.Text("x"), true},
		{"blank text", NotEmpty(), data.Text("  "), false},
		{"empty array", NotEmpty(), data.Must(data.String.Array(), []any{}), false},
		{"min length", MinLength(3), data.Text("héllo"), true},
		{"min length short", MinLength(3), data.Text("hé"), false},
		{"max length", MaxLength(2), data.Text("abc"), false},
		{"contains", Contains("WORLD"), data.Text("hello world"), true},
		{"matches", matches, data.Text("123"), true},
		{"matches number", matches, data.Must(data.Number, 1234), false},
		{"between", Between(0, 1), data.Must(data.Number, 0.5), true},
		{"between string", Between(0, 1), data.Text("2"), false},
		{"between not a number", Between(0, 1), data.Text("x"), false},
		{"one of", OneOf("yes", "no"), data.Text("no"), true},
		{"not", Not(OneOf("yes")), data.Text("yes"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.rule, tt.in))
		})
	}

	_, err = Matches("(")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	r, err := Build(Spec{Name: "maxLength", Value: 4.0})
	require.NoError(t, err)
	assert.Equal(t, "has at most 4 characters", r.Description())
	assert.True(t, Validate(r, data.Text("four")))

	r, err = Build(Spec{Name: "between", Value: []any{1.0, 10.0}})
	require.NoError(t, err)
	assert.True(t, Validate(r, data.Must(data.Number, 5)))

	r, err = Build(Spec{Name: "oneOf", Value: []any{"a", "b"}})
	require.NoError(t, err)
	assert.False(t, Validate(r, data.Text("c")))

	for _, bad := range []Spec{
		{Name: "nope"},
		{Name: "minLength", Value: "x"},
		{Name: "between", Value: []any{1.0}},
		{Name: "contains", Value: 3},
		{Name: "matches", Value: "("},
	} {
		_, err := Build(bad)
		assert.Error(t, err, bad.Name)
	}
}
