package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeSpec(t *testing.T) {
	spec := Types(String, Number)
	assert.True(t, spec.Accepts(String))
	assert.True(t, spec.Accepts(Number))
	assert.False(t, spec.Accepts(Boolean))
	assert.Equal(t, "string|number", spec.String())
	assert.Equal(t, String, spec.Primary())

	assert.True(t, Types(Unknown).Accepts(Object.Array()))
	assert.True(t, Types(Unknown.Array()).Accepts(Context.Array()))
	assert.False(t, Types(Unknown.Array()).Accepts(Context))
	assert.Equal(t, Unknown, TypeSpec(nil).Primary())
}

func TestCanConvert(t *testing.T) {
	assert.True(t, CanConvert(String, Types(String.Array())))
	assert.True(t, CanConvert(Number, Types(String)))
	assert.True(t, CanConvert(String.Array(), Types(String)))
	assert.True(t, CanConvert(Number.Array(), Types(String.Array())))
	assert.True(t, CanConvert(Unknown, Types(Boolean)))
	assert.False(t, CanConvert(Blob, Types(String)))
	assert.False(t, CanConvert(Object, Types(Number)))
	assert.False(t, CanConvert(Context, Types(ChatMessage)))
}

func TestConvert(t *testing.T) {
	t.Run("accepted as is", func(t *testing.T) {
		out, err := Convert(Text("a"), Types(String, Number))
		require.NoError(t, err)
		assert.Equal(t, Text("a"), out)
	})

	t.Run("scalar to array", func(t *testing.T) {
		out, err := Convert(Text("a"), Types(String.Array()))
		require.NoError(t, err)
		assert.Equal(t, String.Array(), out.Type)
		assert.Equal(t, []any{"a"}, out.Value)
	})

	t.Run("single element array to scalar", func(t *testing.T) {
		out, err := Convert(Data{Type: String.Array(), Value: []string{"only"}}, Types(String))
		require.NoError(t, err)
		assert.Equal(t, Text("only"), out)

		_, err = Convert(Data{Type: String.Array(), Value: []string{"a", "b"}}, Types(String))
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("scalars to string", func(t *testing.T) {
		out, err := Convert(Data{Type: Number, Value: 2.5}, Types(String))
		require.NoError(t, err)
		assert.Equal(t, Text("2.5"), out)

		out, err = Convert(Data{Type: Context, Value: Document{PageContent: "page"}}, Types(String))
		require.NoError(t, err)
		assert.Equal(t, Text("page"), out)

		out, err = Convert(Data{Type: Object, Value: map[string]any{"a": 1}}, Types(String))
		require.NoError(t, err)
		assert.Equal(t, Text(`{"a":1}`), out)
	})

	t.Run("string parsing", func(t *testing.T) {
		out, err := Convert(Text(" 12 "), Types(Number))
		require.NoError(t, err)
		assert.Equal(t, 12.0, out.Value)

		out, err = Convert(Text("true"), Types(Boolean))
		require.NoError(t, err)
		assert.Equal(t, true, out.Value)

		_, err = Convert(Text("twelve"), Types(Number))
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("unknown is inferred", func(t *testing.T) {
		out, err := Convert(Data{Type: Unknown, Value: "7"}, Types(Number))
		require.NoError(t, err)
		assert.Equal(t, 7.0, out.Value)
	})

	t.Run("falls through the union", func(t *testing.T) {
		out, err := Convert(Text("false"), Types(Number, Boolean))
		require.NoError(t, err)
		assert.Equal(t, Data{Type: Boolean, Value: false}, out)
	})
}
