package embed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_URLVariant(t *testing.T) {
	e, err := New(map[string]any{"url": "https://example.com/image.jpg"})
	require.NoError(t, err)

	assert.Equal(t, TypeURL, e.Type())
	assert.Equal(t, "https://example.com/image.jpg", e.URL)
	assert.Nil(t, e.CastID)
}

func TestNew_CastIDVariant(t *testing.T) {
	raw := testHashBytes()

	for _, key := range []string{"castId", "cast_id"} {
		e, err := New(map[string]any{
			key: map[string]any{"fid": float64(123), "hash": bufferRecord(raw)},
		})
		require.NoError(t, err, key)

		assert.Equal(t, TypeCastID, e.Type(), key)
		require.NotNil(t, e.CastID, key)
		assert.Equal(t, int64(123), e.CastID.FID, key)
		assert.Equal(t, raw, e.CastID.Hash.Bytes(), key)
	}
}

func TestNew_CamelCaseTakesPrecedence(t *testing.T) {
	camel := map[string]any{"fid": float64(1), "hash": "0x" + testHash(t).Hex()}

	e, err := New(map[string]any{
		"castId":  camel,
		"cast_id": map[string]any{"fid": float64(2), "hash": "0x" + testHash(t).Hex()},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.CastID.FID)
}

func TestNew_ExactlyOneVariant(t *testing.T) {
	castID := map[string]any{"fid": float64(1), "hash": "0x" + testHash(t).Hex()}

	tests := []struct {
		name string
		m    map[string]any
	}{
		{"both populated", map[string]any{"url": "https://example.com", "castId": castID}},
		{"neither populated", map[string]any{}},
		{"both explicit null", map[string]any{"url": nil, "castId": nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.m)
			assert.True(t, IsShapeError(err), "got %v", err)
		})
	}
}

func TestNew_MalformedFields(t *testing.T) {
	t.Run("url not a string", func(t *testing.T) {
		_, err := New(map[string]any{"url": float64(7)})
		assert.True(t, IsShapeError(err))
	})

	t.Run("castId not a map", func(t *testing.T) {
		_, err := New(map[string]any{"castId": "nope"})
		assert.True(t, IsShapeError(err))
	})

	t.Run("fid not an integer", func(t *testing.T) {
		_, err := New(map[string]any{"castId": map[string]any{"fid": "123", "hash": "0x" + testHash(t).Hex()}})
		assert.True(t, IsShapeError(err))
	})

	t.Run("bad hash propagates hash error", func(t *testing.T) {
		_, err := New(map[string]any{"castId": map[string]any{"fid": float64(1), "hash": "bogus!"}})
		assert.True(t, IsHashError(err))
	})
}

func TestEmbed_MapRoundTrip(t *testing.T) {
	embeds := []Embed{
		NewURLEmbed("https://example.com/a.jpg"),
		NewCastIDEmbed(999, testHash(t)),
	}

	for _, e := range embeds {
		got, err := New(e.AsMap())
		require.NoError(t, err)
		assert.True(t, e.Equal(got), "round trip changed %v", e)
	}
}

func TestEmbed_JSONRoundTrip(t *testing.T) {
	orig := NewCastIDEmbed(123, testHash(t))

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var got Embed
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, orig.Equal(got))
}

func testHash(t *testing.T) Hash {
	t.Helper()
	h, err := HashFromBytes(testHashBytes())
	require.NoError(t, err)
	return h
}
