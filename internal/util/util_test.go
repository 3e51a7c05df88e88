package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalJSON(t *testing.T) {
	type payload struct {
		Name Optional[string] `json:"name"`
	}

	out, err := json.Marshal(payload{Name: Some("alice")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"alice"}`, string(out))

	out, err = json.Marshal(payload{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":null}`, string(out))

	var in payload
	require.NoError(t, json.Unmarshal([]byte(`{"name":"bob"}`), &in))
	assert.True(t, in.Name.IsSet)
	assert.Equal(t, "bob", in.Name.Val)

	require.NoError(t, json.Unmarshal([]byte(`{"name":null}`), &in))
	assert.False(t, in.Name.IsSet)
}

func TestOptionalUnwrapOr(t *testing.T) {
	assert.Equal(t, 3, Some(3).UnwrapOr(7))
	assert.Equal(t, 7, None[int]().UnwrapOr(7))
}

func TestRandomToken(t *testing.T) {
	first, err := RandomToken(32)
	require.NoError(t, err)
	second, err := RandomToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, first, 43) // 32 bytes, unpadded base64
}

func TestEtag(t *testing.T) {
	type view struct {
		Names []string
	}

	a := Etag(view{Names: []string{"x", "y"}})
	b := Etag(view{Names: []string{"x", "y"}})
	c := Etag(view{Names: []string{"x", "z"}})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
