package acmejson_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cpu/acmecore/acme/acmejson"
)

func TestBuilder_PreservesInsertionOrder(t *testing.T) {
	b := acmejson.NewBuilder().Put("z", 1).Put("a", 2).Put("m", 3)
	out, err := b.Bytes()
	require.NoError(t, err)
	require.JSONEq(t, `{"z":1,"a":2,"m":3}`, string(out))
	require.Equal(t, `{"z":1,"a":2,"m":3}`, string(out))
}

func TestBuilder_RepeatedKeyKeepsFirstPosition(t *testing.T) {
	b := acmejson.NewBuilder().Put("a", 1).Put("b", 2).Put("a", 3)
	out, err := b.Bytes()
	require.NoError(t, err)
	require.Equal(t, `{"a":3,"b":2}`, string(out))
}

func TestBuilder_PutIfNotEmptySkipsEmptyStrings(t *testing.T) {
	b := acmejson.NewBuilder().PutIfNotEmpty("profile", "")
	require.Equal(t, 0, b.Len())
	b.PutIfNotEmpty("profile", "classic")
	require.Equal(t, 1, b.Len())
}

func TestBuilder_EqualComparesCanonicalJSON(t *testing.T) {
	a := acmejson.NewBuilder().Put("x", 1).Put("y", 2)
	b := acmejson.NewBuilder().Put("x", 1).Put("y", 2)
	c := acmejson.NewBuilder().Put("y", 2).Put("x", 1)

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c), "different insertion order produces different canonical JSON")
}
