package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rysavy-ondrej/project-inventor/internal/crypto"
)

func TestHash_KnownVector(t *testing.T) {
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		crypto.Hash("hello"),
	)
}

func TestCanonicalJSON_EmptyBody(t *testing.T) {
	out, err := crypto.CanonicalJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)

	out, err = crypto.CanonicalJSON([]byte{})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestCanonicalJSON_SortsObjectKeys(t *testing.T) {
	out, err := crypto.CanonicalJSON([]byte(`{"b":1,"a":2}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, out)
}

func TestCanonicalJSON_NestedAndArrays(t *testing.T) {
	out, err := crypto.CanonicalJSON([]byte(`{"z":[3,2,1],"a":{"y":1,"x":2}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"x":2,"y":1},"z":[3,2,1]}`, out)
}

func TestCanonicalJSON_Deterministic(t *testing.T) {
	a, err := crypto.CanonicalJSON([]byte(`{"b":1,"a":2,"c":3}`))
	require.NoError(t, err)
	b, err := crypto.CanonicalJSON([]byte(`{"c":3,"a":2,"b":1}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
