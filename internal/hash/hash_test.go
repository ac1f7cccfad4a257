package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	t.Parallel()

	encoded, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))
	assert.NotContains(t, encoded, "correct horse")

	assert.True(t, CheckPassword(encoded, "correct horse battery staple"))
	assert.False(t, CheckPassword(encoded, "wrong password"))
	assert.False(t, CheckPassword(encoded, ""))
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	t.Parallel()

	a, err := HashPassword("same password")
	require.NoError(t, err)
	b, err := HashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, CheckPassword(a, "same password"))
	assert.True(t, CheckPassword(b, "same password"))
}

func TestCheckPassword_MalformedEncoding(t *testing.T) {
	t.Parallel()

	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=65536,t=1,p=4$notbase64!!$alsobad",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
	} {
		assert.False(t, CheckPassword(encoded, "anything"), "encoded=%q", encoded)
	}
}
