package licensekey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyring_RotationAcceptsPreviousSecret(t *testing.T) {
	exp := time.Now().Add(30 * 24 * time.Hour)
	old := MustKeyring("s1")
	key := old.Generate("user@example.com", "pro", exp)

	rotated := MustKeyring("s2", "s1")
	assert.True(t, rotated.Verify("user@example.com", key, "pro", exp))

	fresh := rotated.Generate("user@example.com", "pro", exp)
	assert.NotEqual(t, key, fresh, "new keys are signed with the current secret")
	assert.True(t, rotated.Verify("user@example.com", fresh, "pro", exp))

	retired := MustKeyring("s2")
	assert.False(t, retired.Verify("user@example.com", key, "pro", exp))
}

func TestNewKeyring(t *testing.T) {
	t.Run("skips empty and duplicate secrets", func(t *testing.T) {
		kr, err := NewKeyring([]string{"s1", "", "s1", "s0"})
		require.NoError(t, err)
		assert.Equal(t, 2, kr.Len())
	})

	t.Run("requires a current secret", func(t *testing.T) {
		_, err := NewKeyring([]string{"", "s1"})
		assert.ErrorIs(t, err, ErrEmptySecret)

		_, err = NewKeyring(nil)
		assert.ErrorIs(t, err, ErrEmptySecret)
	})

	t.Run("options apply to every codec", func(t *testing.T) {
		kr, err := NewKeyring([]string{"s1", "s0"}, WithPrefix("ACME"))
		require.NoError(t, err)
		assert.True(t, kr.VerifyFormatOnly("ACME-00000000-00000000-00000000"))
		assert.False(t, kr.VerifyFormatOnly("FLACO-00000000-00000000-00000000"))
	})
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  USER@Example.Com "))
	assert.Equal(t, "FLACO-ABCDEF01-00000000-00000000", NormalizeKey(" flaco-abcdef01-00000000-00000000\n"))
}
