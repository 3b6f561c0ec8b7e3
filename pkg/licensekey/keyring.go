package licensekey

import "time"

// Keyring holds the ordered set of trusted secrets. The first secret signs new
// keys; every secret is accepted for verification so keys issued before a
// rotation keep working.
type Keyring struct {
	codecs []*Codec
}

// NewKeyring builds a keyring from secrets, current first. Empty entries after
// the first are skipped so an unset "previous" secret can be passed through.
func NewKeyring(secrets []string, opts ...Option) (*Keyring, error) {
	if len(secrets) == 0 || secrets[0] == "" {
		return nil, ErrEmptySecret
	}

	kr := &Keyring{}
	seen := make(map[string]bool, len(secrets))
	for _, s := range secrets {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		c, err := NewCodec(s, opts...)
		if err != nil {
			return nil, err
		}
		kr.codecs = append(kr.codecs, c)
	}
	return kr, nil
}

// MustKeyring is NewKeyring that panics on error. Intended for tests and
// static setup.
func MustKeyring(secrets ...string) *Keyring {
	kr, err := NewKeyring(secrets)
	if err != nil {
		panic(err)
	}
	return kr
}

// Len returns the number of trusted secrets.
func (k *Keyring) Len() int {
	return len(k.codecs)
}

// Current returns the signing codec.
func (k *Keyring) Current() *Codec {
	return k.codecs[0]
}

// Generate signs with the current secret.
func (k *Keyring) Generate(email, tier string, expiresAt time.Time) string {
	return k.Current().Generate(email, tier, expiresAt)
}

// Verify tries each trusted secret in order.
func (k *Keyring) Verify(email, key, tier string, expiresAt time.Time) bool {
	for _, c := range k.codecs {
		if c.Verify(email, key, tier, expiresAt) {
			return true
		}
	}
	return false
}

// VerifyFormatOnly checks the key grammar against the keyring prefix.
func (k *Keyring) VerifyFormatOnly(key string) bool {
	return k.Current().VerifyFormatOnly(key)
}
