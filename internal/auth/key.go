package auth

import "golang.org/x/crypto/bcrypt"

// KeyVerifier checks device keys against a single bcrypt hash.
type KeyVerifier struct {
	hash []byte
}

func NewKeyVerifier(hash string) *KeyVerifier {
	return &KeyVerifier{hash: []byte(hash)}
}

// Verify returns nil when plain matches the stored hash.
func (v *KeyVerifier) Verify(plain string) error {
	return bcrypt.CompareHashAndPassword(v.hash, []byte(plain))
}

// HashKey hashes a device key for the HARDWARE_KEY_HASH setting.
// A cost of 0 uses bcrypt.DefaultCost.
func HashKey(plain string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
