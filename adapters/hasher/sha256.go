package hasher

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/satriahrh/cocoa-fruit/gateway/domain"
)

// New returns a domain.Hasher backed by HMAC-SHA-256. With an empty salt
// it degrades to plain SHA-256.
func New(salt []byte) domain.Hasher { return sha256Hasher{salt: salt} }

type sha256Hasher struct {
	salt []byte
}

func (h sha256Hasher) Hash(data []byte) string {
	if len(h.salt) == 0 {
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha256.New, h.salt)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
