package auth

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/Newrona-pi/Twilio-INPUT/internal/config"
)

// CredentialChecker verifies the single operator login against configured
// credentials. Comparison goes through SHA-256 digests so it is constant
// time and does not leak length.
type CredentialChecker struct {
	userDigest [32]byte
	passDigest [32]byte
}

func NewCredentialChecker(cfg config.AuthConfig) *CredentialChecker {
	return &CredentialChecker{
		userDigest: sha256.Sum256([]byte(cfg.AdminUser)),
		passDigest: sha256.Sum256([]byte(cfg.AdminPassword)),
	}
}

func (c *CredentialChecker) Check(user, password string) bool {
	u := sha256.Sum256([]byte(user))
	p := sha256.Sum256([]byte(password))
	userOK := subtle.ConstantTimeCompare(c.userDigest[:], u[:])
	passOK := subtle.ConstantTimeCompare(c.passDigest[:], p[:])
	return userOK&passOK == 1
}
