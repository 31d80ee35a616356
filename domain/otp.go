package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// OTPDigest binds a code to the token it was issued with. key is a server-side
// secret, so the digest cannot be searched from the token's claims alone.
func OTPDigest(key []byte, jti, code string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(jti + ":" + code))
	return hex.EncodeToString(mac.Sum(nil))
}

// CheckEmail reports ErrEmailMismatch unless the token was issued for expectedEmail
func (c *OTPClaims) CheckEmail(expectedEmail string) error {
	if !strings.EqualFold(c.Email, strings.TrimSpace(expectedEmail)) {
		return ErrEmailMismatch
	}
	return nil
}

// Exhausted reports whether attempts failed verifications use up the token
func (c *OTPClaims) Exhausted(attempts int) bool {
	return max(c.Attempts, attempts) >= c.MaxAttempts
}

// MatchesCode reports whether code is the one issued with the token, given the issuer's MAC key
func (c *OTPClaims) MatchesCode(key []byte, code string) bool {
	digest := OTPDigest(key, c.JTI, strings.TrimSpace(code))
	return hmac.Equal([]byte(digest), []byte(c.CodeDigest))
}

// Check validates the claims against the caller's email and code.
// attempts is the number of failed verifications already recorded for the token.
func (c *OTPClaims) Check(key []byte, expectedEmail, code string, attempts int) error {
	if err := c.CheckEmail(expectedEmail); err != nil {
		return err
	}
	if c.Exhausted(attempts) {
		return ErrAttemptsExceeded
	}
	if !c.MatchesCode(key, code) {
		return ErrInvalidCode
	}
	return nil
}
