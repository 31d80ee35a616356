package auth

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/medrecsvc/domain"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestKeyPair(t *testing.T, seed byte) *KeyPair {
	t.Helper()
	kp, err := NewKeyPair(bytes.NewReader(bytes.Repeat([]byte{seed}, 64)))
	require.NoError(t, err)
	return kp
}

func newTestTokenService(t *testing.T, kp *KeyPair, clock *time.Time) *JWTServiceImpl {
	t.Helper()
	return NewJWTService(kp, TokenConfig{
		Issuer:         "medrecsvc-test",
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     24 * time.Hour,
		OTPTTL:         30 * time.Minute,
		OTPLength:      6,
		OTPMaxAttempts: 3,
		Now:            func() time.Time { return *clock },
	})
}

func testPending() *domain.PendingSignup {
	return &domain.PendingSignup{
		Email:        "dr.house@example.com",
		Role:         domain.RoleDoctor,
		Username:     "house",
		Mobile:       "5551234567",
		PasswordHash: "$2a$04$hash",
		CreatedAt:    testNow,
		ExpiresAt:    testNow.Add(time.Hour),
	}
}

func TestJWTService_IssueOTPToken(t *testing.T) {
	clock := testNow
	svc := newTestTokenService(t, newTestKeyPair(t, 1), &clock)

	issued, err := svc.IssueOTPToken("dr.house@example.com", "doctor_signup", testPending())
	require.NoError(t, err)

	assert.Len(t, issued.Code, 6)
	for _, r := range issued.Code {
		assert.True(t, r >= '0' && r <= '9', "code must be numeric: %q", issued.Code)
	}
	assert.NotEmpty(t, issued.JTI)
	assert.Equal(t, testNow.Add(30*time.Minute).Unix(), issued.ExpiresAt.Unix())
	assert.NotContains(t, issued.Token, issued.Code)

	claims, err := svc.ParseOTPToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "dr.house@example.com", claims.Email)
	assert.Equal(t, "doctor_signup", claims.Purpose)
	assert.Equal(t, 0, claims.Attempts)
	assert.Equal(t, 3, claims.MaxAttempts)
	assert.Equal(t, domain.TokenTypeOTP, claims.Type)
	assert.Equal(t, issued.JTI, claims.JTI)
	assert.Equal(t, testNow.Unix(), claims.IssuedAt)
	assert.Equal(t, domain.OTPDigest(svc.otpKey, issued.JTI, issued.Code), claims.CodeDigest)
	assert.Equal(t, domain.RoleDoctor, claims.Signup.Role)
	assert.Equal(t, "house", claims.Signup.Username)
	assert.Equal(t, "5551234567", claims.Signup.Mobile)
	assert.Equal(t, "$2a$04$hash", claims.Signup.PasswordHash)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), claims.Signup.ExpiresAt.Unix())
}

func TestJWTService_IssueOTPToken_RequiresPayload(t *testing.T) {
	clock := testNow
	svc := newTestTokenService(t, newTestKeyPair(t, 1), &clock)

	_, err := svc.IssueOTPToken("a@example.com", "patient_signup", nil)
	assert.Error(t, err)
}

func TestJWTService_VerifyOTPToken(t *testing.T) {
	clock := testNow
	svc := newTestTokenService(t, newTestKeyPair(t, 2), &clock)
	issued, err := svc.IssueOTPToken("dr.house@example.com", "doctor_signup", testPending())
	require.NoError(t, err)

	wrongCode := "000000"
	if issued.Code == wrongCode {
		wrongCode = "111111"
	}

	tests := []struct {
		name    string
		email   string
		code    string
		advance time.Duration
		wantErr error
	}{
		{name: "valid code", email: "dr.house@example.com", code: issued.Code},
		{name: "email compared case-insensitively", email: "Dr.House@Example.com", code: issued.Code},
		{name: "wrong code", email: "dr.house@example.com", code: wrongCode, wantErr: domain.ErrInvalidCode},
		{name: "wrong email", email: "someone@example.com", code: issued.Code, wantErr: domain.ErrEmailMismatch},
		{name: "expired before code is checked", email: "dr.house@example.com", code: issued.Code, advance: 31 * time.Minute, wantErr: domain.ErrTokenExpired},
		{name: "expired at exactly exp", email: "dr.house@example.com", code: issued.Code, advance: 30 * time.Minute, wantErr: domain.ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock = testNow.Add(tt.advance)
			claims, err := svc.VerifyOTPToken(issued.Token, tt.email, tt.code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, issued.JTI, claims.JTI)
		})
	}
}

func TestJWTService_TokenTypeSeparation(t *testing.T) {
	clock := testNow
	svc := newTestTokenService(t, newTestKeyPair(t, 3), &clock)

	access, err := svc.IssueAccessToken("D17400000001234", "a@example.com", "alice", domain.RoleDoctor, "doctor", domain.StatusActive)
	require.NoError(t, err)
	refresh, err := svc.IssueRefreshToken("D17400000001234", domain.RoleDoctor)
	require.NoError(t, err)
	otp, err := svc.IssueOTPToken("a@example.com", "doctor_signup", testPending())
	require.NoError(t, err)

	_, err = svc.ParseOTPToken(access)
	assert.ErrorIs(t, err, domain.ErrTokenWrongType, "access token used as OTP token")

	_, err = svc.ParseOTPToken(refresh)
	assert.ErrorIs(t, err, domain.ErrTokenWrongType, "refresh token used as OTP token")

	_, err = svc.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, domain.ErrTokenWrongType, "refresh token used as access token")

	_, err = svc.VerifyAccessToken(otp.Token)
	assert.ErrorIs(t, err, domain.ErrTokenWrongType, "OTP token used as access token")

	_, err = svc.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, domain.ErrTokenWrongType, "access token used as refresh token")
}

func TestJWTService_SessionTokens(t *testing.T) {
	clock := testNow
	svc := newTestTokenService(t, newTestKeyPair(t, 4), &clock)

	access, err := svc.IssueAccessToken("P17400000005678", "p@example.com", "pat", domain.RolePatient, "patient", domain.StatusPendingProfile)
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "P17400000005678", claims.UserID)
	assert.Equal(t, "p@example.com", claims.Email)
	assert.Equal(t, "pat", claims.Username)
	assert.Equal(t, domain.RolePatient, claims.Role)
	assert.Equal(t, "patient", claims.UserType)
	assert.Equal(t, domain.StatusPendingProfile, claims.Status)
	assert.Equal(t, domain.TokenTypeAccess, claims.Type)
	assert.Equal(t, testNow.Add(15*time.Minute).Unix(), claims.ExpiresAt)
	assert.NotEmpty(t, claims.JTI)

	refresh, err := svc.IssueRefreshToken("P17400000005678", domain.RolePatient)
	require.NoError(t, err)
	rc, err := svc.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenTypeRefresh, rc.Type)
	assert.Equal(t, "patient", rc.UserType)
	assert.NotEqual(t, claims.JTI, rc.JTI)

	clock = testNow.Add(16 * time.Minute)
	_, err = svc.VerifyAccessToken(access)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)

	_, err = svc.VerifyRefreshToken(refresh)
	assert.NoError(t, err, "refresh token outlives the access token")

	assert.Equal(t, 15*time.Minute, svc.AccessTTL())
}

func TestJWTService_RejectsForeignTokens(t *testing.T) {
	clock := testNow
	kp := newTestKeyPair(t, 5)
	svc := newTestTokenService(t, kp, &clock)
	other := newTestTokenService(t, newTestKeyPair(t, 6), &clock)

	foreign, err := other.IssueAccessToken("D1", "a@example.com", "a", domain.RoleDoctor, "doctor", domain.StatusActive)
	require.NoError(t, err)

	good, err := svc.IssueAccessToken("D1", "a@example.com", "a", domain.RoleDoctor, "doctor", domain.StatusActive)
	require.NoError(t, err)
	parts := strings.Split(good, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	hmac := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "D1",
		"type":    domain.TokenTypeAccess,
		"iss":     "medrecsvc-test",
		"exp":     testNow.Add(time.Hour).Unix(),
		"iat":     testNow.Unix(),
		"jti":     "x",
	})
	hmacToken, err := hmac.SignedString([]byte(kp.Public))
	require.NoError(t, err)

	wrongIssuer := NewJWTService(kp, TokenConfig{Issuer: "someone-else", AccessTTL: time.Minute, Now: func() time.Time { return clock }})
	otherIss, err := wrongIssuer.IssueAccessToken("D1", "a@example.com", "a", domain.RoleDoctor, "doctor", domain.StatusActive)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"signed by another key", foreign},
		{"tampered payload", tampered},
		{"hmac algorithm", hmacToken},
		{"wrong issuer", otherIss},
		{"garbage", "not-a-jwt"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.VerifyAccessToken(tt.token)
			assert.ErrorIs(t, err, domain.ErrTokenMalformed)
		})
	}
}

func TestVerifier_CannotSign(t *testing.T) {
	clock := testNow
	kp := newTestKeyPair(t, 7)
	signer := newTestTokenService(t, kp, &clock)
	verifier := NewVerifier(kp.Public, TokenConfig{Issuer: "medrecsvc-test", Now: func() time.Time { return clock }})

	token, err := signer.IssueRefreshToken("P1", domain.RolePatient)
	require.NoError(t, err)
	_, err = verifier.VerifyRefreshToken(token)
	assert.NoError(t, err)

	_, err = verifier.IssueRefreshToken("P1", domain.RolePatient)
	assert.Error(t, err)

	// without the private key there is no code MAC key either
	_, err = verifier.IssueOTPToken("a@example.com", "patient_signup", testPending())
	assert.Error(t, err)
	otp, err := signer.IssueOTPToken("a@example.com", "patient_signup", testPending())
	require.NoError(t, err)
	claims, err := verifier.ParseOTPToken(otp.Token)
	require.NoError(t, err)
	assert.Error(t, verifier.MatchOTPCode(claims, otp.Code))
	assert.NotErrorIs(t, verifier.MatchOTPCode(claims, otp.Code), domain.ErrInvalidCode)
}

func TestJWTService_MatchOTPCode(t *testing.T) {
	clock := testNow
	kp := newTestKeyPair(t, 9)
	svc := newTestTokenService(t, kp, &clock)
	issued, err := svc.IssueOTPToken("a@example.com", "doctor_signup", testPending())
	require.NoError(t, err)

	claims, err := svc.ParseOTPToken(issued.Token)
	require.NoError(t, err)
	assert.NoError(t, svc.MatchOTPCode(claims, issued.Code))
	assert.NoError(t, svc.MatchOTPCode(claims, " "+issued.Code+" "))
	assert.ErrorIs(t, svc.MatchOTPCode(claims, "not-it"), domain.ErrInvalidCode)

	// a restarted service on the same key pair accepts the code
	restarted := newTestTokenService(t, kp, &clock)
	assert.NoError(t, restarted.MatchOTPCode(claims, issued.Code))

	// a service with another key pair does not
	other := newTestTokenService(t, newTestKeyPair(t, 10), &clock)
	assert.ErrorIs(t, other.MatchOTPCode(claims, issued.Code), domain.ErrInvalidCode)
}

// The token is handed to the client, so nothing in its claims may let the code be searched offline
func TestJWTService_OTPClaimsDoNotRevealCode(t *testing.T) {
	clock := testNow
	svc := NewJWTService(newTestKeyPair(t, 11), TokenConfig{
		Issuer:    "medrecsvc-test",
		OTPTTL:    30 * time.Minute,
		OTPLength: 4,
		Now:       func() time.Time { return clock },
	})
	issued, err := svc.IssueOTPToken("a@example.com", "doctor_signup", testPending())
	require.NoError(t, err)

	raw := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(issued.Token, raw)
	require.NoError(t, err)
	jti, _ := raw["jti"].(string)
	digest, _ := raw["otp"].(string)
	require.NotEmpty(t, jti)
	require.NotEmpty(t, digest)

	guessKeys := [][]byte{nil, []byte(jti), deriveOTPKey(newTestKeyPair(t, 12).Private)}
	for code := 0; code < 10000; code++ {
		guess := fmt.Sprintf("%04d", code)
		unkeyed := sha256.Sum256([]byte(jti + ":" + guess))
		require.NotEqual(t, hex.EncodeToString(unkeyed[:]), digest, "code recoverable with a plain hash")
		for _, key := range guessKeys {
			require.NotEqual(t, domain.OTPDigest(key, jti, guess), digest, "code recoverable without the service key")
		}
	}

	claims, err := svc.ParseOTPToken(issued.Token)
	require.NoError(t, err)
	assert.NoError(t, svc.MatchOTPCode(claims, issued.Code))
}

func TestOTPClaims_CheckAttempts(t *testing.T) {
	clock := testNow
	svc := newTestTokenService(t, newTestKeyPair(t, 8), &clock)
	issued, err := svc.IssueOTPToken("a@example.com", "patient_signup", testPending())
	require.NoError(t, err)

	claims, err := svc.ParseOTPToken(issued.Token)
	require.NoError(t, err)

	assert.NoError(t, claims.Check(svc.otpKey, "a@example.com", issued.Code, 2))
	assert.ErrorIs(t, claims.Check(svc.otpKey, "a@example.com", issued.Code, 3), domain.ErrAttemptsExceeded)
	assert.ErrorIs(t, claims.Check(svc.otpKey, "b@example.com", issued.Code, 3), domain.ErrEmailMismatch, "email is checked before attempts")
}

func TestGenerateSecureCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateSecureCode(8)
		require.NoError(t, err)
		assert.Len(t, code, 8)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 40)
}
