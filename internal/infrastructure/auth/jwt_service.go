package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/you/medrecsvc/domain"
	"golang.org/x/crypto/hkdf"
)

const otpKeyInfo = "medrecsvc otp code mac v1"

var errNoOTPKey = errors.New("token service has no otp key")

// TokenConfig holds lifetimes and OTP parameters for the token service
type TokenConfig struct {
	Issuer         string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	OTPTTL         time.Duration
	OTPLength      int
	OTPMaxAttempts int
	// Now overrides the clock, mainly for tests
	Now func() time.Time
}

// JWTServiceImpl implements domain.TokenService with Ed25519 signed JWTs
type JWTServiceImpl struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	// otpKey keys the code digest in OTP tokens; nil for verify-only services
	otpKey []byte
	cfg    TokenConfig
}

type signupPayload struct {
	Role         domain.Role `json:"role"`
	Username     string      `json:"username"`
	Mobile       string      `json:"mobile"`
	PasswordHash string      `json:"password_hash"`
	CreatedAt    int64       `json:"created_at"`
	ExpiresAt    int64       `json:"expires_at"`
}

type otpTokenClaims struct {
	OTP         string        `json:"otp"`
	Email       string        `json:"email"`
	Purpose     string        `json:"purpose"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	Type        string        `json:"type"`
	Signup      signupPayload `json:"signup"`
	jwt.RegisteredClaims
}

type sessionTokenClaims struct {
	UserID   string               `json:"user_id"`
	Email    string               `json:"email,omitempty"`
	Username string               `json:"username,omitempty"`
	Role     domain.Role          `json:"role"`
	UserType string               `json:"user_type"`
	Status   domain.AccountStatus `json:"status,omitempty"`
	Type     string               `json:"type"`
	jwt.RegisteredClaims
}

// NewJWTService creates a token service that signs with keys.Private
func NewJWTService(keys *KeyPair, cfg TokenConfig) *JWTServiceImpl {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.OTPLength == 0 {
		cfg.OTPLength = 6
	}
	if cfg.OTPMaxAttempts == 0 {
		cfg.OTPMaxAttempts = 3
	}
	svc := &JWTServiceImpl{
		privateKey: keys.Private,
		publicKey:  keys.Public,
		cfg:        cfg,
	}
	if len(keys.Private) == ed25519.PrivateKeySize {
		svc.otpKey = deriveOTPKey(keys.Private)
	}
	return svc
}

// deriveOTPKey derives the code MAC key from the signing seed, so it survives restarts
// with the key pair and never appears in a token
func deriveOTPKey(priv ed25519.PrivateKey) []byte {
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, priv.Seed(), nil, []byte(otpKeyInfo)), key); err != nil {
		panic(fmt.Sprintf("hkdf: %v", err))
	}
	return key
}

// NewVerifier creates a token service that can only verify tokens
func NewVerifier(publicKey ed25519.PublicKey, cfg TokenConfig) *JWTServiceImpl {
	return NewJWTService(&KeyPair{Public: publicKey}, cfg)
}

// AccessTTL implements domain.TokenService
func (j *JWTServiceImpl) AccessTTL() time.Duration {
	return j.cfg.AccessTTL
}

// IssueOTPToken implements domain.TokenService
func (j *JWTServiceImpl) IssueOTPToken(email, purpose string, pending *domain.PendingSignup) (*domain.IssuedOTP, error) {
	if pending == nil {
		return nil, errors.New("pending signup payload is required")
	}
	if j.otpKey == nil {
		return nil, errNoOTPKey
	}
	code, err := generateSecureCode(j.cfg.OTPLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP code: %w", err)
	}

	now := j.cfg.Now()
	exp := now.Add(j.cfg.OTPTTL)
	jti := uuid.NewString()
	claims := otpTokenClaims{
		OTP:         domain.OTPDigest(j.otpKey, jti, code),
		Email:       email,
		Purpose:     purpose,
		Attempts:    0,
		MaxAttempts: j.cfg.OTPMaxAttempts,
		Type:        domain.TokenTypeOTP,
		Signup: signupPayload{
			Role:         pending.Role,
			Username:     pending.Username,
			Mobile:       pending.Mobile,
			PasswordHash: pending.PasswordHash,
			CreatedAt:    pending.CreatedAt.Unix(),
			ExpiresAt:    pending.ExpiresAt.Unix(),
		},
		RegisteredClaims: j.registered(jti, now, exp),
	}

	token, err := j.sign(claims)
	if err != nil {
		return nil, err
	}
	return &domain.IssuedOTP{Code: code, Token: token, JTI: jti, ExpiresAt: time.Unix(exp.Unix(), 0)}, nil
}

// ParseOTPToken implements domain.TokenService. It checks signature, expiry and type only.
func (j *JWTServiceImpl) ParseOTPToken(tokenString string) (*domain.OTPClaims, error) {
	var claims otpTokenClaims
	if err := j.parse(tokenString, &claims); err != nil {
		return nil, err
	}
	if claims.Type != domain.TokenTypeOTP {
		return nil, domain.ErrTokenWrongType
	}
	if claims.ID == "" || claims.IssuedAt == nil {
		return nil, domain.ErrTokenMalformed
	}

	return &domain.OTPClaims{
		CodeDigest:  claims.OTP,
		Email:       claims.Email,
		Purpose:     claims.Purpose,
		Attempts:    claims.Attempts,
		MaxAttempts: claims.MaxAttempts,
		JTI:         claims.ID,
		IssuedAt:    claims.IssuedAt.Unix(),
		ExpiresAt:   claims.ExpiresAt.Unix(),
		Type:        claims.Type,
		Signup: domain.PendingSignup{
			Email:        claims.Email,
			Role:         claims.Signup.Role,
			Username:     claims.Signup.Username,
			Mobile:       claims.Signup.Mobile,
			PasswordHash: claims.Signup.PasswordHash,
			CreatedAt:    time.Unix(claims.Signup.CreatedAt, 0).UTC(),
			ExpiresAt:    time.Unix(claims.Signup.ExpiresAt, 0).UTC(),
		},
	}, nil
}

// VerifyOTPToken implements domain.TokenService. Attempts are judged from the token's own
// claim, which never changes after issuance; callers wanting a real limit track failures
// per jti and use MatchOTPCode.
func (j *JWTServiceImpl) VerifyOTPToken(tokenString, expectedEmail, code string) (*domain.OTPClaims, error) {
	if j.otpKey == nil {
		return nil, errNoOTPKey
	}
	claims, err := j.ParseOTPToken(tokenString)
	if err != nil {
		return nil, err
	}
	if err := claims.Check(j.otpKey, expectedEmail, code, claims.Attempts); err != nil {
		return nil, err
	}
	return claims, nil
}

// MatchOTPCode implements domain.TokenService. It returns ErrInvalidCode when code was not
// issued with the parsed token.
func (j *JWTServiceImpl) MatchOTPCode(claims *domain.OTPClaims, code string) error {
	if j.otpKey == nil {
		return errNoOTPKey
	}
	if !claims.MatchesCode(j.otpKey, code) {
		return domain.ErrInvalidCode
	}
	return nil
}

// IssueAccessToken implements domain.TokenService
func (j *JWTServiceImpl) IssueAccessToken(userID, email, username string, role domain.Role, userType string, status domain.AccountStatus) (string, error) {
	now := j.cfg.Now()
	claims := sessionTokenClaims{
		UserID:           userID,
		Email:            email,
		Username:         username,
		Role:             role,
		UserType:         userType,
		Status:           status,
		Type:             domain.TokenTypeAccess,
		RegisteredClaims: j.registered(uuid.NewString(), now, now.Add(j.cfg.AccessTTL)),
	}
	return j.sign(claims)
}

// IssueRefreshToken implements domain.TokenService
func (j *JWTServiceImpl) IssueRefreshToken(userID string, role domain.Role) (string, error) {
	now := j.cfg.Now()
	claims := sessionTokenClaims{
		UserID:           userID,
		Role:             role,
		UserType:         role.UserType(),
		Type:             domain.TokenTypeRefresh,
		RegisteredClaims: j.registered(uuid.NewString(), now, now.Add(j.cfg.RefreshTTL)),
	}
	return j.sign(claims)
}

// VerifyAccessToken implements domain.TokenService
func (j *JWTServiceImpl) VerifyAccessToken(tokenString string) (*domain.TokenClaims, error) {
	return j.verifySession(tokenString, domain.TokenTypeAccess)
}

// VerifyRefreshToken implements domain.TokenService
func (j *JWTServiceImpl) VerifyRefreshToken(tokenString string) (*domain.TokenClaims, error) {
	return j.verifySession(tokenString, domain.TokenTypeRefresh)
}

func (j *JWTServiceImpl) verifySession(tokenString, expectedType string) (*domain.TokenClaims, error) {
	var claims sessionTokenClaims
	if err := j.parse(tokenString, &claims); err != nil {
		return nil, err
	}
	if claims.Type != expectedType {
		return nil, domain.ErrTokenWrongType
	}
	if claims.UserID == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, domain.ErrTokenMalformed
	}

	return &domain.TokenClaims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Username:  claims.Username,
		Role:      claims.Role,
		UserType:  claims.UserType,
		Status:    claims.Status,
		JTI:       claims.ID,
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
		Type:      claims.Type,
	}, nil
}

func (j *JWTServiceImpl) registered(jti string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        jti,
		Issuer:    j.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func (j *JWTServiceImpl) sign(claims jwt.Claims) (string, error) {
	if len(j.privateKey) != ed25519.PrivateKeySize {
		return "", errors.New("token signer has no private key")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(j.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// parse verifies signature, issuer and expiry, mapping library errors to domain errors
func (j *JWTServiceImpl) parse(tokenString string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, domain.ErrTokenMalformed
		}
		return j.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(j.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.cfg.Now),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return domain.ErrTokenExpired
	}
	return domain.ErrTokenMalformed
}

// generateSecureCode generates a cryptographically secure numeric code
func generateSecureCode(length int) (string, error) {
	digits := make([]byte, length)

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte('0' + num.Int64())
	}

	return string(digits), nil
}

// Compile-time interface compliance verification
var _ domain.TokenService = (*JWTServiceImpl)(nil)
