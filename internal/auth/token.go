package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"inkwell/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenIssuer is the iss claim of every credential this service signs
	TokenIssuer = "inkwell"

	// DefaultTokenTTL is how long an issued credential stays valid
	DefaultTokenTTL = 24 * time.Hour
)

var (
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrCredentialExpired  = errors.New("credential expired")
	ErrPrincipalNotFound  = errors.New("principal not found")
	ErrAccountBanned      = errors.New("account banned")
	ErrMissingTokenSecret = errors.New("token secret is required")
)

// Claims carried by a bearer credential. Ban state is deliberately absent;
// it is read from the store on every request.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 bearer credentials
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption configures an Issuer
type IssuerOption func(*Issuer)

// WithTokenClock overrides the issuer's time source
func WithTokenClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an issuer. A zero ttl falls back to DefaultTokenTTL.
func NewIssuer(secret []byte, ttl time.Duration, opts ...IssuerOption) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrMissingTokenSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	i := &Issuer{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the lifetime of issued credentials
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a credential for user and returns it with its expiry
func (i *Issuer) Issue(user *models.User) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies raw and returns the user id it was issued for.
// Expired credentials yield ErrCredentialExpired, anything else that fails
// verification yields ErrInvalidCredential.
func (i *Issuer) Parse(raw string) (int64, *Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, nil, ErrCredentialExpired
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !parsed.Valid {
		return 0, nil, ErrInvalidCredential
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, fmt.Errorf("%w: bad subject %q", ErrInvalidCredential, claims.Subject)
	}
	return id, claims, nil
}
