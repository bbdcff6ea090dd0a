package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is the only error [Codec.Decode] returns. Bad signature,
// expiry, issuer, audience and malformed claims are deliberately not told
// apart.
var ErrInvalidToken = errors.New("invalid token")

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	// KindAccess marks short-lived tokens that carry scopes.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived tokens used only to mint access tokens.
	KindRefresh Kind = "refresh"
)

// Subject prefixes. Access subjects use "user" for wire compatibility with
// existing clients.
const (
	accessSubjectPrefix  = "user"
	refreshSubjectPrefix = "refresh"
)

// Config holds the codec settings. It is copied by [NewCodec].
type Config struct {
	Secret       []byte
	Issuer       string
	Audience     string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Leeway       time.Duration
	RequireIAT   bool
	MaxFutureIAT time.Duration

	// KeyID is written to the kid header of issued tokens. When VerifySecrets
	// is set, tokens are verified with the secret named by their kid, which
	// allows rotating the signing secret without logging everybody out.
	KeyID         string
	VerifySecrets map[string][]byte

	// Now overrides the clock for issuance and validation.
	Now func() time.Time
}

// Claims is the decoded claim set of a bearer token.
type Claims struct {
	Type   Kind     `json:"type"`
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Kind returns the token kind carried in the type claim.
func (c *Claims) Kind() Kind {
	return c.Type
}

// PrincipalID extracts the id from a "<kind>:<id>" subject. It returns ""
// when the subject does not match the claim type.
func (c *Claims) PrincipalID() string {
	id, ok := ParseSubject(c.Type, c.Subject)
	if !ok {
		return ""
	}
	return id
}

// HasScope reports whether scope was granted.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Codec issues and verifies HS256 tokens.
type Codec struct {
	config Config
}

// NewCodec validates cfg and returns a codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires a secret")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, secret := range cfg.VerifySecrets {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify secret map contains empty kid")
		}
		if len(secret) == 0 {
			return nil, fmt.Errorf("verify secret for kid %q is empty", kid)
		}
	}
	if cfg.KeyID != "" && len(cfg.VerifySecrets) > 0 {
		if _, ok := cfg.VerifySecrets[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifySecrets")
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Codec{config: cfg}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.config.RefreshTTL }

// Encode signs claims with exp=now+ttl, iat=now, the configured issuer and
// audience, and a fresh jti. The caller's Type, Subject and Scopes are kept.
func (c *Codec) Encode(claims *Claims, ttl time.Duration) (string, error) {
	if claims == nil {
		return "", errors.New("nil claims")
	}
	now := c.config.Now()

	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.Issuer = c.config.Issuer
	claims.Audience = nil
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}
	claims.ID = uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}
	return token.SignedString(c.signingSecret())
}

// IssueAccess mints an access token for principalID carrying scopes.
func (c *Codec) IssueAccess(principalID string, scopes []string) (string, *Claims, error) {
	claims := &Claims{
		Type:   KindAccess,
		Scopes: append([]string(nil), scopes...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: Subject(KindAccess, principalID),
		},
	}
	token, err := c.Encode(claims, c.config.AccessTTL)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// IssueRefresh mints a refresh token for principalID. Refresh tokens never
// carry scopes.
func (c *Codec) IssueRefresh(principalID string) (string, *Claims, error) {
	claims := &Claims{
		Type: KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: Subject(KindRefresh, principalID),
		},
	}
	token, err := c.Encode(claims, c.config.RefreshTTL)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Decode verifies signature, expiry, issuer, audience and claim shape in
// one step. Any failure yields [ErrInvalidToken].
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.config.Now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, c.keyFunc)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt != nil && c.config.MaxFutureIAT > 0 {
		if claims.IssuedAt.Time.After(c.config.Now().Add(c.config.MaxFutureIAT)) {
			return nil, ErrInvalidToken
		}
	}
	if claims.Type != KindAccess && claims.Type != KindRefresh {
		return nil, ErrInvalidToken
	}
	if claims.PrincipalID() == "" {
		return nil, ErrInvalidToken
	}
	if claims.Type == KindRefresh && len(claims.Scopes) > 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// DecodeKind decodes tokenStr and additionally requires the given kind.
func (c *Codec) DecodeKind(tokenStr string, kind Kind) (*Claims, error) {
	claims, err := c.Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Type != kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(c.config.VerifySecrets) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		secret, ok := c.config.VerifySecrets[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return secret, nil
	}

	if c.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != c.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return c.config.Secret, nil
}

func (c *Codec) signingSecret() []byte {
	if c.config.KeyID != "" {
		if secret, ok := c.config.VerifySecrets[c.config.KeyID]; ok {
			return secret
		}
	}
	return c.config.Secret
}

// Subject renders the "<prefix>:<id>" subject for kind.
func Subject(kind Kind, principalID string) string {
	return subjectPrefix(kind) + ":" + principalID
}

// ParseSubject splits subject and checks that its prefix belongs to kind.
func ParseSubject(kind Kind, subject string) (string, bool) {
	prefix, id, ok := strings.Cut(subject, ":")
	if !ok || id == "" || prefix != subjectPrefix(kind) {
		return "", false
	}
	return id, true
}

func subjectPrefix(kind Kind) string {
	if kind == KindRefresh {
		return refreshSubjectPrefix
	}
	return accessSubjectPrefix
}
