package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"agora/internal/models"
	"agora/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenKind separates access tokens from refresh tokens.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevokedToken = errors.New("token has been revoked")
)

// JWTConfig configures token signing.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Claims is the verified content of a token.
type Claims struct {
	UserID    uint
	Kind      TokenKind
	JTI       string
	ExpiresAt time.Time
}

// Tokens issues, verifies and revokes HS256 tokens. Revoked ids are kept in
// Redis until the token would have expired anyway.
type Tokens struct {
	cfg JWTConfig
	rdb *redis.Client
}

func NewTokens(cfg JWTConfig, rdb *redis.Client) *Tokens {
	return &Tokens{cfg: cfg, rdb: rdb}
}

// Issue signs a token of kind for userID.
func (t *Tokens) Issue(userID uint, kind TokenKind) (string, error) {
	ttl := t.cfg.AccessTTL
	if kind == RefreshToken {
		ttl = t.cfg.RefreshTTL
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": t.cfg.Issuer,
		"aud": t.cfg.Audience,
		"typ": string(kind),
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.cfg.Secret))
}

// Parse verifies signature, issuer, audience, kind and revocation.
func (t *Tokens) Parse(ctx context.Context, raw string, kind TokenKind) (*Claims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(t.cfg.Secret), nil
	},
		jwt.WithIssuer(t.cfg.Issuer),
		jwt.WithAudience(t.cfg.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if typ, _ := mc["typ"].(string); TokenKind(typ) != kind {
		return nil, ErrInvalidToken
	}
	sub, _ := mc["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidToken
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}
	jti, _ := mc["jti"].(string)

	if jti != "" && t.rdb != nil {
		n, err := t.rdb.Exists(ctx, blacklistKey(jti)).Result()
		if err != nil {
			observability.RedisErrors.WithLabelValues("token_blacklist").Inc()
		} else if n > 0 {
			return nil, ErrRevokedToken
		}
	}

	return &Claims{UserID: uint(userID), Kind: kind, JTI: jti, ExpiresAt: exp.Time}, nil
}

// Revoke blacklists the token id for its remaining lifetime.
func (t *Tokens) Revoke(ctx context.Context, c *Claims) error {
	if t.rdb == nil || c.JTI == "" {
		return nil
	}
	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return t.rdb.Set(ctx, blacklistKey(c.JTI), "1", ttl).Err()
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *fiber.Ctx) string {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthRequired rejects requests without a valid access token and stores the
// user id in c.Locals("userID") and the claims in c.Locals("claims").
func (t *Tokens) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := BearerToken(c)
		if raw == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authentication credentials were not provided."))
		}
		claims, err := t.Parse(c.UserContext(), raw, AccessToken)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, ErrRevokedToken) {
				msg = "Token has been revoked"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}

		c.Locals("userID", claims.UserID)
		c.Locals("claims", claims)
		c.SetUserContext(WithUserID(c.UserContext(), claims.UserID))
		return c.Next()
	}
}
