package iam

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"sirius/internal/httpclient"
	"sirius/pkg/common"
	"sirius/pkg/config"
	apperrors "sirius/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Identity is the caller described by a validated access token
type Identity struct {
	AudienceID             string    `json:"audience_id"`
	AuthenticatedTimestamp time.Time `json:"authenticated_timestamp"`
	InceptionTimestamp     time.Time `json:"inception_timestamp"`
	ExpiryTimestamp        time.Time `json:"expiry_timestamp"`
	ApplicationID          string    `json:"application_id"`
	Name                   string    `json:"name"`
	Scope                  string    `json:"scope"`
	UserID                 string    `json:"user_id"`
}

// Validator checks Entra ID access tokens against the tenant's published signing keys
type Validator struct {
	*EntraID

	cache   KeyCache
	session *httpclient.Session
	now     func() time.Time
}

// NewValidator caches keys in cache, or in memory when cache is nil
func NewValidator(entra *EntraID, cache KeyCache) *Validator {
	if cache == nil {
		cache = NewMemoryKeyCache()
	}
	return &Validator{
		EntraID: entra,
		cache:   cache,
		session: httpclient.NewSession("", nil),
		now:     time.Now,
	}
}

// DefaultValidator uses the environment's Entra ID application, sharing keys through REDIS_URL when set
func DefaultValidator() (*Validator, error) {
	entra, err := DefaultEntraID()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var cache KeyCache
	if redisURL := cfg.RedisURL; redisURL != "" {
		if cache, err = NewRedisKeyCacheFromURL(redisURL); err != nil {
			return nil, err
		}
	}
	return NewValidator(entra, cache), nil
}

// GetIdentityFromAccessToken verifies an RS256 token issued for this application.
// The development environment accepts any token and returns a test identity.
func (v *Validator) GetIdentityFromAccessToken(ctx context.Context, accessToken string) (*Identity, error) {
	if common.IsDevelopmentEnvironment() {
		now := v.now().UTC()
		return &Identity{
			AuthenticatedTimestamp: now,
			InceptionTimestamp:     now,
			ExpiryTimestamp:        now.Add(time.Hour),
			ApplicationID:          v.ClientID,
			Name:                   "Test Client",
			UserID:                 "client@test.com",
		}, nil
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || strings.TrimSpace(kid) == "" {
			return nil, errors.New("missing kid in token")
		}
		return v.signingKey(ctx, kid)
	})
	if err != nil {
		v.logger.Debug("Access token rejected", zap.Error(err))
		return nil, apperrors.NewInvalidAccessToken(err)
	}

	return identityFromClaims(claims), nil
}

func identityFromClaims(claims jwt.MapClaims) *Identity {
	identity := &Identity{
		ApplicationID: stringClaim(claims, "appid"),
		Name:          strings.TrimSpace(stringClaim(claims, "given_name") + " " + stringClaim(claims, "family_name")),
		Scope:         stringClaim(claims, "scp"),
		UserID:        stringClaim(claims, "unique_name"),
	}
	if aud, err := claims.GetAudience(); err == nil && len(aud) > 0 {
		identity.AudienceID = aud[0]
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		identity.AuthenticatedTimestamp = iat.UTC()
	}
	if nbf, err := claims.GetNotBefore(); err == nil && nbf != nil {
		identity.InceptionTimestamp = nbf.UTC()
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiryTimestamp = exp.UTC()
	}
	return identity
}

func stringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

type openIDConfiguration struct {
	JWKSURI string `json:"jwks_uri"`
}

type jwks struct {
	Keys []JWK `json:"keys"`
}

func (v *Validator) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok, err := v.cache.Get(ctx, kid)
	if err != nil {
		v.logger.Warn("Signing key cache unavailable", zap.Error(err))
	}
	if !ok {
		if key, err = v.fetchSigningKey(ctx, kid); err != nil {
			return nil, err
		}
		if err := v.cache.Set(ctx, kid, *key, SigningKeyTTL); err != nil {
			v.logger.Warn("Failed to cache signing key", zap.String("kid", kid), zap.Error(err))
		}
	}
	return parseRSAPublicKey(key.N, key.E)
}

func (v *Validator) fetchSigningKey(ctx context.Context, kid string) (*JWK, error) {
	configURL := fmt.Sprintf("%s/%s/.well-known/openid-configuration", v.authority, v.TenantID)
	oidc, err := httpclient.GetOne[openIDConfiguration](ctx, v.session, configURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read openid configuration: %w", err)
	}

	set, err := httpclient.GetOne[jwks](ctx, v.session, oidc.JWKSURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing keys: %w", err)
	}

	for _, key := range set.Keys {
		if key.Kid == kid {
			return &key, nil
		}
	}
	return nil, apperrors.NewNotFound("signing key", kid)
}

func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(n, "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(e, "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp uint64
	for _, b := range eb {
		exp = (exp << 8) | uint64(b)
	}
	if exp == 0 {
		return nil, errors.New("invalid exponent")
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp)}, nil
}
