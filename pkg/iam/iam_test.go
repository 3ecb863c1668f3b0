package iam

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	apperrors "sirius/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTenant = "tenant-1"
	testClient = "client-1"
	testKeyID  = "key-1"
)

type identityProvider struct {
	server    *httptest.Server
	key       *rsa.PrivateKey
	jwksCalls atomic.Int32
}

func newIdentityProvider(t *testing.T) *identityProvider {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p := &identityProvider{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /"+testTenant+"/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"jwks_uri":"`+p.server.URL+`/keys"}`)
	})
	mux.HandleFunc("GET /keys", func(w http.ResponseWriter, r *http.Request) {
		p.jwksCalls.Add(1)
		n := base64.RawURLEncoding.EncodeToString(key.N.Bytes())
		e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes())
		writeJSON(w, http.StatusOK, `{"keys":[{"kid":"other","kty":"RSA","n":"AQAB","e":"AQAB"},{"kid":"`+testKeyID+`","kty":"RSA","n":"`+n+`","e":"`+e+`"}]}`)
	})
	mux.HandleFunc("POST /"+testTenant+"/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, testClient, r.PostForm.Get("client_id"))

		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" {
				writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"AADSTS70008: The provided authorization code has expired."}`)
				return
			}
		case "urn:ietf:params:oauth:grant-type:device_code":
			assert.Equal(t, "device-123", r.PostForm.Get("device_code"))
		}
		writeJSON(w, http.StatusOK, `{"access_token":"access-abc","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("POST /"+testTenant+"/oauth2/v2.0/devicecode", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"device_code":"device-123","user_code":"ABCD-EFGH","verification_uri":"https://microsoft.com/devicelogin","expires_in":900,"interval":1}`)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (p *identityProvider) entra() *EntraID {
	return NewEntraID(testTenant, testClient, WithAuthority(p.server.URL))
}

func (p *identityProvider) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(p.key)
	require.NoError(t, err)
	return signed
}

func validClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"aud":         testClient,
		"iat":         now.Add(-time.Minute).Unix(),
		"nbf":         now.Add(-time.Minute).Unix(),
		"exp":         now.Add(time.Hour).Unix(),
		"appid":       "app-9",
		"given_name":  "Ada",
		"family_name": "Lovelace",
		"scp":         "User.Read",
		"unique_name": "ada@example.com",
	}
}

func TestGetLoginURL(t *testing.T) {
	entra := NewEntraID(testTenant, testClient)

	login, err := url.Parse(entra.GetLoginURL("https://app.example.com/callback", WithState("state-1")))
	require.NoError(t, err)

	assert.Equal(t, "login.microsoftonline.com", login.Host)
	assert.Equal(t, "/"+testTenant+"/oauth2/v2.0/authorize", login.Path)

	q := login.Query()
	assert.Equal(t, testClient, q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://app.example.com/callback", q.Get("redirect_uri"))
	assert.Equal(t, "query", q.Get("response_mode"))
	assert.Equal(t, DefaultScope, q.Get("scope"))
	assert.Equal(t, "state-1", q.Get("state"))

	generated, err := url.Parse(entra.GetLoginURL("https://app.example.com/callback", WithScope("openid profile")))
	require.NoError(t, err)
	assert.Equal(t, "openid profile", generated.Query().Get("scope"))
	assert.Len(t, generated.Query().Get("state"), 19)
}

func TestGetAccessToken(t *testing.T) {
	p := newIdentityProvider(t)

	token, err := p.entra().GetAccessToken(context.Background(), "good-code", "https://app.example.com/callback")
	require.NoError(t, err)
	assert.Equal(t, "access-abc", token)

	_, err = p.entra().GetAccessToken(context.Background(), "stale-code", "https://app.example.com/callback")
	require.Error(t, err)
	assert.True(t, apperrors.IsClientSide(err))
	assert.Contains(t, err.Error(), "AADSTS70008")
}

func TestDeviceFlow(t *testing.T) {
	p := newIdentityProvider(t)
	entra := p.entra()

	flow, err := entra.StartDeviceFlow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABCD-EFGH", flow.UserCode)
	assert.Contains(t, flow.Message, "https://microsoft.com/devicelogin")
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), flow.ExpiryTimestamp, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	token, err := entra.PollDeviceFlow(ctx, flow)
	require.NoError(t, err)
	assert.Equal(t, "access-abc", token)

	_, err = entra.PollDeviceFlow(ctx, &AuthenticationFlow{})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeSDK))
}

func TestValidator_GetIdentityFromAccessToken(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	p := newIdentityProvider(t)
	validator := NewValidator(p.entra(), nil)
	now := time.Now()

	identity, err := validator.GetIdentityFromAccessToken(context.Background(), p.sign(t, testKeyID, validClaims(now)))
	require.NoError(t, err)
	assert.Equal(t, testClient, identity.AudienceID)
	assert.Equal(t, "app-9", identity.ApplicationID)
	assert.Equal(t, "Ada Lovelace", identity.Name)
	assert.Equal(t, "User.Read", identity.Scope)
	assert.Equal(t, "ada@example.com", identity.UserID)
	assert.Equal(t, now.Add(time.Hour).Unix(), identity.ExpiryTimestamp.Unix())

	_, err = validator.GetIdentityFromAccessToken(context.Background(), p.sign(t, testKeyID, validClaims(now)))
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.jwksCalls.Load(), "signing keys are cached")
}

func TestValidator_RejectsInvalidTokens(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Test")
	p := newIdentityProvider(t)
	validator := NewValidator(p.entra(), nil)
	now := time.Now()

	wrongAudience := validClaims(now)
	wrongAudience["aud"] = "someone-else"
	expired := validClaims(now)
	expired["exp"] = now.Add(-time.Hour).Unix()
	noExpiry := validClaims(now)
	delete(noExpiry, "exp")

	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(now)).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong audience", token: p.sign(t, testKeyID, wrongAudience)},
		{name: "expired", token: p.sign(t, testKeyID, expired)},
		{name: "no expiry", token: p.sign(t, testKeyID, noExpiry)},
		{name: "unknown key", token: p.sign(t, "missing", validClaims(now))},
		{name: "wrong signing key", token: p.sign(t, "other", validClaims(now))},
		{name: "hmac", token: hs256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.GetIdentityFromAccessToken(context.Background(), tt.token)
			assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeAuth), "got %v", err)
		})
	}
}

func TestValidator_DevelopmentIdentity(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Development")
	validator := NewValidator(NewEntraID(testTenant, testClient), nil)

	identity, err := validator.GetIdentityFromAccessToken(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "Test Client", identity.Name)
	assert.Equal(t, "client@test.com", identity.UserID)
	assert.Equal(t, testClient, identity.ApplicationID)
	assert.Equal(t, time.Hour, identity.ExpiryTimestamp.Sub(identity.AuthenticatedTimestamp))
}

func TestRedisKeyCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisKeyCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, testKeyID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, testKeyID, JWK{Kid: testKeyID, Kty: "RSA", N: "n", E: "AQAB"}, SigningKeyTTL))
	key, ok, err := cache.Get(ctx, testKeyID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "AQAB", key.E)
	assert.Equal(t, SigningKeyTTL, mr.TTL("sirius:jwk:"+testKeyID))

	mr.FastForward(SigningKeyTTL + time.Second)
	_, ok, err = cache.Get(ctx, testKeyID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidator_UsesRedisKeyCache(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	mr := miniredis.RunT(t)
	p := newIdentityProvider(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	first := NewValidator(p.entra(), NewRedisKeyCache(client, ""))
	second := NewValidator(p.entra(), NewRedisKeyCache(client, ""))

	for _, v := range []*Validator{first, second} {
		_, err := v.GetIdentityFromAccessToken(context.Background(), p.sign(t, testKeyID, validClaims(time.Now())))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), p.jwksCalls.Load())
}

func TestMemoryKeyCache_Expires(t *testing.T) {
	cache := NewMemoryKeyCache()
	now := time.Now()
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(context.Background(), "k", JWK{Kid: "k"}, time.Minute))
	_, ok, _ := cache.Get(context.Background(), "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = cache.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestTwoFactorAuthentication(t *testing.T) {
	var tfa TwoFactorAuthentication
	hash := "user-secret-hash"

	uri := tfa.GetAuthenticatorURI("ada@example.com", "Sirius App", hash)
	assert.Equal(t, "otpauth://totp/Sirius%20App:ada@example.com?secret="+secret(hash)+"&issuer=Sirius%20App", uri)

	code, err := tfa.GetOTP(hash)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.True(t, tfa.IsOTPValid(code, hash))
	assert.False(t, tfa.IsOTPValid(code, "another-hash"))
}

func TestDefaultEntraID(t *testing.T) {
	tests := []struct {
		name      string
		tenantID  string
		clientID  string
		wantField string
	}{
		{name: "configured", tenantID: "tenant-1", clientID: "client-1"},
		{name: "missing tenant", clientID: "client-1", wantField: "ENTRA_ID_TENANT_ID"},
		{name: "missing client", tenantID: "tenant-1", wantField: "ENTRA_ID_CLIENT_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENTRA_ID_TENANT_ID", tt.tenantID)
			t.Setenv("ENTRA_ID_CLIENT_ID", tt.clientID)

			entra, err := DefaultEntraID()
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "tenant-1", entra.TenantID)
				return
			}

			var missing *apperrors.ErrConfigMissingRequired
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.wantField, missing.Field)
			assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
		})
	}
}
