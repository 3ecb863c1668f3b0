package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPError_Classification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		clientSide bool
	}{
		{name: "bad request", statusCode: http.StatusBadRequest, clientSide: true},
		{name: "not found", statusCode: http.StatusNotFound, clientSide: true},
		{name: "upper client bound", statusCode: 499, clientSide: true},
		{name: "internal server error", statusCode: http.StatusInternalServerError, clientSide: false},
		{name: "bad gateway", statusCode: http.StatusBadGateway, clientSide: false},
		{name: "redirect surfaced as failure", statusCode: http.StatusMovedPermanently, clientSide: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewHTTPError("get", "https://example.com/x", tt.statusCode, http.Header{}, "body")
			assert.Equal(t, tt.clientSide, IsClientSide(err))
			assert.Equal(t, !tt.clientSide, IsServerSide(err))
			assert.True(t, IsErrorType(err, ErrorTypeHTTP))
		})
	}
}

func TestHTTPError_MessageListsRequest(t *testing.T) {
	err := NewHTTPError("post", "https://example.com/x", 418, http.Header{"X-Test": []string{"1"}}, "teapot")

	var clientErr *ClientSideError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, "POST", clientErr.Method)
	assert.Equal(t, 418, clientErr.StatusCode)
	assert.Contains(t, err.Error(), "URL: https://example.com/x")
	assert.Contains(t, err.Error(), "Response Code: 418")
	assert.Contains(t, err.Error(), "Response Text: teapot")
}

func TestIsErrorType_WalksWrapChain(t *testing.T) {
	base := NewNotFound("currency", "EUR")
	wrapped := fmt.Errorf("lookup failed: %w", base)

	assert.True(t, IsErrorType(wrapped, ErrorTypeNotFound))
	assert.False(t, IsErrorType(wrapped, ErrorTypeDuplicate))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsErrorType(errors.New("plain"), ErrorTypeNotFound))
	assert.False(t, IsErrorType(nil, ErrorTypeNotFound))
}

func TestDomainErrors(t *testing.T) {
	dup := NewDuplicateFound("server", "Aorta", 2)
	assert.Equal(t, 2, dup.Count)
	assert.Contains(t, dup.Error(), "duplicate server found: Aorta")

	ns := NewOperationNotSupported("transfer", "currency mismatch")
	assert.True(t, IsErrorType(ns, ErrorTypeNotSupported))

	cfg := NewConfigMissingRequired("MONGO_DB_CONNECTION_STRING")
	assert.Equal(t, "[config] missing required config: MONGO_DB_CONNECTION_STRING", cfg.Error())

	inner := errors.New("signature is invalid")
	tok := NewInvalidAccessToken(inner)
	assert.ErrorIs(t, tok, inner)
	assert.True(t, IsErrorType(tok, ErrorTypeAuth))
}
