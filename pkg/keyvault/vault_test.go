package keyvault

import (
	"context"
	"errors"
	"net/http"
	"testing"

	apperrors "sirius/pkg/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	values  map[string]string
	failErr error
}

func newFakeSecrets() *fakeSecrets {
	return &fakeSecrets{values: map[string]string{}}
}

func notFound() error {
	return &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "SecretNotFound"}
}

func (f *fakeSecrets) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	if f.failErr != nil {
		return azsecrets.GetSecretResponse{}, f.failErr
	}
	value, ok := f.values[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, notFound()
	}
	return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{Value: &value}}, nil
}

func (f *fakeSecrets) SetSecret(_ context.Context, name string, parameters azsecrets.SetSecretParameters, _ *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	f.values[name] = *parameters.Value
	return azsecrets.SetSecretResponse{}, nil
}

func (f *fakeSecrets) DeleteSecret(_ context.Context, name string, _ *azsecrets.DeleteSecretOptions) (azsecrets.DeleteSecretResponse, error) {
	if _, ok := f.values[name]; !ok {
		return azsecrets.DeleteSecretResponse{}, notFound()
	}
	delete(f.values, name)
	return azsecrets.DeleteSecretResponse{}, nil
}

func TestSecretName(t *testing.T) {
	tests := map[string]string{
		"APPLICATION_NAME":             "application-name",
		"WISE_PRIMARY_ACCOUNT_API_KEY": "wise-primary-account-api-key",
		"Tests-abcd":                   "tests-abcd",
	}
	for in, want := range tests {
		assert.Equal(t, want, SecretName(in))
	}
}

func TestVault_SecretLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSecrets()
	vault := NewWithClient(fake)

	require.NoError(t, vault.Set(ctx, "DISCORD_BOT_TOKEN", "token"))
	assert.Equal(t, "token", fake.values["discord-bot-token"])

	value, err := vault.Get(ctx, "DISCORD_BOT_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "token", value)

	require.NoError(t, vault.Delete(ctx, "DISCORD_BOT_TOKEN"))
	require.NoError(t, vault.Delete(ctx, "DISCORD_BOT_TOKEN"))

	_, err = vault.Get(ctx, "DISCORD_BOT_TOKEN")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestVault_GetWrapsOtherFailures(t *testing.T) {
	fake := newFakeSecrets()
	fake.failErr = errors.New("forbidden by policy")

	_, err := NewWithClient(fake).Get(context.Background(), "ANY")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeSDK))
	assert.False(t, apperrors.IsNotFound(err))
}
