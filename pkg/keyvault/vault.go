package keyvault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"sirius/pkg/config"
	apperrors "sirius/pkg/errors"
	"sirius/pkg/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"go.uber.org/zap"
)

// SecretsClient is the subset of *azsecrets.Client the vault uses
type SecretsClient interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
	DeleteSecret(ctx context.Context, name string, options *azsecrets.DeleteSecretOptions) (azsecrets.DeleteSecretResponse, error)
}

// Vault reads and writes secrets in one Azure Key Vault
type Vault struct {
	client SecretsClient
	logger *zap.Logger
}

// New connects to the vault at vaultURL with the default Azure credential chain
func New(vaultURL string) (*Vault, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, apperrors.NewSDKClientError("failed to obtain Azure credential", err)
	}

	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, apperrors.NewSDKClientError("failed to create Key Vault client", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient wraps an existing secrets client
func NewWithClient(client SecretsClient) *Vault {
	return &Vault{
		client: client,
		logger: logger.Named("keyvault"),
	}
}

var (
	defaultVault    *Vault
	defaultVaultErr error
	defaultOnce     sync.Once
)

// Default returns the process-wide vault configured by AZURE_KEY_VAULT_URL
func Default() (*Vault, error) {
	defaultOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			defaultVaultErr = err
			return
		}
		vaultURL, err := config.Require("AZURE_KEY_VAULT_URL", cfg.AzureKeyVaultURL)
		if err != nil {
			defaultVaultErr = err
			return
		}
		defaultVault, defaultVaultErr = New(vaultURL)
	})
	return defaultVault, defaultVaultErr
}

// SecretName converts an environment-style key to a valid Key Vault name, e.g. WISE_API_KEY -> wise-api-key
func SecretName(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", "-"))
}

// Get returns the latest version of the secret
func (v *Vault) Get(ctx context.Context, name string) (string, error) {
	resp, err := v.client.GetSecret(ctx, SecretName(name), "", nil)
	if err != nil {
		if isNotFound(err) {
			return "", apperrors.NewNotFound("secret", name)
		}
		return "", apperrors.NewSDKClientError(fmt.Sprintf("failed to get secret %s", name), err)
	}
	if resp.Value == nil {
		return "", apperrors.NewNotFound("secret", name)
	}
	return *resp.Value, nil
}

// Set creates the secret or adds a new version of it
func (v *Vault) Set(ctx context.Context, name, value string) error {
	_, err := v.client.SetSecret(ctx, SecretName(name), azsecrets.SetSecretParameters{Value: &value}, nil)
	if err != nil {
		return apperrors.NewSDKClientError(fmt.Sprintf("failed to set secret %s", name), err)
	}
	v.logger.Info("Secret set", zap.String("name", SecretName(name)))
	return nil
}

// Delete removes the secret. Deleting a missing secret is a no-op.
func (v *Vault) Delete(ctx context.Context, name string) error {
	_, err := v.client.DeleteSecret(ctx, SecretName(name), nil)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return apperrors.NewSDKClientError(fmt.Sprintf("failed to delete secret %s", name), err)
	}
	v.logger.Info("Secret deleted", zap.String("name", SecretName(name)))
	return nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
