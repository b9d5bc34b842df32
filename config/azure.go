package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// ErrSecretNotFound is returned for a secret the vault does not hold.
var ErrSecretNotFound = errors.New("secret not found")

const secretTimeout = 10 * time.Second

// KeyVaultClient reads secrets from Azure Key Vault. It satisfies
// SecretSource.
type KeyVaultClient struct {
	client *azsecrets.Client
}

// NewKeyVaultClient creates a Key Vault client authenticated with
// DefaultAzureCredential (managed identity in Azure, CLI login locally).
// vault is a vault name or a full vault URL.
func NewKeyVaultClient(vault string) (*KeyVaultClient, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return newKeyVaultClient(vault, cred, nil)
}

func newKeyVaultClient(vault string, cred azcore.TokenCredential, opts *azsecrets.ClientOptions) (*KeyVaultClient, error) {
	client, err := azsecrets.NewClient(vaultURL(vault), cred, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return &KeyVaultClient{client: client}, nil
}

func vaultURL(vault string) string {
	if strings.HasPrefix(vault, "https://") {
		return strings.TrimSuffix(vault, "/") + "/"
	}
	return fmt.Sprintf("https://%s.vault.azure.net/", vault)
}

// GetSecret returns the latest version of a secret.
func (kv *KeyVaultClient) GetSecret(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, secretTimeout)
	defer cancel()

	resp, err := kv.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%s: %w", name, ErrSecretNotFound)
		}
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}

	if resp.Value == nil {
		return "", fmt.Errorf("%s: %w", name, ErrSecretNotFound)
	}
	return *resp.Value, nil
}
