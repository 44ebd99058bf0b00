package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/pkg/config"
	"github.com/vendorahq/vendora-backend/pkg/db/models"
	apperrors "github.com/vendorahq/vendora-backend/pkg/errors"
)

// CredentialSource loads the vendor row holding the encrypted key pair.
type CredentialSource interface {
	VendorByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Decrypter opens vault ciphertext. Satisfied by *vault.Vault.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Factory builds gateway clients scoped to a vendor's decrypted credentials
// or to the platform pair. Clients are built fresh on every call so a
// credential rotation takes effect on the next request.
type Factory struct {
	source   CredentialSource
	vault    Decrypter
	baseURL  string
	platform Credentials
	opts     ClientOptions
}

// FactoryParams wires a Factory.
type FactoryParams struct {
	Source CredentialSource
	Vault  Decrypter
	Config config.GatewayConfig
}

// NewFactory validates wiring and returns a Factory.
func NewFactory(params FactoryParams) (*Factory, error) {
	if params.Source == nil {
		return nil, errors.New("gateway factory requires a credential source")
	}
	if params.Vault == nil {
		return nil, errors.New("gateway factory requires a vault")
	}
	if params.Config.BaseURL == "" {
		return nil, errors.New("gateway factory requires a base url")
	}
	return &Factory{
		source:  params.Source,
		vault:   params.Vault,
		baseURL: params.Config.BaseURL,
		platform: Credentials{
			KeyID:     params.Config.KeyID,
			KeySecret: params.Config.KeySecret,
		},
		opts: ClientOptions{
			Timeout:  params.Config.Timeout,
			RetryMax: params.Config.RetryMax,
		},
	}, nil
}

// ForVendor returns a client bound to the vendor's decrypted key pair.
// Missing ciphertext and undecryptable ciphertext are distinct failures:
// the first is a vendor setup problem, the second an operational one.
func (f *Factory) ForVendor(ctx context.Context, vendorID uuid.UUID) (*Client, error) {
	vendor, err := f.source.VendorByID(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("loading vendor %s: %w", vendorID, err)
	}
	if !vendor.HasGatewayCredentials() {
		return nil, apperrors.New(apperrors.CodeCredentialsMissing, "vendor has no gateway credentials configured")
	}

	keyID, err := f.vault.Decrypt(*vendor.GatewayKeyIDCiphertext)
	if err != nil {
		return nil, err
	}
	keySecret, err := f.vault.Decrypt(*vendor.GatewayKeySecretCiphertext)
	if err != nil {
		return nil, err
	}

	return NewClient(f.baseURL, Credentials{KeyID: keyID, KeySecret: keySecret}, f.opts), nil
}

// ForPlatform returns a client bound to the platform-owned pair.
func (f *Factory) ForPlatform() *Client {
	return NewClient(f.baseURL, f.platform, f.opts)
}

// GormCredentialSource loads vendors straight from the users table.
type GormCredentialSource struct {
	db *gorm.DB
}

// NewGormCredentialSource wraps a gorm handle as a CredentialSource.
func NewGormCredentialSource(db *gorm.DB) *GormCredentialSource {
	return &GormCredentialSource{db: db}
}

// VendorByID fetches the vendor row by primary key.
func (s *GormCredentialSource) VendorByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "vendor not found")
		}
		return nil, err
	}
	return &user, nil
}
