package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/reconciler/internal/domain/integration"
	"gorm.io/gorm"
)

// GormCredentialRepository implements integration.CredentialRepository
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a new credential repository
func NewGormCredentialRepository(db *gorm.DB) *GormCredentialRepository {
	return &GormCredentialRepository{db: db}
}

// FindByProvider loads the token pair for provider
func (r *GormCredentialRepository) FindByProvider(ctx context.Context, provider string) (*integration.OAuthCredentials, error) {
	var model ERPCredentialModel
	err := r.db.WithContext(ctx).Where("provider = ?", provider).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", integration.ErrCredentialsNotFound, provider)
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials %s: %w", provider, err)
	}
	return model.ToEntity(), nil
}

// SaveTokens persists a rotated token pair and its expiry
func (r *GormCredentialRepository) SaveTokens(ctx context.Context, creds *integration.OAuthCredentials) error {
	res := r.db.WithContext(ctx).Model(&ERPCredentialModel{}).
		Where("provider = ?", creds.Provider).
		Updates(map[string]any{
			"access_token":  creds.AccessToken,
			"refresh_token": creds.RefreshToken,
			"expires_at":    creds.ExpiresAt,
			"updated_at":    creds.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("save credentials %s: %w", creds.Provider, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", integration.ErrCredentialsNotFound, creds.Provider)
	}
	return nil
}

var _ integration.CredentialRepository = (*GormCredentialRepository)(nil)
