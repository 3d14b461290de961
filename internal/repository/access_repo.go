package repository

import (
	"context"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// APIKeyRepository stores hashed third-party API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, k *model.APIKey) error
	FindByPrefix(ctx context.Context, prefix string) (*model.APIKey, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// UserRepository stores the role of identity-provider principals.
type UserRepository interface {
	FindByUID(ctx context.Context, uid string) (*model.User, error)
	Upsert(ctx context.Context, u *model.User) error
}

type apiKeyRepository struct{ db *gorm.DB }

func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository { return &apiKeyRepository{db: db} }

func (r *apiKeyRepository) Create(ctx context.Context, k *model.APIKey) error {
	return translate("create api key", r.db.WithContext(ctx).Create(k).Error)
}

func (r *apiKeyRepository) FindByPrefix(ctx context.Context, prefix string) (*model.APIKey, error) {
	var k model.APIKey
	if err := r.db.WithContext(ctx).Where("prefix = ?", prefix).First(&k).Error; err != nil {
		return nil, translate("find api key", err)
	}
	return &k, nil
}

func (r *apiKeyRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.APIKey{}).Where("id = ?", id).UpdateColumn("last_used_at", at).Error
	return translate("touch api key", err)
}

type userRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepository{db: db} }

func (r *userRepository) FindByUID(ctx context.Context, uid string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "uid = ?", uid).Error; err != nil {
		return nil, translate("find user", err)
	}
	return &u, nil
}

// Upsert inserts u or overwrites email, role and active flag of an existing uid.
func (r *userRepository) Upsert(ctx context.Context, u *model.User) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "role", "is_active", "updated_at"}),
	}).Create(u).Error
	return translate("upsert user", err)
}
