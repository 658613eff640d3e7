package repository

import (
	"context"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/model"
	"gorm.io/gorm"
)

// UserRepository 用户存储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户存储
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 写入用户，邮箱重复时返回 Conflict
func (r *UserRepository) Create(ctx context.Context, user *model.UserModel) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return apperror.Conflict("User already registered!")
		}
		return apperror.StoreUnavailable(err)
	}
	return nil
}

// FindByEmail 根据邮箱查询
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.UserModel, error) {
	var user model.UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, storeError(err, "User not found")
	}
	return &user, nil
}

// FindByID 根据ID查询
func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.UserModel, error) {
	var user model.UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, storeError(err, "User not found")
	}
	return &user, nil
}

// FindNamesByIDs 批量查询用户名，不存在的ID不会出现在结果中
func (r *UserRepository) FindNamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var users []model.UserModel
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	for _, u := range users {
		names[u.Id] = u.Name
	}
	return names, nil
}

// Delete 删除用户
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.UserModel{}).Error; err != nil {
		return apperror.StoreUnavailable(err)
	}
	return nil
}
