package logic

import (
	"context"
	"strings"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/auth"
	"github.com/blues/trustfunds/internal/logger"
	"github.com/blues/trustfunds/internal/model"
	"github.com/blues/trustfunds/internal/repository"
	"gorm.io/gorm"
)

// RegisterInput 注册参数
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UserLogic 用户注册与登录
type UserLogic struct {
	users *repository.UserRepository
	creds *auth.Credentials
}

// NewUserLogic 创建用户业务逻辑
func NewUserLogic(db *gorm.DB, creds *auth.Credentials) *UserLogic {
	return &UserLogic{
		users: repository.NewUserRepository(db),
		creds: creds,
	}
}

// Register 注册新用户，邮箱统一转为小写
func (l *UserLogic) Register(ctx context.Context, in RegisterInput) (*model.UserModel, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if len(name) < 4 {
		return nil, apperror.Validation("name must be at least 4 characters")
	}
	if len(email) < 6 || validate.Var(email, "email") != nil {
		return nil, apperror.Validation("email must be a valid address")
	}
	if len(in.Password) < 6 {
		return nil, apperror.Validation("password must be at least 6 characters")
	}

	// 先查询一次，唯一索引兜底并发注册
	_, err := l.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperror.Conflict("User already registered!")
	case !apperror.IsKind(err, apperror.KindNotFound):
		return nil, err
	}

	hash, err := l.creds.Hash(in.Password)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "Failed to hash password", err)
	}

	user := &model.UserModel{Name: name, Email: email, Password: hash}
	if err := l.users.Create(ctx, user); err != nil {
		return nil, err
	}
	logger.Info("User %s registered", user.Id)
	return user, nil
}

// Login 校验密码并签发令牌
func (l *UserLogic) Login(ctx context.Context, email, password string) (string, *model.UserModel, error) {
	user, err := l.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return "", nil, apperror.Unauthorized("Invalid credentials")
		}
		return "", nil, err
	}
	if !l.creds.Verify(password, user.Password) {
		return "", nil, apperror.Unauthorized("Invalid credentials")
	}

	token, err := l.creds.IssueToken(user.Id)
	if err != nil {
		return "", nil, apperror.Wrap(apperror.KindInternal, "Failed to issue token", err)
	}
	return token, user, nil
}

// Me 当前用户信息；用户被删除后令牌仍然有效，这里返回 NotFound
func (l *UserLogic) Me(ctx context.Context, userId string) (*model.UserModel, error) {
	return l.users.FindByID(ctx, userId)
}
