package service

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"ebay_link_v1_202608/internal/middleware"
	"ebay_link_v1_202608/internal/repository"
)

const (
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials ServiceError = "invalid username or password"
	// ErrUserDisabled 用户已停用
	ErrUserDisabled ServiceError = "user account is disabled"
)

// UserService 系统用户服务（宿主应用登录）
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// LoginResult 登录结果
type LoginResult struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}

// Login 用户登录
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := middleware.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken: accessToken,
		Username:    user.Username,
		Role:        user.Role,
	}, nil
}

// HashPassword 生成密码哈希（建号脚本/测试用）
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(b), err
}
