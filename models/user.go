package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campuslab/lostfound_backend/config"
	"github.com/campuslab/lostfound_backend/utils"
)

type User struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Username    string    `gorm:"size:50;not null;unique" json:"username"`
	Password    string    `gorm:"size:255;not null" json:"-"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	ContactInfo string    `gorm:"size:200;not null" json:"contact_info"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required,min=6"`
	Name        string `json:"name" binding:"required"`
	ContactInfo string `json:"contact_info" binding:"required"`
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginInfo struct {
	Token     string `json:"access_token"`
	TokenType string `json:"token_type"`
	Name      string `json:"name"`
	UserId    int    `json:"user_id"`
}

/*
caches:
	Token:$token  -> username
	Tokens:$username (set of live tokens)
*/

func RegisterUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := utils.ValidateContactInfo(input.ContactInfo); err != nil {
		return nil, utils.ValidationError("%s", err.Error())
	}
	if err := utils.ValidateUnique[User](ctx, "username", input.Username, 0); err != nil {
		return nil, utils.ValidationError("username already exists")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	user := User{
		Username:    strings.TrimSpace(input.Username),
		Password:    string(hashed),
		Name:        input.Name,
		ContactInfo: strings.TrimSpace(input.ContactInfo),
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func Login(ctx context.Context, input *LoginInput) (*LoginInfo, error) {
	db := config.GetDB()

	var user User
	if err := db.WithContext(ctx).Where("username = ?", input.Username).Take(&user).Error; err != nil {
		return nil, utils.UnauthorizedError("invalid username or password")
	}
	if err := utils.ComparePassword(user.Password, input.Password); err != nil {
		return nil, utils.UnauthorizedError("invalid username or password")
	}

	token, err := utils.JwtGenerate(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	// Best-effort session cache; JWT validation is the fallback when Redis
	// is unavailable.
	if err := config.SetRedisValue("Token:"+token, user.Username, 24*time.Hour); err != nil {
		config.GetLogger().Warn("failed to cache session token: " + err.Error())
	}
	if err := config.AddRedisSet("Tokens:"+user.Username, token); err != nil {
		config.GetLogger().Warn("failed to track session token: " + err.Error())
	}

	return &LoginInfo{
		Token:     token,
		TokenType: "bearer",
		Name:      user.Name,
		UserId:    user.ID,
	}, nil
}

// Logout destroys the current session token.
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, utils.UnauthorizedError("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, utils.UnauthorizedError("user not found")
	}
	if err := config.RemoveRedisSetMember("Tokens:"+username, token); err != nil {
		return false, err
	}
	return true, nil
}

// LogoutAll destroys every cached session token for the current user, for
// example after a password change on another device. Outstanding JWTs still
// expire on their own schedule.
func LogoutAll(ctx context.Context) (int, error) {
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return 0, utils.UnauthorizedError("user not found")
	}
	tokens, err := config.GetRedisSetMembers("Tokens:" + username)
	if err != nil {
		return 0, err
	}
	for _, token := range tokens {
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			return 0, err
		}
	}
	if err := config.RemoveRedisKey("Tokens:" + username); err != nil {
		return 0, err
	}
	return len(tokens), nil
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		return nil, utils.NotFoundError("user %q not found", username)
	}
	return &user, nil
}

// CurrentUser resolves the authenticated user from the request context.
func CurrentUser(ctx context.Context) (*User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if ok && userId > 0 {
		user, err := utils.FetchSingleModel[User](ctx, userId)
		if err != nil {
			return nil, utils.UnauthorizedError("user %d not found", userId)
		}
		return user, nil
	}
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return nil, utils.UnauthorizedError("authentication required")
	}
	// Profiles change rarely, so a short Redis cache spares a DB round trip
	// on every authenticated request.
	var cached User
	if found, err := config.GetRedisObject("User:"+username, &cached); err == nil && found {
		return &cached, nil
	}
	user, err := GetUserByUsername(ctx, username)
	if err != nil {
		return nil, utils.UnauthorizedError("user %q not found", username)
	}
	if err := config.SetRedisObject("User:"+user.Username, user, 10*time.Minute); err != nil {
		config.GetLogger().Warn("failed to cache user profile: " + err.Error())
	}
	return user, nil
}

func (u User) String() string {
	return fmt.Sprintf("User(%d %s)", u.ID, u.Username)
}
