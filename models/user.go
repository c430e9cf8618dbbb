package models

import (
	"context"
	"errors"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100" json:"name"`
	Email     *string   `gorm:"size:100;unique" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required,min=8"`
}

/*
caches:
	User:$username
	Token:$token
	Tokens:$username
*/

func (user User) RemoveInstanceRedis() error {
	if err := config.RemoveRedisKey("User:" + user.Username); err != nil {
		return err
	}
	return nil
}

type LoginInfo struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

const userCacheTTL = time.Hour

// cachedUser carries the password hash through redis. User marshals the
// hash as json:"-", so caching User directly would store a user that can
// never pass ComparePassword again.
type cachedUser struct {
	ID       int     `json:"id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Email    *string `json:"email"`
	Password string  `json:"password"`
	IsActive *bool   `json:"is_active"`
}

func newCachedUser(user User) cachedUser {
	return cachedUser{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Email:    user.Email,
		Password: user.Password,
		IsActive: user.IsActive,
	}
}

func (cached cachedUser) toUser() User {
	return User{
		ID:       cached.ID,
		Username: cached.Username,
		Name:     cached.Name,
		Email:    cached.Email,
		Password: cached.Password,
		IsActive: cached.IsActive,
	}
}

func (result *User) PrepareGive() {
	result.Password = ""
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	db := config.GetDB()
	var count int64

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return &User{}, errors.New("invalid email address")
	}

	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", input.Username).Or("email = ?", input.Email).Count(&count).Error
	if err != nil {
		return &User{}, err
	}
	if count > 0 {
		return &User{}, errors.New("duplicate username or email")
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return &User{}, err
	}
	input.Email = strings.ToLower(input.Email)

	user := User{
		Username: html.EscapeString(strings.TrimSpace(input.Username)),
		Name:     input.Name,
		Email:    utils.NilIfEmpty(input.Email),
		Password: string(hashedPassword),
		IsActive: utils.NewTrue(),
	}

	err = db.WithContext(ctx).Create(&user).Error
	if err != nil {
		return &User{}, err
	}
	user.Password = ""
	return &user, nil
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	var err error
	var result LoginInfo

	user := User{}

	var cached cachedUser
	exists, err := config.GetRedisObject("User:"+username, &cached)
	if err != nil {
		return &result, err
	}
	if exists {
		user = cached.toUser()
	} else {
		err = db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error

		if err != nil {
			return &result, errors.New("invalid username or password")
		}
		// best effort; a cold cache only costs the next login a DB read
		_ = config.SetRedisObject("User:"+username, newCachedUser(user), userCacheTTL)
	}

	err = utils.ComparePassword(user.Password, password)

	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return &result, errors.New("invalid username or password")
	}

	isActive := user.IsActive != nil && *user.IsActive
	if !isActive {
		return &result, errors.New("user is disabled")
	}

	token, err := utils.JwtGenerate(user.ID, user.Username)
	if err != nil {
		return &result, err
	}
	result.Token = token
	result.Name = user.Name
	result.Username = user.Username

	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		tokenLifespan = 24
	}

	// add new token to the user's tokens set
	if err := config.AddRedisSet("Tokens:"+user.Username, token); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue("Token:"+token, user.Username, time.Duration(tokenLifespan)*time.Hour); err != nil {
		return &result, err
	}

	return &result, nil
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	err := config.RemoveRedisKey("Token:" + token)
	if err != nil {
		return false, nil
	}
	// remove current token from tokens list
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, errors.New("user not found")
	}
	if err := config.RemoveRedisSetMember("Tokens:"+username, token); err != nil {
		return false, err
	}
	return true, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {

	db := config.GetDB()
	var result User

	err := db.WithContext(ctx).First(&result, id).Error

	if err != nil {
		return &result, utils.ErrorRecordNotFound
	}

	result.PrepareGive()

	return &result, nil
}

func (user *User) DestroyAllSessions(ctx context.Context) error {
	allTokens, err := config.GetRedisSetMembers("Tokens:" + user.Username)
	if err != nil {
		return err
	}
	for _, token := range allTokens {
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			return err
		}
	}
	if err := config.RemoveRedisKey("Tokens:" + user.Username); err != nil {
		return err
	}

	return nil
}

func ChangePassword(ctx context.Context, oldPassword string, newPassword string) (*User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}

	var user User
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&user, userId).Error; err != nil {
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, oldPassword); err != nil {
		return nil, errors.New("old password is wrong")
	}

	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&user).UpdateColumn("password", string(hashedPassword)).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := user.RemoveInstanceRedis(); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := user.DestroyAllSessions(ctx); err != nil {
		tx.Rollback()
		return nil, err
	}

	return &user, tx.Commit().Error
}
