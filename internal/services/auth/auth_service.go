package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/cache"
	"github.com/Windi-Fikriyansyah/localserve/internal/middleware"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/utils"
)

var (
	errEmailTaken = apperrors.Conflict("EMAIL_TAKEN", "email is already registered")
	errPhoneTaken = apperrors.Conflict("PHONE_TAKEN", "phone number is already registered")
)

type AuthService struct {
	DB         *gorm.DB
	Cache      *cache.Client
	JWTSecret  string
	ExpiresMin int
	StatusTTL  time.Duration
}

func NewAuthService(db *gorm.DB, c *cache.Client, secret string, expiresMin int, statusTTL time.Duration) *AuthService {
	if statusTTL <= 0 {
		statusTTL = time.Minute
	}
	return &AuthService{DB: db, Cache: c, JWTSecret: secret, ExpiresMin: expiresMin, StatusTTL: statusTTL}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Role     models.Role
}

// Session is a signed token together with the user it was issued for.
type Session struct {
	User  *models.User
	Token string
}

// Register creates a client or provider account. Admins are never created here.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	phone := strings.TrimSpace(in.Phone)

	role := in.Role
	if role == "" {
		role = models.RoleClient
	}
	if role != models.RoleClient && role != models.RoleProvider {
		return nil, apperrors.Validation("role must be client or provider")
	}
	if name == "" || email == "" {
		return nil, apperrors.Validation("name and email are required")
	}
	if len(in.Password) < 6 {
		return nil, apperrors.Validation("password must be at least 6 characters")
	}

	gdb := s.DB.WithContext(ctx)
	if taken, err := exists(gdb, "email = ?", email); err != nil {
		return nil, err
	} else if taken {
		return nil, errEmailTaken
	}
	if phone != "" {
		if taken, err := exists(gdb, "phone = ?", phone); err != nil {
			return nil, err
		} else if taken {
			return nil, errPhoneTaken
		}
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := models.User{Name: name, Email: email, Password: hash, Role: role}
	// nil kalau kosong, biar unique index tidak bentrok
	if phone != "" {
		u.Phone = &phone
	}
	if err := gdb.Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errEmailTaken
		}
		return nil, err
	}
	return s.issue(&u)
}

// Login checks credentials. Suspended and banned users cannot sign in.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(u.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !u.IsActive() {
		return nil, apperrors.ErrAccountInactive
	}
	return s.issue(&u)
}

// GoogleUpsert signs in the account owning email, creating a client account
// on first use.
func (s *AuthService) GoogleUpsert(ctx context.Context, email, name string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" {
		return nil, apperrors.Validation("google account has no email")
	}

	gdb := s.DB.WithContext(ctx)
	var u models.User
	err := gdb.Where("email = ?", email).First(&u).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// password acak, tidak dipakai untuk login manual
		hash, err := utils.HashPassword(randomString(24))
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		u = models.User{Name: name, Email: email, Password: hash, Role: models.RoleClient}
		if err := gdb.Create(&u).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case name != "" && u.Name != name:
		if err := gdb.Model(&u).Update("name", name).Error; err != nil {
			return nil, err
		}
	}

	if !u.IsActive() {
		return nil, apperrors.ErrAccountInactive
	}
	return s.issue(&u)
}

// AccountState reads the role and activity of a user, cached for StatusTTL.
func (s *AuthService) AccountState(ctx context.Context, userID uuid.UUID) (middleware.AccountState, error) {
	var st middleware.AccountState
	key := statusKey(userID)
	if s.Cache.GetJSON(ctx, key, &st) {
		return st, nil
	}

	var u models.User
	if err := s.DB.WithContext(ctx).Select("id", "role", "status", "is_banned").First(&u, "id = ?", userID).Error; err != nil {
		return st, apperrors.FromDB(err, "user")
	}
	st = middleware.AccountState{Role: string(u.Role), Active: u.IsActive()}
	s.Cache.SetJSON(ctx, key, st, s.StatusTTL)
	return st, nil
}

// InvalidateStatus drops the cached state so the next request re-reads it.
func (s *AuthService) InvalidateStatus(ctx context.Context, userID uuid.UUID) {
	if err := s.Cache.Delete(ctx, statusKey(userID)); err != nil {
		log.Printf("[Auth] invalidate status of %s: %v", userID, err)
	}
}

func (s *AuthService) issue(u *models.User) (*Session, error) {
	token, err := utils.SignJWT(s.JWTSecret, u.ID.String(), string(u.Role), s.ExpiresMin)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token}, nil
}

func statusKey(id uuid.UUID) string {
	return "user:status:" + id.String()
}

func exists(gdb *gorm.DB, query string, args ...any) (bool, error) {
	var n int64
	err := gdb.Model(&models.User{}).Where(query, args...).Count(&n).Error
	return n > 0, err
}

func randomString(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
