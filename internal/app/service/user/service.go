// Package user manages staff accounts and the signed session token that
// identifies them to the API.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/fatflowers/repairdesk/internal/models"
	"github.com/fatflowers/repairdesk/pkg/apperr"
	"github.com/fatflowers/repairdesk/pkg/config"
	"github.com/fatflowers/repairdesk/pkg/logctx"
	"github.com/fatflowers/repairdesk/pkg/tool"
	"github.com/fatflowers/repairdesk/pkg/types"
)

const tokenIssuer = "repairdesk"

// Claims is the session token payload.
type Claims struct {
	UserID string         `json:"userId"`
	Email  string         `json:"email"`
	Name   string         `json:"name"`
	Role   types.UserRole `json:"role"`
	jwt.StandardClaims
}

type Service struct {
	db     *gorm.DB
	log    *zap.SugaredLogger
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(db *gorm.DB, log *zap.SugaredLogger, cfg *config.Config) *Service {
	ttl := cfg.Auth.TokenTTL()
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{db: db, log: log, secret: []byte(cfg.Auth.JWTSecret), ttl: ttl, now: time.Now}
}

// List returns users sorted by name, optionally restricted to one role.
func (s *Service) List(ctx context.Context, role string) ([]models.User, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if role = strings.ToUpper(strings.TrimSpace(role)); role != "" {
		q = q.Where("role = ?", role)
	}
	users := make([]models.User, 0)
	if err := q.Order("name ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

type CreateInput struct {
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Role     types.UserRole `json:"role"`
	Password string         `json:"password"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = types.UserRoleStaff
	}
	var missing []string
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, apperr.Invalid("missing required fields: %s", strings.Join(missing, ", "))
	}
	if !in.Role.Valid() {
		return nil, apperr.Invalid("unknown role %q", in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u := &models.User{
		ID:           tool.GenerateUUIDV7(),
		Email:        in.Email,
		Name:         in.Name,
		Role:         in.Role,
		PasswordHash: string(hash),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", in.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("user %s already exists", in.Email)
		}
		return tx.Create(u).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("user_created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Session is what a successful login returns.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Login checks the password and issues a signed session token. Unknown
// emails and wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Invalid("email and password are required")
	}
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		logctx.FromCtx(ctx, s.log).Infow("login_failed", "user_id", u.ID)
		return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}

	token, exp, err := s.Issue(&u)
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("login_succeeded", "user_id", u.ID)
	return &Session{Token: token, ExpiresAt: exp, User: &u}, nil
}

// Issue signs an HS256 token for u.
func (s *Service) Issue(u *models.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   u.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: exp.Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, exp, nil
}

// Parse verifies a session token and returns its claims.
func (s *Service) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing session token", apperr.ErrUnauthorized)
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid session token", apperr.ErrUnauthorized)
	}
	return claims, nil
}
