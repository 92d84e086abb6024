package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/telephony/internal/apperr"
	"github.com/example/telephony/internal/config"
	"github.com/example/telephony/internal/models"
	"github.com/example/telephony/internal/utils"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=5,max=72"`
}

// LoginInput is the payload accepted by Login.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshInput carries a refresh token for Refresh and Logout.
type RefreshInput struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthService registers users and issues, rotates and revokes their tokens.
type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
	log *zap.Logger
	now func() time.Time

	// compared against on unknown emails so both failure paths cost one bcrypt check
	dummyHash string
}

// NewAuthService constructs an AuthService. It fails if the configured bcrypt
// cost cannot produce a hash.
func NewAuthService(db *gorm.DB, cfg *config.Config, log *zap.Logger) (*AuthService, error) {
	dummy, err := utils.HashPassword(uuid.NewString(), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AuthService{
		db:        db,
		cfg:       cfg,
		log:       log.Named("auth"),
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// Register creates a user. A taken email yields apperr.ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := utils.Validate(in); err != nil {
		return nil, err
	}
	if len(in.Password) > utils.MaxPasswordBytes {
		return nil, apperr.NewValidationError("password", fmt.Sprintf("must be at most %d bytes", utils.MaxPasswordBytes))
	}

	db := s.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", in.Email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing > 0 {
		return nil, errEmailTaken
	}

	passwordHash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Email:        in.Email,
		PasswordHash: passwordHash,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.Stringer("user_id", user.ID))
	return &user, nil
}

var errEmailTaken = fmt.Errorf("user with this email %w", apperr.ErrConflict)

// Login verifies credentials and issues a fresh token pair. Unknown emails and
// wrong passwords both yield apperr.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenPair, error) {
	in.Email = normalizeEmail(in.Email)
	if err := utils.Validate(in); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("email = ?", in.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.CheckPassword(s.dummyHash, in.Password)
			s.log.Info("login rejected")
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !utils.CheckPassword(user.PasswordHash, in.Password) {
		s.log.Info("login rejected", zap.Stringer("user_id", user.ID))
		return nil, apperr.ErrInvalidCredentials
	}

	pair, err := s.issueTokens(db, user.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("user logged in", zap.Stringer("user_id", user.ID))
	return pair, nil
}

// Refresh exchanges an active refresh token for a new pair. The presented
// token is revoked in the same transaction, so it works at most once.
func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (*TokenPair, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}

	hash := utils.HashRefreshToken(in.RefreshToken)
	var (
		pair   *TokenPair
		userID uuid.UUID
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.RefreshToken
		if err := tx.Where("token_hash = ?", hash).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrInvalidToken
			}
			return fmt.Errorf("lookup refresh token: %w", err)
		}

		now := s.now()
		if !rec.Active(now) {
			return apperr.ErrInvalidToken
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", rec.ID).
			Update("revoked_at", now)
		if res.Error != nil {
			return fmt.Errorf("revoke refresh token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrInvalidToken
		}

		var err error
		pair, err = s.issueTokens(tx, rec.UserID)
		userID = rec.UserID
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tokens refreshed", zap.Stringer("user_id", userID))
	return pair, nil
}

// Logout revokes refreshToken if it belongs to userID. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, in RefreshInput) error {
	if err := utils.Validate(in); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND user_id = ? AND revoked_at IS NULL", utils.HashRefreshToken(in.RefreshToken), userID).
		Update("revoked_at", s.now())
	if res.Error != nil {
		return fmt.Errorf("revoke refresh token: %w", res.Error)
	}

	s.log.Info("user logged out", zap.Stringer("user_id", userID), zap.Int64("revoked", res.RowsAffected))
	return nil
}

// CurrentUser loads the user behind a verified identity.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) issueTokens(tx *gorm.DB, userID uuid.UUID) (*TokenPair, error) {
	access, err := utils.GenerateToken(s.cfg.JWTSecret, userID, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := utils.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	rec := models.RefreshToken{
		UserID:    userID,
		TokenHash: utils.HashRefreshToken(refresh),
		ExpiresAt: s.now().Add(s.cfg.RefreshTokenTTL),
	}
	if err := tx.Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL / time.Second),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
