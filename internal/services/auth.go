package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/requestdata"
	"github.com/jcopacetic/lumi/internal/types"
	"github.com/jcopacetic/lumi/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*types.User, *types.UserToken, error)
	Refresh(ctx context.Context, refreshToken string) (*types.User, *types.UserToken, error)
	Logout(ctx context.Context) error
	// SetContextFromToken validates an access token and attaches the
	// authenticated identity to the returned context.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	// CreateUser hashes the password and persists the user inside the given
	// transaction, which may be nil.
	CreateUser(ctx context.Context, tx *gorm.DB, user *types.User, password string) (*types.User, error)
	IssueTokens(ctx context.Context, tx *gorm.DB, user *types.User) (*types.UserToken, error)
}

type authService struct {
	log        *logger.Logger
	db         *gorm.DB
	users      repos.UserRepo
	userTokens repos.UserTokenRepo

	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(
	log *logger.Logger,
	db *gorm.DB,
	users repos.UserRepo,
	userTokens repos.UserTokenRepo,
) (AuthService, error) {
	serviceLog := log.With("service", "AuthService")

	secret := strings.TrimSpace(utils.GetEnv("JWT_SECRET", "", serviceLog))
	if secret == "" {
		return nil, fmt.Errorf("missing JWT_SECRET")
	}

	accessMinutes := utils.GetEnvAsInt("AUTH_ACCESS_TTL_MINUTES", 60, serviceLog)
	refreshDays := utils.GetEnvAsInt("AUTH_REFRESH_TTL_DAYS", 30, serviceLog)

	return &authService{
		log:        serviceLog,
		db:         db,
		users:      users,
		userTokens: userTokens,
		jwtSecret:  []byte(secret),
		accessTTL:  time.Duration(accessMinutes) * time.Minute,
		refreshTTL: time.Duration(refreshDays) * 24 * time.Hour,
	}, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*types.User, *types.UserToken, error) {
	user, err := s.users.GetByEmail(ctx, nil, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	var token *types.UserToken
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userTokens.DeleteByUserID(ctx, tx, user.ID); err != nil {
			return err
		}
		token, err = s.IssueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("User logged in", "user_id", user.ID)
	return user, token, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*types.User, *types.UserToken, error) {
	stored, err := s.userTokens.GetByRefreshToken(ctx, nil, refreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	user, err := s.users.GetByID(ctx, nil, stored.UserID)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	var fresh *types.UserToken
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userTokens.DeleteByUserID(ctx, tx, user.ID); err != nil {
			return err
		}
		fresh, err = s.IssueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return user, fresh, nil
}

func (s *authService) Logout(ctx context.Context) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.TokenString == "" {
		return ErrInvalidToken
	}
	return s.userTokens.DeleteByAccessToken(ctx, nil, rd.TokenString)
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return ctx, ErrInvalidToken
	}

	rawUserID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return ctx, ErrInvalidToken
	}

	stored, err := s.userTokens.GetByAccessToken(ctx, nil, tokenString)
	if err != nil {
		return ctx, ErrInvalidToken
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.userTokens.DeleteByAccessToken(ctx, nil, tokenString)
		return ctx, ErrInvalidToken
	}
	if stored.UserID != userID {
		return ctx, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return ctx, ErrInvalidToken
	}

	rd := &requestdata.RequestData{
		TokenString:  tokenString,
		RefreshToken: stored.RefreshToken,
		UserID:       user.ID,
		IsStaff:      user.IsStaff,
	}
	if user.PartnerID != nil {
		rd.PartnerID = *user.PartnerID
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (s *authService) CreateUser(ctx context.Context, tx *gorm.DB, user *types.User, password string) (*types.User, error) {
	exists, err := s.users.EmailExists(ctx, tx, user.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("email %s already registered", user.Email)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.Password = string(hashed)

	created, err := s.users.Create(ctx, tx, []*types.User{user})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *authService) IssueTokens(ctx context.Context, tx *gorm.DB, user *types.User) (*types.UserToken, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	accessToken, err := s.signToken(user.ID, "access", expiresAt)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.signToken(user.ID, "refresh", now.Add(s.refreshTTL))
	if err != nil {
		return nil, err
	}

	token := &types.UserToken{
		UserID:       user.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	created, err := s.userTokens.Create(ctx, tx, []*types.UserToken{token})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *authService) signToken(userID uuid.UUID, kind string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"kind":    kind,
		"jti":     uuid.NewString(),
		"iat":     time.Now().Unix(),
		"exp":     expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}
