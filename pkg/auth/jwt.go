package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/clinic-api/internal/model"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const issuer = "clinic-api"

type JWTService interface {
	GenerateAccessToken(user *model.User) (string, error)
	GenerateRefreshToken(user *model.User) (string, error)
	ValidateToken(token string) (*model.TokenClaims, error)
	ValidateRefreshToken(token string) (*model.TokenClaims, error)
	AccessTTL() time.Duration
}

type Config struct {
	Secret        string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type jwtService struct {
	cfg Config
	now func() time.Time
}

func NewJWTService(cfg Config) JWTService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.Secret
	}
	return &jwtService{cfg: cfg, now: time.Now}
}

func (s *jwtService) AccessTTL() time.Duration {
	return s.cfg.AccessTTL
}

func (s *jwtService) GenerateAccessToken(user *model.User) (string, error) {
	return s.sign(user, false, s.cfg.AccessTTL, s.cfg.Secret)
}

func (s *jwtService) GenerateRefreshToken(user *model.User) (string, error) {
	return s.sign(user, true, s.cfg.RefreshTTL, s.cfg.RefreshSecret)
}

func (s *jwtService) ValidateToken(token string) (*model.TokenClaims, error) {
	claims, err := s.parse(token, s.cfg.Secret)
	if err != nil {
		return nil, err
	}
	if claims.Refresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *jwtService) ValidateRefreshToken(token string) (*model.TokenClaims, error) {
	claims, err := s.parse(token, s.cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}
	if !claims.Refresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *jwtService) sign(user *model.User, refresh bool, ttl time.Duration, secret string) (string, error) {
	now := s.now()
	claims := model.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		PatientID: user.PatientID,
		StaffID:   user.StaffID,
		Refresh:   refresh,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) parse(tokenString, secret string) (*model.TokenClaims, error) {
	claims := &model.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
