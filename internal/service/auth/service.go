package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

var ErrInvalidCredentials = apperrors.Unauthorized("invalid credentials")

type Service struct {
	userRepo  repository.UserRepository
	staffRepo repository.StaffRepository
	jwtSvc    auth.JWTService
	hasher    security.PasswordHasher
}

func NewService(userRepo repository.UserRepository, staffRepo repository.StaffRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher) *Service {
	return &Service{
		userRepo:  userRepo,
		staffRepo: staffRepo,
		jwtSvc:    jwtSvc,
		hasher:    hasher,
	}
}

// Register signs up a patient: a patient record and its login are created together.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.TokenResponse, error) {
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	patient := &model.Patient{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     strings.ToLower(req.Email),
		Phone:     req.Phone,
		Status:    model.PatientStatusActive,
	}
	if req.DateOfBirth != nil {
		dob, err := model.ParseDate(*req.DateOfBirth)
		if err != nil {
			return nil, apperrors.BadRequest("invalid date_of_birth", err)
		}
		patient.DateOfBirth = &dob.Time
	}

	user := &model.User{
		Email:        patient.Email,
		Name:         patient.FullName(),
		PasswordHash: hash,
		Role:         model.RolePatient,
		Active:       true,
	}
	if err := s.userRepo.CreateWithPatient(ctx, user, patient); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, service.FromRepository("user", err)
	}

	log.Ctx(ctx).Info().Str("user_id", user.ID.String()).Msg("patient registered")
	return s.generateTokens(user)
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, service.FromRepository("user", err)
	}
	if !user.Active {
		return nil, apperrors.Forbidden("account is disabled")
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		log.Ctx(ctx).Warn().Str("user_id", user.ID.String()).Msg("failed login attempt")
		return nil, ErrInvalidCredentials
	}
	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, req.Password)
	}

	return s.generateTokens(user)
}

// rehash upgrades a stored hash to the current cost. Failures only cost a
// retry on the next login.
func (s *Service) rehash(ctx context.Context, user *model.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.userRepo.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to upgrade password hash")
		return
	}
	user.PasswordHash = hash
}

func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	user, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		return nil, service.FromRepository("user", err)
	}
	if !user.Active {
		return nil, apperrors.Forbidden("account is disabled")
	}

	return s.generateTokens(user)
}

// ValidateToken checks an access token and returns its claims.
func (s *Service) ValidateToken(token string) (*model.TokenClaims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperrors.Unauthorized("token has expired")
		}
		return nil, apperrors.Unauthorized("invalid token")
	}
	return claims, nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, service.FromRepository("user", err)
	}
	return user, nil
}

// CreateUser creates a staff or admin login. Patients sign up through Register.
func (s *Service) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if req.Role == model.RolePatient {
		return nil, apperrors.BadRequest("patient accounts are created through registration", nil)
	}
	if req.Role == model.RoleStaff {
		if req.StaffID == nil {
			return nil, apperrors.BadRequest("staff_id is required for staff accounts", nil)
		}
		if _, err := s.staffRepo.Get(ctx, *req.StaffID); err != nil {
			return nil, service.FromRepository("staff", err)
		}
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         req.Role,
		StaffID:      req.StaffID,
		Active:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, service.FromRepository("user", err)
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account unless the email is taken.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	_, err = s.CreateUser(ctx, &model.CreateUserRequest{
		Email:    email,
		Password: password,
		Name:     "Administrator",
		Role:     model.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	log.Ctx(ctx).Info().Str("email", email).Msg("bootstrap admin created")
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrPasswordTooShort):
			return "", apperrors.BadRequest(fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen), err)
		case errors.Is(err, security.ErrPasswordTooLong):
			return "", apperrors.BadRequest(fmt.Sprintf("password must be at most %d bytes", security.MaxPasswordLen), err)
		}
		return "", apperrors.Internal(err)
	}
	return hash, nil
}

func (s *Service) generateTokens(user *model.User) (*model.TokenResponse, error) {
	accessToken, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to generate access token: %w", err))
	}

	refreshToken, err := s.jwtSvc.GenerateRefreshToken(user)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to generate refresh token: %w", err))
	}

	return &model.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwtSvc.AccessTTL().Seconds()),
		User:         user,
	}, nil
}
