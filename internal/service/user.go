package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sharewheels/internal/domain"
	"sharewheels/internal/logger"
	"sharewheels/internal/repository"
)

// UserService handles user accounts.
type UserService struct {
	users repository.UserRepository
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(users repository.UserRepository, log logrus.FieldLogger) *UserService {
	if log == nil {
		log = logger.Discard()
	}
	return &UserService{users: users, log: log, now: time.Now}
}

// RegisterRequest contains the parameters for creating an account.
type RegisterRequest struct {
	Name  string
	Email string
	Phone string
	Role  string
}

// Register creates a user. The role defaults to passenger.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		return nil, ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	role := domain.UserRole(req.Role)
	switch role {
	case "":
		role = domain.UserRolePassenger
	case domain.UserRoleDriver, domain.UserRolePassenger:
	default:
		return nil, ErrInvalidRole
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	user := &domain.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Role:      role,
		CreatedAt: s.now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("user registered")

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, ErrInvalidUserID
	}
	return s.users.GetByID(ctx, id)
}
