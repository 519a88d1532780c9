package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"boxoffice/internal/errs"
	"boxoffice/internal/logger"
	"boxoffice/internal/models"
)

type DBLayer interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ConfirmUser(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type NotificationSink interface {
	Send(toEmail, subject, templateKey string, data map[string]interface{})
}

var ErrBadCredentials = errors.New("invalid email or password")

// Service is the identity provider: registration with email confirmation,
// login issuing session tokens, and password reset, all built on the
// signed action-token abstraction.
type Service struct {
	DB     DBLayer
	Tokens *TokenManager
	Sink   NotificationSink
	Logger *logger.Logger
}

func NewService(db DBLayer, tokens *TokenManager, sink NotificationSink, log *logger.Logger) *Service {
	return &Service{DB: db, Tokens: tokens, Sink: sink, Logger: log}
}

// Register creates an unconfirmed user and emails a confirmation link.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	if _, err := s.DB.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", errs.ErrValidation)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Confirmed:    false,
	}
	if err := s.DB.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.Tokens.GenerateActionToken(ActionConfirm, user.ID)
	if err != nil {
		s.Logger.Error("AUTH", fmt.Sprintf("failed to sign confirmation token for %s: %v", user.ID, err))
	} else {
		s.Sink.Send(user.Email, "Confirm Your Account", "confirm_account", map[string]interface{}{
			"name":  user.Name,
			"token": token,
		})
	}

	return &user, nil
}

// Login verifies credentials and returns a session token. The same error
// covers unknown email and wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.DB.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", nil, ErrBadCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrBadCredentials
	}

	token, err := s.Tokens.GenerateSessionToken(user.ID, user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, user, nil
}

// Confirm marks the account referenced by a confirmation token as
// confirmed.
func (s *Service) Confirm(ctx context.Context, token string) error {
	userID, _, err := s.Tokens.ParseActionToken(ActionConfirm, token)
	if err != nil {
		return err
	}
	if _, err := s.DB.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.DB.ConfirmUser(ctx, userID)
}

// RequestPasswordReset emails a reset token for a known address. Unknown
// addresses are ignored silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.DB.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := s.Tokens.GenerateActionToken(ActionReset, user.ID)
	if err != nil {
		return fmt.Errorf("failed to sign reset token: %w", err)
	}
	s.Sink.Send(user.Email, "Reset Your Password", "reset_password", map[string]interface{}{
		"name":  user.Name,
		"token": token,
	})
	return nil
}

// ResetPassword sets a new password for the account referenced by a reset
// token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, _, err := s.Tokens.ParseActionToken(ActionReset, token)
	if err != nil {
		return err
	}
	if _, err := s.DB.GetUserByID(ctx, userID); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.DB.UpdatePassword(ctx, userID, string(hash))
}
