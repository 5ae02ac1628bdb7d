package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stubUserRepo struct {
	byEmail map[string]*models.User
	created []*models.User
}

func (s *stubUserRepo) Create(_ context.Context, dto users.CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	user.ID = uuid.New()
	if s.byEmail == nil {
		s.byEmail = map[string]*models.User{}
	}
	s.byEmail[user.Email] = user
	s.created = append(s.created, user)
	return user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := s.byEmail[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

type stubSessionManager struct {
	err error
}

func (s stubSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "refresh-" + accessID, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 15}
}

func seedUser(t *testing.T, repo *stubUserRepo, email, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Name:         "Test Customer",
		Email:        email,
		PasswordHash: hash,
		Role:         enums.RoleCustomer,
	}
	if repo.byEmail == nil {
		repo.byEmail = map[string]*models.User{}
	}
	repo.byEmail[email] = user
	return user
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubUserRepo{}
	user := seedUser(t, repo, "shopper@example.com", "correct-horse")

	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: stubSessionManager{},
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.Login(context.Background(), LoginRequest{Email: "Shopper@Example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	if result.User == nil || result.User.ID != user.ID {
		t.Fatal("expected user in response")
	}
	if result.User.LastLoginAt == nil {
		t.Fatal("expected last login to be stamped")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &stubUserRepo{}
	seedUser(t, repo, "shopper@example.com", "correct-horse")

	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: stubSessionManager{},
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{Email: "shopper@example.com", Password: "wrong"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, err := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{},
		SessionManager: stubSessionManager{},
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRegisterCreatesCustomer(t *testing.T) {
	repo := &stubUserRepo{}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: stubSessionManager{},
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "New Shopper",
		Email:    "New@Example.com",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 user created, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.Email != "new@example.com" {
		t.Fatalf("expected normalized email, got %s", created.Email)
	}
	if created.Role != enums.RoleCustomer {
		t.Fatalf("expected customer role, got %s", created.Role)
	}
	if created.PasswordHash == "hunter2hunter2" {
		t.Fatal("password must not be stored in plain text")
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected token pair after registration")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := &stubUserRepo{}
	seedUser(t, repo, "taken@example.com", "irrelevant")

	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: stubSessionManager{},
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Register(context.Background(), RegisterRequest{
		Name:     "Someone Else",
		Email:    "taken@example.com",
		Password: "hunter2hunter2",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterSessionFailure(t *testing.T) {
	repo := &stubUserRepo{}
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: stubSessionManager{err: errors.New("redis down")},
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Register(context.Background(), RegisterRequest{
		Name:     "New Shopper",
		Email:    "new@example.com",
		Password: "hunter2hunter2",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}
