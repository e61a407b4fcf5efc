package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/festworks/festpass-backend/internal/users"
	pkgAuth "github.com/festworks/festpass-backend/pkg/auth"
	"github.com/festworks/festpass-backend/pkg/auth/session"
	"github.com/festworks/festpass-backend/pkg/config"
	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/festworks/festpass-backend/pkg/enums"
	pkgerrors "github.com/festworks/festpass-backend/pkg/errors"
	"github.com/festworks/festpass-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stubUserRepo struct {
	users      map[string]*models.User
	created    []users.CreateUserDTO
	createErr  error
	lastLogins map[uuid.UUID]time.Time
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		users:      map[string]*models.User{},
		lastLogins: map[uuid.UUID]time.Time{},
	}
}

func (s *stubUserRepo) Create(_ context.Context, dto users.CreateUserDTO) (*models.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if _, exists := s.users[dto.Email]; exists {
		return nil, errors.New(`duplicate key value violates unique constraint "users_email_key"`)
	}
	s.created = append(s.created, dto)
	user := dto.ToModel()
	user.ID = uuid.New()
	s.users[dto.Email] = user
	return user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.lastLogins[id] = at
	return nil
}

type stubSessionManager struct {
	sessions  map[string]string
	rotateErr error
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{sessions: map[string]string{}}
}

func (s *stubSessionManager) Generate(_ context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.sessions[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	stored, ok := s.sessions[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.sessions, oldAccessID)
	newID := session.NewAccessID()
	token := "refresh-" + newID
	s.sessions[newID] = token
	return newID, token, nil
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	delete(s.sessions, accessID)
	return nil
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func newTestService(t *testing.T, repo *stubUserRepo, sessions *stubSessionManager) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "festpass-test",
			ExpirationMinutes: 15,
		},
		PasswordConfig: testPasswordConfig(),
		Now:            time.Now,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, repo *stubUserRepo, email, password string, role enums.MemberRole) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, testPasswordConfig())
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Asha",
		LastName:     "Iyer",
		Role:         role,
		IsActive:     true,
	}
	repo.users[email] = user
	return user
}

func TestRegisterCreatesAttendeeAndIssuesTokens(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	svc := newTestService(t, repo, sessions)

	phone := "9998887770"
	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "Asha@Example.com",
		Password:  "correct-horse",
		FirstName: "Asha",
		LastName:  "Iyer",
		Phone:     &phone,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected tokens after registration")
	}
	if resp.User.Role != enums.MemberRoleAttendee {
		t.Fatalf("role = %s, want attendee", resp.User.Role)
	}
	if len(repo.created) != 1 || repo.created[0].Email != "asha@example.com" {
		t.Fatalf("expected lowercased email persisted, got %+v", repo.created)
	}
}

func TestRegisterDuplicateEmailMapsToConflict(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	svc := newTestService(t, repo, sessions)
	seedUser(t, repo, "asha@example.com", "pw-does-not-matter", enums.MemberRoleAttendee)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "asha@example.com",
		Password:  "correct-horse",
		FirstName: "Asha",
		LastName:  "Iyer",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestLoginSuccessRecordsLastLogin(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	svc := newTestService(t, repo, sessions)
	user := seedUser(t, repo, "asha@example.com", "correct-horse", enums.MemberRoleAttendee)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "ASHA@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.User.ID != user.ID {
		t.Fatalf("user id = %s, want %s", resp.User.ID, user.ID)
	}
	if _, ok := repo.lastLogins[user.ID]; !ok {
		t.Fatal("expected last login recorded")
	}
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	svc := newTestService(t, repo, sessions)
	seedUser(t, repo, "asha@example.com", "correct-horse", enums.MemberRoleAttendee)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "asha@example.com", Password: "wrong"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestLoginInactiveUserIsUnauthorized(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	svc := newTestService(t, repo, sessions)
	user := seedUser(t, repo, "asha@example.com", "correct-horse", enums.MemberRoleAttendee)
	user.IsActive = false

	_, err := svc.Login(context.Background(), LoginRequest{Email: "asha@example.com", Password: "correct-horse"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	svc := newTestService(t, repo, sessions)
	seedUser(t, repo, "asha@example.com", "correct-horse", enums.MemberRoleAdmin)

	login, err := svc.Login(context.Background(), LoginRequest{Email: "asha@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	pair, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.RefreshToken == login.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}

	claims, err := pkgAuth.ParseAccessToken(config.JWTConfig{
		Secret: "test-secret",
		Issuer: "festpass-test",
	}, pair.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if claims.Role != enums.MemberRoleAdmin {
		t.Fatalf("role = %s, want admin carried through refresh", claims.Role)
	}

	// old refresh token must be dead after rotation
	if _, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	}); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized on replayed refresh, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessionManager()
	svc := newTestService(t, repo, sessions)
	seedUser(t, repo, "asha@example.com", "correct-horse", enums.MemberRoleAttendee)

	login, err := svc.Login(context.Background(), LoginRequest{Email: "asha@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(config.JWTConfig{
		Secret: "test-secret",
		Issuer: "festpass-test",
	}, login.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Fatalf("expected no sessions after logout, got %d", len(sessions.sessions))
	}
}
