package service

import (
	"context"
	"testing"

	"threadmart/internal/config"
	"threadmart/internal/domain"
	"threadmart/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/crypto/bcrypt"
)

// Mock repositories for testing
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:        "test-secret-key",
		AccessExpiry:  15,
		RefreshExpiry: 7,
	}
}

// Registered passwords are stored as bcrypt hashes, never plaintext.
func TestProperty_RegistrationCreatesHashedPasswords(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, password string, fullName string) bool {
			// Setup
			userRepo := newMockUserRepository()
			refreshTokenRepo := newMockRefreshTokenRepository()
			service := NewUserService(userRepo, refreshTokenRepo, testJWTConfig())
			ctx := context.Background()

			// Execute registration
			user, _, err := service.Register(ctx, email, password, fullName)
			if err != nil {
				// If registration fails, skip this test case
				return true
			}

			// Verify password is hashed (not equal to plaintext)
			if user.PasswordHash == password {
				t.Logf("FAIL: Password stored as plaintext for email %s", email)
				return false
			}

			// Verify password hash is a valid bcrypt hash
			err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
			if err != nil {
				t.Logf("FAIL: Password hash is not a valid bcrypt hash or doesn't match: %v", err)
				return false
			}

			// Verify the stored user has the hashed password
			storedUser, err := userRepo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("FAIL: Could not find stored user: %v", err)
				return false
			}

			return storedUser.PasswordHash == user.PasswordHash
		},
		// Generate valid email addresses
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		// Generate passwords with at least 8 characters
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		// Generate full names
		gen.RegexMatch(`[A-Z][a-z]{2,15} [A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Registration issues a token pair whose access token carries the user's
// identity and role claims.
func TestProperty_RegistrationIssuesValidTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("registration returns a decodable access token", prop.ForAll(
		func(email string, password string, fullName string) bool {
			// Setup
			userRepo := newMockUserRepository()
			refreshTokenRepo := newMockRefreshTokenRepository()
			service := NewUserService(userRepo, refreshTokenRepo, testJWTConfig())
			ctx := context.Background()

			user, tokens, err := service.Register(ctx, email, password, fullName)
			if err != nil {
				return true // Skip if registration fails
			}

			if tokens == nil || tokens.AccessToken == "" || tokens.RefreshToken == "" {
				t.Logf("FAIL: Registration returned an incomplete token pair")
				return false
			}

			// Validate and decode the access token
			claims, err := service.ValidateToken(tokens.AccessToken)
			if err != nil {
				t.Logf("FAIL: Token validation failed: %v", err)
				return false
			}

			if claims.UserID != user.ID {
				t.Logf("FAIL: User ID claim mismatch. Expected %s, got %s", user.ID, claims.UserID)
				return false
			}
			if claims.Role != user.Role {
				t.Logf("FAIL: Role claim mismatch. Expected %s, got %s", user.Role, claims.Role)
				return false
			}
			if claims.ExpiresAt == nil || claims.IssuedAt == nil {
				t.Logf("FAIL: Token missing expiration or issued at claim")
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15} [A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// A refresh token from login can always be exchanged for a new valid
// access token, and is rejected once revoked.
func TestProperty_TokenRefreshRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid refresh token returns new valid access token", prop.ForAll(
		func(email string, password string, fullName string) bool {
			// Setup
			userRepo := newMockUserRepository()
			refreshTokenRepo := newMockRefreshTokenRepository()
			service := NewUserService(userRepo, refreshTokenRepo, testJWTConfig())
			ctx := context.Background()

			// Register and login
			if _, _, err := service.Register(ctx, email, password, fullName); err != nil {
				return true // Skip if registration fails
			}

			user, tokens, err := service.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			// Use refresh token to get new access token
			newAccessToken, err := service.RefreshToken(ctx, tokens.RefreshToken)
			if err != nil {
				t.Logf("FAIL: Token refresh failed: %v", err)
				return false
			}

			claims, err := service.ValidateToken(newAccessToken)
			if err != nil {
				t.Logf("FAIL: Refreshed token validation failed: %v", err)
				return false
			}
			if claims.UserID != user.ID {
				t.Logf("FAIL: Refreshed token user ID mismatch")
				return false
			}

			// Logout revokes the refresh token
			if err := service.Logout(ctx, tokens.RefreshToken); err != nil {
				t.Logf("FAIL: Logout failed: %v", err)
				return false
			}

			if _, err := service.RefreshToken(ctx, tokens.RefreshToken); err == nil {
				t.Logf("FAIL: Revoked refresh token was accepted")
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15} [A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Wrong passwords and unknown emails fail identically.
func TestProperty_LoginRejectsBadCredentials(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("wrong password and unknown email both yield ErrInvalidCredentials", prop.ForAll(
		func(email string, password string, wrongPassword string) bool {
			if password == wrongPassword {
				return true
			}

			userRepo := newMockUserRepository()
			refreshTokenRepo := newMockRefreshTokenRepository()
			service := NewUserService(userRepo, refreshTokenRepo, testJWTConfig())
			ctx := context.Background()

			if _, _, err := service.Register(ctx, email, password, "Test User"); err != nil {
				return true
			}

			if _, _, err := service.Login(ctx, email, wrongPassword); err != ErrInvalidCredentials {
				t.Logf("FAIL: Wrong password returned %v", err)
				return false
			}

			if _, _, err := service.Login(ctx, "missing-"+email, password); err != ErrInvalidCredentials {
				t.Logf("FAIL: Unknown email returned %v", err)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
