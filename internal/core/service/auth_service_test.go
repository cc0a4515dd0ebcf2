package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/infrastructure/hash"
	"github.com/99minutos/identity-service/internal/infrastructure/token"
)

func newAuthService(t *testing.T) (*AuthService, *UserService, *fakeHasher, *fakeSigner) {
	t.Helper()
	hasher := &fakeHasher{}
	signer := &fakeSigner{}
	users := NewUserService(newStubUserRepo(), hasher, nil, zerolog.Nop())
	return NewAuthService(users, hasher, signer, 0, 0, zerolog.Nop()), users, hasher, signer
}

func TestAuthService_ValidateCredentials_Success(t *testing.T) {
	svc, users, _, _ := newAuthService(t)
	_, _ = users.Create(context.Background(), ports.CreateUserInput{Username: "carol", Email: "carol@example.com", Password: "s3cretpass"})

	ok, err := svc.ValidateCredentials(context.Background(), "carol@example.com", "s3cretpass")
	if err != nil || !ok {
		t.Fatalf("expected valid credentials, got %v / %v", ok, err)
	}
}

func TestAuthService_InvalidPasswordAndUnknownEmailAreIndistinguishable(t *testing.T) {
	svc, users, hasher, _ := newAuthService(t)
	_, _ = users.Create(context.Background(), ports.CreateUserInput{Username: "dave", Email: "dave@example.com", Password: "goodpassword"})

	_, wrongPass := svc.ValidateCredentials(context.Background(), "dave@example.com", "badpassword")
	before := hasher.verifyCalls
	_, unknown := svc.ValidateCredentials(context.Background(), "ghost@example.com", "goodpassword")

	if wrongPass != domain.ErrInvalidCredentials || unknown != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", wrongPass, unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPass, unknown)
	}
	if hasher.verifyCalls != before+1 {
		t.Fatalf("expected a hash verification for unknown email")
	}
}

func TestAuthService_MalformedStoredHash(t *testing.T) {
	repo := newStubUserRepo()
	repo.users["u1"] = &domain.User{ID: "u1", Email: "broken@example.com", PasswordHash: "garbage", Role: domain.RoleUser}
	hasher := &fakeHasher{}
	users := NewUserService(repo, hasher, nil, zerolog.Nop())
	svc := NewAuthService(users, hasher, &fakeSigner{}, 0, 0, zerolog.Nop())

	if _, err := svc.Authenticate(context.Background(), "broken@example.com", "whatever1"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Authenticate_ReturnsUser(t *testing.T) {
	svc, users, _, _ := newAuthService(t)
	created, _ := users.Create(context.Background(), ports.CreateUserInput{Username: "erin", Email: "erin@example.com", Password: "password123", Role: domain.RoleAdmin})

	user, err := svc.Authenticate(context.Background(), "erin@example.com", "password123")
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if user.ID != created.ID || user.Role != domain.RoleAdmin {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestAuthService_GenerateTokens(t *testing.T) {
	svc, _, _, signer := newAuthService(t)

	pair, err := svc.GenerateTokens("u1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateTokens error: %v", err)
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatalf("expected distinct tokens")
	}
	if len(signer.signed) != 2 || signer.signed[0].Type != domain.TokenAccess || signer.signed[1].Type != domain.TokenRefresh {
		t.Fatalf("unexpected signed claims: %+v", signer.signed)
	}
	if signer.ttls[0] != DefaultAccessTTL || signer.ttls[1] != DefaultRefreshTTL {
		t.Fatalf("unexpected ttls: %v", signer.ttls)
	}
}

func TestAuthService_DecodeToken_Invalid(t *testing.T) {
	svc, _, _, _ := newAuthService(t)

	if svc.VerifyToken("garbage") {
		t.Fatalf("expected VerifyToken to fail")
	}
	if _, err := svc.DecodeToken("garbage"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

// End to end with the real argon2id hasher and JWT signer.
func TestAuthService_RealCredentialsAndTokens(t *testing.T) {
	hasher, err := hash.New("argon2id")
	if err != nil {
		t.Fatalf("hash.New: %v", err)
	}
	signer, err := token.NewSigner("test-secret", "identity-service")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	users := NewUserService(newStubUserRepo(), hasher, nil, zerolog.Nop())
	svc := NewAuthService(users, hasher, signer, time.Minute, time.Hour, zerolog.Nop())

	created, err := users.Create(context.Background(), ports.CreateUserInput{Username: "kim", Email: "kim@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	user, err := svc.Authenticate(context.Background(), "kim@example.com", "password123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	pair, err := svc.GenerateTokens(user.ID, user.Role)
	if err != nil {
		t.Fatalf("GenerateTokens: %v", err)
	}
	if !svc.VerifyToken(pair.AccessToken) || !svc.VerifyToken(pair.RefreshToken) {
		t.Fatalf("expected both tokens to verify")
	}

	claims, err := svc.DecodeToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if claims.Subject != created.ID || claims.Type != domain.TokenAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}
