package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"rocket-rental/internal/domain"
	"rocket-rental/internal/repository"
)

func newTestProfileService(repo *fakeUserRepo, verifier CredentialVerifier, cache ProfileCache) ProfileService {
	return NewProfileService(repo, verifier, ProfileServiceConfig{Cache: cache, Images: fakeImages{}})
}

func TestProfileService_UpdateProfile_Success(t *testing.T) {
	repo := newFakeUserRepo(&domain.User{
		Username: "alice",
		Name:     "Alice",
		Email:    "alice@example.com",
		Host:     &domain.Host{Bio: "old host bio"},
	})
	cache := newFakeCache()
	svc := newTestProfileService(repo, &fakeVerifier{}, cache)

	res, err := svc.UpdateProfile(context.Background(), 1, ProfileForm{
		Name:      "Alice L",
		Username:  "alice2",
		HostBio:   "new host bio",
		RenterBio: "ignored without renter",
		City:      "Oxford",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.RedirectTo != "/users/alice2" {
		t.Fatalf("expected redirect to /users/alice2, got %q", res.RedirectTo)
	}

	if len(repo.applyCalls) != 1 {
		t.Fatalf("expected one apply call, got %d", len(repo.applyCalls))
	}
	update := repo.applyCalls[0]
	if update.HostBio == nil || *update.HostBio != "new host bio" {
		t.Fatalf("expected host bio in intent, got %v", update.HostBio)
	}
	if update.RenterBio != nil {
		t.Fatalf("renter bio must not be written without a renter capability")
	}
	if update.PasswordHash != nil {
		t.Fatalf("password must not change without a new password")
	}
	if update.Contact.City != "Oxford" {
		t.Fatalf("expected contact in intent, got %+v", update.Contact)
	}

	if len(cache.deleted) != 2 {
		t.Fatalf("expected old and new username invalidated, got %v", cache.deleted)
	}
}

func TestProfileService_UpdateProfile_RejectedWithoutMutation(t *testing.T) {
	repo := newFakeUserRepo(&domain.User{Username: "alice", Email: "alice@example.com"})
	svc := newTestProfileService(repo, &fakeVerifier{}, nil)

	res, err := svc.UpdateProfile(context.Background(), 1, ProfileForm{Name: "A", Username: "al"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusError {
		t.Fatalf("expected error status, got %+v", res)
	}
	if got := res.Errors.FieldErrors["username"]; len(got) != 1 || got[0] != "Must be at least 3 characters" {
		t.Fatalf("unexpected username errors: %v", got)
	}
	if len(repo.applyCalls) != 0 {
		t.Fatalf("expected no persistence, got %d apply calls", len(repo.applyCalls))
	}
}

func TestProfileService_UpdateProfile_WrongCurrentPasswordKeepsHash(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	repo := newFakeUserRepo(&domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: hash})
	svc := newTestProfileService(repo, NewUserService(repo), nil)

	res, err := svc.UpdateProfile(context.Background(), 1, ProfileForm{
		Name: "Alice", Username: "alice", NewPassword: "new-password", CurrentPassword: "wrong",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := res.Errors.FieldErrors["currentPassword"]; len(got) != 1 || got[0] != "Invalid password" {
		t.Fatalf("expected Invalid password, got %v", res.Errors.FieldErrors)
	}
	if len(repo.applyCalls) != 0 {
		t.Fatalf("expected no persistence")
	}
	stored, _ := repo.GetByID(context.Background(), 1)
	if stored.PasswordHash != hash {
		t.Fatalf("credential must not change")
	}
}

func TestProfileService_UpdateProfile_ChangesPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	repo := newFakeUserRepo(&domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: hash})
	svc := newTestProfileService(repo, NewUserService(repo), nil)

	res, err := svc.UpdateProfile(context.Background(), 1, ProfileForm{
		Name: "Alice", Username: "alice", NewPassword: "battery-staple", CurrentPassword: "correct-horse",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %+v", res.Errors)
	}
	stored, _ := repo.GetByID(context.Background(), 1)
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("battery-staple")); err != nil {
		t.Fatalf("expected new password hash: %v", err)
	}
}

func TestProfileService_UpdateProfile_UnknownUser(t *testing.T) {
	svc := newTestProfileService(newFakeUserRepo(), &fakeVerifier{}, nil)
	_, err := svc.UpdateProfile(context.Background(), 42, ProfileForm{Name: "A", Username: "alice"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestProfileService_UpdateProfile_UsernameTaken(t *testing.T) {
	repo := newFakeUserRepo(
		&domain.User{Username: "alice", Email: "alice@example.com"},
		&domain.User{Username: "bob", Email: "bob@example.com"},
	)
	svc := newTestProfileService(repo, &fakeVerifier{}, nil)

	res, err := svc.UpdateProfile(context.Background(), 1, ProfileForm{Name: "Alice", Username: "bob"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Status != StatusError {
		t.Fatalf("expected error status")
	}
	if got := res.Errors.FieldErrors["username"]; len(got) != 1 || got[0] != "Username is already taken" {
		t.Fatalf("unexpected username errors: %v", got)
	}
}

func TestProfileService_UpdateProfile_PersistenceFault(t *testing.T) {
	repo := newFakeUserRepo(&domain.User{Username: "alice", Email: "alice@example.com"})
	repo.applyErr = errors.New("disk full")
	svc := newTestProfileService(repo, &fakeVerifier{}, nil)

	_, err := svc.UpdateProfile(context.Background(), 1, ProfileForm{Name: "Alice", Username: "alice"})
	if err == nil || errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected an unexpected fault, got %v", err)
	}
}

func TestProfileService_GetPublicProfile(t *testing.T) {
	repo := newFakeUserRepo(&domain.User{
		Username: "alice",
		Name:     "Alice",
		Email:    "alice@example.com",
		ImageKey: "users/1.png",
		Renter:   &domain.Renter{Bio: "I rent"},
	})
	cache := newFakeCache()
	svc := newTestProfileService(repo, &fakeVerifier{}, cache)

	profile, err := svc.GetPublicProfile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if profile.Renter == nil || profile.Renter.Bio != "I rent" || profile.Host != nil {
		t.Fatalf("unexpected capabilities: %+v", profile)
	}
	if profile.ImageURL != "https://images.example.com/users/1.png" {
		t.Fatalf("unexpected image url %q", profile.ImageURL)
	}
	if _, ok := cache.items["profile:alice"]; !ok {
		t.Fatalf("expected profile to be cached")
	}

	// served from cache even after the row disappears
	delete(repo.users, 1)
	profile, err = svc.GetPublicProfile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if profile.Name != "Alice" {
		t.Fatalf("expected cached profile, got %+v", profile)
	}

	if _, err := svc.GetPublicProfile(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestProfileService_GetEditableProfile(t *testing.T) {
	repo := newFakeUserRepo(&domain.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		Contact:      &domain.ContactInfo{City: "Oxford"},
		Host:         &domain.Host{Bio: "host bio"},
	})
	svc := newTestProfileService(repo, &fakeVerifier{}, nil)

	profile, err := svc.GetEditableProfile(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if profile.HostLocked || !profile.RenterLocked {
		t.Fatalf("unexpected lock state: %+v", profile)
	}
	if profile.HostBio != "host bio" || profile.Contact.City != "Oxford" || !profile.HasPassword {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if _, err := svc.GetEditableProfile(context.Background(), 99); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestUserService_VerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	repo := newFakeUserRepo(
		&domain.User{Username: "alice", Email: "a@example.com", PasswordHash: hash},
		&domain.User{Username: "nopass", Email: "n@example.com"},
	)
	svc := NewUserService(repo)
	ctx := context.Background()

	if ok, err := svc.VerifyPassword(ctx, 1, "correct-horse"); err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	if ok, err := svc.VerifyPassword(ctx, 1, "wrong"); err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
	if ok, err := svc.VerifyPassword(ctx, 2, "anything"); err != nil || ok {
		t.Fatalf("user without credential must not verify, got ok=%v err=%v", ok, err)
	}

	repo.getErr = errors.New("db down")
	if _, err := svc.VerifyPassword(ctx, 1, "correct-horse"); err == nil {
		t.Fatalf("expected infrastructure error")
	}
	repo.getErr = nil

	if _, err := svc.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	user, err := svc.Authenticate(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.PasswordHash != "" {
		t.Fatalf("authenticated user must be sanitized")
	}
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)
