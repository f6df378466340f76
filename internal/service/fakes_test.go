package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"rocket-rental/internal/domain"
	"rocket-rental/internal/repository"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64

	applyErr   error
	ensureErr  error
	getErr     error
	applyCalls []domain.ProfileUpdate
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[int64]*domain.User{}}
	for _, u := range users {
		r.nextID++
		if u.ID == 0 {
			u.ID = r.nextID
		}
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Init(context.Context) error { return nil }

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return 0, repository.ErrUsernameTaken
		}
	}
	r.nextID++
	user.ID = r.nextID
	cp := *user
	r.users[user.ID] = &cp
	return user.ID, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) ApplyProfileUpdate(_ context.Context, update domain.ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyCalls = append(r.applyCalls, update)
	if r.applyErr != nil {
		return r.applyErr
	}
	u, ok := r.users[update.UserID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, other := range r.users {
		if id != update.UserID && other.Username == update.Username {
			return repository.ErrUsernameTaken
		}
	}
	u.Name = update.Name
	u.Username = update.Username
	if !update.Contact.IsEmpty() || u.Contact != nil {
		c := update.Contact
		u.Contact = &c
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	if update.HostBio != nil && u.Host != nil {
		u.Host.Bio = *update.HostBio
	}
	if update.RenterBio != nil && u.Renter != nil {
		u.Renter.Bio = *update.RenterBio
	}
	return nil
}

func (r *fakeUserRepo) EnsureCapability(_ context.Context, userID int64, c domain.Capability) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ensureErr != nil {
		return false, r.ensureErr
	}
	u, ok := r.users[userID]
	if !ok {
		return false, repository.ErrNotFound
	}
	switch c {
	case domain.CapabilityHost:
		if u.Host != nil {
			return false, nil
		}
		u.Host = &domain.Host{UserID: userID, CreatedAt: time.Now()}
	case domain.CapabilityRenter:
		if u.Renter != nil {
			return false, nil
		}
		u.Renter = &domain.Renter{UserID: userID, CreatedAt: time.Now()}
	}
	return true, nil
}

func (r *fakeUserRepo) SetImageKey(_ context.Context, userID int64, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.ImageKey = key
	return nil
}

type fakeVerifier struct {
	ok    bool
	err   error
	calls int
}

func (v *fakeVerifier) VerifyPassword(context.Context, int64, string) (bool, error) {
	v.calls++
	return v.ok, v.err
}

type fakeCache struct {
	items   map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: map[string][]byte{}}
}

func (c *fakeCache) GetJSON(_ context.Context, key string, out any) (bool, error) {
	b, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = b
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	delete(c.items, key)
	return nil
}

type fakeImages struct{}

func (fakeImages) ObjectURL(_ context.Context, key string) (string, error) {
	return "https://images.example.com/" + key, nil
}
