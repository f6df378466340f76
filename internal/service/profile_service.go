package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"rocket-rental/internal/domain"
	"rocket-rental/internal/repository"
)

type UpdateStatus string

const (
	StatusSuccess UpdateStatus = "success"
	StatusError   UpdateStatus = "error"
)

// UpdateResult is the outcome of a profile update that reached validation.
// Errors is set for StatusError, RedirectTo for StatusSuccess.
type UpdateResult struct {
	Status     UpdateStatus      `json:"status"`
	Errors     *ValidationErrors `json:"errors,omitempty"`
	RedirectTo string            `json:"-"`
}

// RoleProfile is the public view of a Host or Renter capability.
type RoleProfile struct {
	Bio string `json:"bio"`
}

// PublicProfile is what anyone can see at /users/{username}.
type PublicProfile struct {
	Username string       `json:"username"`
	Name     string       `json:"name"`
	ImageURL string       `json:"imageUrl,omitempty"`
	JoinedAt time.Time    `json:"joinedAt"`
	Host     *RoleProfile `json:"host,omitempty"`
	Renter   *RoleProfile `json:"renter,omitempty"`
}

// EditableProfile is the settings view of the caller's own profile.
type EditableProfile struct {
	Username     string             `json:"username"`
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	ImageURL     string             `json:"imageUrl,omitempty"`
	HasPassword  bool               `json:"hasPassword"`
	Contact      domain.ContactInfo `json:"contact"`
	HostLocked   bool               `json:"hostLocked"`
	HostBio      string             `json:"hostBio"`
	RenterLocked bool               `json:"renterLocked"`
	RenterBio    string             `json:"renterBio"`
}

// ProfileCache stores public profiles keyed by username.
type ProfileCache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ImageResolver turns a stored image key into a URL a browser can load.
type ImageResolver interface {
	ObjectURL(ctx context.Context, key string) (string, error)
}

// ProfileService loads profiles and runs the profile update workflow.
type ProfileService interface {
	GetPublicProfile(ctx context.Context, username string) (*PublicProfile, error)
	GetEditableProfile(ctx context.Context, userID int64) (*EditableProfile, error)
	UpdateProfile(ctx context.Context, userID int64, form ProfileForm) (*UpdateResult, error)
}

type ProfileServiceConfig struct {
	Cache    ProfileCache
	CacheTTL time.Duration
	Images   ImageResolver
	Logger   *logrus.Logger
}

type profileService struct {
	users     repository.UserRepository
	validator *FieldValidator
	cfg       ProfileServiceConfig
}

func NewProfileService(users repository.UserRepository, credentials CredentialVerifier, cfg ProfileServiceConfig) ProfileService {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &profileService{
		users:     users,
		validator: NewFieldValidator(credentials),
		cfg:       cfg,
	}
}

// ProfilePath is the canonical address of a user's public profile.
func ProfilePath(username string) string {
	return "/users/" + url.PathEscape(username)
}

func profileCacheKey(username string) string {
	return "profile:" + username
}

func (s *profileService) GetPublicProfile(ctx context.Context, username string) (*PublicProfile, error) {
	key := profileCacheKey(username)
	if s.cfg.Cache != nil {
		var cached PublicProfile
		if ok, err := s.cfg.Cache.GetJSON(ctx, key, &cached); err != nil {
			s.cfg.Logger.WithField("username", username).Warnf("read profile cache: %v", err)
		} else if ok {
			return &cached, nil
		}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user %q: %w", username, err)
	}

	profile := &PublicProfile{
		Username: user.Username,
		Name:     user.Name,
		ImageURL: s.imageURL(ctx, user),
		JoinedAt: user.CreatedAt,
	}
	if user.Host != nil {
		profile.Host = &RoleProfile{Bio: user.Host.Bio}
	}
	if user.Renter != nil {
		profile.Renter = &RoleProfile{Bio: user.Renter.Bio}
	}

	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.SetJSON(ctx, key, profile, s.cfg.CacheTTL); err != nil {
			s.cfg.Logger.WithField("username", username).Warnf("write profile cache: %v", err)
		}
	}
	return profile, nil
}

func (s *profileService) GetEditableProfile(ctx context.Context, userID int64) (*EditableProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	profile := &EditableProfile{
		Username:     user.Username,
		Name:         user.Name,
		Email:        user.Email,
		ImageURL:     s.imageURL(ctx, user),
		HasPassword:  user.HasPassword(),
		HostLocked:   user.Host == nil,
		RenterLocked: user.Renter == nil,
	}
	if user.Contact != nil {
		profile.Contact = *user.Contact
	}
	if user.Host != nil {
		profile.HostBio = user.Host.Bio
	}
	if user.Renter != nil {
		profile.RenterBio = user.Renter.Bio
	}
	return profile, nil
}

func (s *profileService) UpdateProfile(ctx context.Context, userID int64, form ProfileForm) (*UpdateResult, error) {
	logger := s.cfg.Logger.WithField("user_id", userID)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	errs, err := s.validator.Validate(ctx, user, form)
	if err != nil {
		return nil, err
	}
	if !errs.Empty() {
		return &UpdateResult{Status: StatusError, Errors: errs}, nil
	}

	update := domain.ProfileUpdate{
		UserID:   user.ID,
		Name:     form.Name,
		Username: form.Username,
		Contact:  form.Contact(),
	}
	if form.NewPassword != "" {
		hash, err := HashPassword(form.NewPassword)
		if err != nil {
			return nil, err
		}
		update.PasswordHash = &hash
	}
	if user.Host != nil {
		bio := form.HostBio
		update.HostBio = &bio
	}
	if user.Renter != nil {
		bio := form.RenterBio
		update.RenterBio = &bio
	}

	if err := s.users.ApplyProfileUpdate(ctx, update); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameTaken):
			errs.AddField(FieldUsername, "Username is already taken")
			return &UpdateResult{Status: StatusError, Errors: errs}, nil
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUnauthenticated
		default:
			return nil, fmt.Errorf("apply profile update: %w", err)
		}
	}

	s.invalidate(ctx, user.Username, update.Username)
	logger.WithFields(logrus.Fields{
		"username":         update.Username,
		"password_changed": update.PasswordHash != nil,
	}).Info("profile updated")

	return &UpdateResult{Status: StatusSuccess, RedirectTo: ProfilePath(update.Username)}, nil
}

func (s *profileService) invalidate(ctx context.Context, usernames ...string) {
	invalidateProfiles(ctx, s.cfg.Cache, s.cfg.Logger, usernames...)
}

func (s *profileService) imageURL(ctx context.Context, user *domain.User) string {
	if user.ImageKey == "" || s.cfg.Images == nil {
		return ""
	}
	u, err := s.cfg.Images.ObjectURL(ctx, user.ImageKey)
	if err != nil {
		s.cfg.Logger.WithField("user_id", user.ID).Warnf("resolve profile image: %v", err)
		return ""
	}
	return u
}

func invalidateProfiles(ctx context.Context, cache ProfileCache, logger *logrus.Logger, usernames ...string) {
	if cache == nil {
		return
	}
	seen := make(map[string]struct{}, len(usernames))
	for _, name := range usernames {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if err := cache.Delete(ctx, profileCacheKey(name)); err != nil {
			logger.WithField("username", name).Warnf("invalidate profile cache: %v", err)
		}
	}
}
