package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"rocket-rental/internal/domain"
	"rocket-rental/internal/repository"
)

// ProvisionResult is the payload of a role provisioning request. It is scoped
// to the provisioner and never merged into profile form errors.
type ProvisionResult struct {
	Status UpdateStatus `json:"status"`
	Errors []string     `json:"errors,omitempty"`
}

// RoleProvisioner attaches one capability to the caller.
type RoleProvisioner interface {
	Capability() domain.Capability
	Provision(ctx context.Context, userID int64) (*ProvisionResult, error)
}

type roleProvisioner struct {
	users      repository.UserRepository
	capability domain.Capability
	cache      ProfileCache
	logger     *logrus.Logger
}

func NewRoleProvisioner(users repository.UserRepository, capability domain.Capability, cache ProfileCache, logger *logrus.Logger) RoleProvisioner {
	if logger == nil {
		logger = logrus.New()
	}
	return &roleProvisioner{
		users:      users,
		capability: capability,
		cache:      cache,
		logger:     logger,
	}
}

func (p *roleProvisioner) Capability() domain.Capability {
	return p.capability
}

// Provision is idempotent: when the capability already exists the call
// succeeds without writing. Persistence faults come back as a failed result,
// and only an unknown caller is returned as an error.
func (p *roleProvisioner) Provision(ctx context.Context, userID int64) (*ProvisionResult, error) {
	logger := p.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"capability": p.capability,
	})

	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		logger.Errorf("load user: %v", err)
		return p.failed(), nil
	}

	if user.Has(p.capability) {
		return &ProvisionResult{Status: StatusSuccess}, nil
	}

	created, err := p.users.EnsureCapability(ctx, userID, p.capability)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		logger.Errorf("attach capability: %v", err)
		return p.failed(), nil
	}

	if created {
		invalidateProfiles(ctx, p.cache, p.logger, user.Username)
		logger.Info("capability provisioned")
	}
	return &ProvisionResult{Status: StatusSuccess}, nil
}

func (p *roleProvisioner) failed() *ProvisionResult {
	return &ProvisionResult{
		Status: StatusError,
		Errors: []string{fmt.Sprintf("Unable to become a %s right now", p.capability)},
	}
}
