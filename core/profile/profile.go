package profile

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

var (
	// errors
	ErrNotFound    = errors.New("profile not found")
	ErrInvalidRole = errors.New("invalid role")
)

var nowFunc = time.Now // mockable

// Profile holds the display names and access role of a user. There is at most one per user.
type Profile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type (
	Repository interface {
		GetByUser(ctx context.Context, userID string) (Profile, error)
		// GetOrCreate inserts prof unless a profile already exists for prof.UserID,
		// and returns the stored one. It must be safe under concurrent calls for the same user.
		GetOrCreate(ctx context.Context, prof Profile) (Profile, error)
		Update(ctx context.Context, prof Profile) (Profile, error)
	}

	Service struct {
		repo Repository

		// serialises resolutions per user within this process;
		// the store's uniqueness on user ID covers the rest.
		locks [lockStripes]sync.Mutex
	}
)

const lockStripes = 64

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) userLock(userID string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	l := &svc.locks[h.Sum32()%lockStripes]
	l.Lock()
	return l.Unlock
}

func newProfile(userID, firstName, lastName string, role Role) Profile {
	now := nowFunc().UTC()
	return Profile{
		ID:        core.NewID(),
		UserID:    userID,
		FirstName: core.CleanString(firstName),
		LastName:  core.CleanString(lastName),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Resolve returns the profile of userID, creating a default student profile if none exists.
// Concurrent calls for the same user yield the same profile.
func (svc *Service) Resolve(ctx context.Context, userID string) (Profile, error) {
	unlock := svc.userLock(userID)
	defer unlock()

	prof, err := svc.repo.GetByUser(ctx, userID)
	if err == nil {
		return prof, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Profile{}, errors.Wrap(err, "finding profile by user")
	}

	prof, err = svc.repo.GetOrCreate(ctx, newProfile(userID, "", "", DefaultRole))
	if err != nil {
		return Profile{}, errors.Wrap(err, "creating default profile")
	}
	return prof, nil
}

// Provision creates the student profile of a freshly signed-up user.
func (svc *Service) Provision(ctx context.Context, userID, firstName, lastName string) error {
	unlock := svc.userLock(userID)
	defer unlock()

	if _, err := svc.repo.GetOrCreate(ctx, newProfile(userID, firstName, lastName, DefaultRole)); err != nil {
		return errors.Wrap(err, "creating profile")
	}
	return nil
}

func (svc *Service) GetByUser(ctx context.Context, userID string) (Profile, error) {
	return svc.repo.GetByUser(ctx, userID)
}

// SetRole changes the role of userID's profile, creating the profile when missing.
func (svc *Service) SetRole(ctx context.Context, userID string, role Role) (Profile, error) {
	if !role.Valid() {
		return Profile{}, ErrInvalidRole
	}
	prof, err := svc.Resolve(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	prof.Role = role
	prof.UpdatedAt = nowFunc().UTC()
	return svc.repo.Update(ctx, prof)
}

// Rename sets the display names of userID's profile.
func (svc *Service) Rename(ctx context.Context, userID, firstName, lastName string) (Profile, error) {
	prof, err := svc.Resolve(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	prof.FirstName = core.CleanString(firstName)
	prof.LastName = core.CleanString(lastName)
	prof.UpdatedAt = nowFunc().UTC()
	return svc.repo.Update(ctx, prof)
}
