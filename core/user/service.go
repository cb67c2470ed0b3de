package user

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
)

type (
	Repository interface {
		// CreateUser returns ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	// CredentialStore authenticates principals.
	CredentialStore interface {
		SignIn(ctx context.Context, email, password string) (Session, error)
		// CurrentUser returns the Principal of a still valid session in ctx, or nil.
		CurrentUser(ctx context.Context) (*Principal, error)
	}

	// Provisioner creates the profile attached to a new account.
	Provisioner interface {
		Provision(ctx context.Context, userID, firstName, lastName string) error
	}

	Service struct {
		repo        Repository
		provisioner Provisioner
		tokens      *TokenIssuer
		mailSvc     core.EmailService
		logger      core.Logger
	}
)

var _ CredentialStore = (*Service)(nil)

func NewService(
	repo Repository,
	provisioner Provisioner,
	tokens *TokenIssuer,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		repo:        repo,
		provisioner: provisioner,
		tokens:      tokens,
		mailSvc:     mailSvc,
		logger:      logger,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string) error {
	if _, err := svc.repo.GetUserByEmail(ctx, email); err == nil {
		return core.NewFieldValidationError("email", ErrEmailExists)
	} else if errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// Create stores a new active account. nu must be validated beforehand.
func (svc *Service) Create(ctx context.Context, email, password string) (User, error) {
	now := nowFunc().UTC()
	usr := User{
		ID:        core.NewID(),
		Email:     core.CleanString(email, true /* lower */),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewFieldValidationError("email", ErrEmailExists)
		}
		return User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

// SignUp creates a student account and its profile.
// Profile creation is best-effort: a missing profile is provisioned again on first sign-in.
func (svc *Service) SignUp(ctx context.Context, nu NewUser) (User, error) {
	usr, err := svc.Create(ctx, nu.Email, nu.Password)
	if err != nil {
		return User{}, err
	}

	if err = svc.provisioner.Provision(ctx, usr.ID, nu.FirstName, nu.LastName); err != nil {
		svc.logger.Warn(fmt.Sprintf("provisioning profile of new user %s: %v", usr.ID, err), err)
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: nu.FirstName + " " + nu.LastName, Address: usr.Email}},
		Subject:      "Welcome to Ratiba",
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{"FirstName": nu.FirstName},
	})
	return usr, nil
}

// SignIn checks the credentials and issues a new session token.
func (svc *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return Session{}, ErrAccountDeactivated
	}

	usr.LastLogin = nowFunc().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return Session{}, errors.Wrap(err, "setting last login")
	}
	return svc.tokens.Issue(usr)
}

// CurrentUser resolves the Principal attached to ctx, if its account still exists and is active.
func (svc *Service) CurrentUser(ctx context.Context) (*Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil, nil
	}
	usr, err := svc.repo.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return nil, nil
	}
	return &Principal{UserID: usr.ID, Email: usr.Email}, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// SetPassword replaces the password of the account identified by email.
func (svc *Service) SetPassword(ctx context.Context, email, password string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetActive (de)activates an account; deactivated accounts cannot sign in and lose their sessions.
func (svc *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.IsActive = active
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
