package user

import (
	"context"
	"net/mail"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrUsernameExists     = errors.New("a user with this username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")

	errRoleNotAllowed = "this role cannot be registered"
)

type (
	Repository interface {
		// CreateUser fails with ErrUsernameExists | ErrEmailExists when taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		// Results are ordered by -created_at unless orderings are given.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// DeleteUsersByID also deletes the users' enrollments, lecture views and QnAs.
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		events  core.EventPublisher
		tokens  tokenGenerator
	}
)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService, events core.EventPublisher) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		events:  events,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, exclUsr ...User) error {
	exclude := func(usr User) bool { return len(exclUsr) > 0 && exclUsr[0].ID == usr.ID }

	if uname != "" {
		if usr, err := svc.repo.GetUserByUsername(ctx, uname); err == nil && !exclude(usr) {
			return uniquenessError(ErrUsernameExists)
		} else if err != nil && errors.Cause(err) != ErrNotFound {
			return errors.Wrap(err, "finding user by username")
		}
	}
	if email != "" {
		if usr, err := svc.repo.GetUserByEmail(ctx, email); err == nil && !exclude(usr) {
			return uniquenessError(ErrEmailExists)
		} else if err != nil && errors.Cause(err) != ErrNotFound {
			return errors.Wrap(err, "finding user by email")
		}
	}
	return nil
}

func uniquenessError(err error) error {
	switch errors.Cause(err) {
	case ErrUsernameExists:
		return core.NewValidationError(ErrUsernameExists, core.FieldError{Field: "username", Error: ErrUsernameExists.Error()})
	case ErrEmailExists:
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return err
}

// Register signs up a professor or a student.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if nu.Role != RoleProf && nu.Role != RoleStudent {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: errRoleNotAllowed})
	}
	return svc.Create(ctx, nu)
}

// Create creates a user with any role. nu must have been validated.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}

	now := nowFunc().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if cause := errors.Cause(err); cause == ErrUsernameExists || cause == ErrEmailExists {
			return User{}, uniquenessError(cause)
		}
		return User{}, errors.Wrap(err, "creating user")
	}

	svc.events.Publish(core.EventUserRegistered, usr.ID, map[string]interface{}{"role": usr.Role})
	if usr.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Welcome",
			TemplateName: core.TemplateWelcome,
			TemplateData: usr,
		})
	}
	return usr, nil
}

// Authenticate checks the credentials and records the login time.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsername(ctx, uname)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by username")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	now := nowFunc().UTC()
	usr.LastLogin = &now
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryUsers(ctx, QueryFilter{})
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, core.FilterOrderings(ordering, OrderingFields...)...)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Update applies uu to the user. uu must have been validated against the user.
func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if err := svc.checkUniqueness(ctx, "", uu.Email, usr); err != nil {
		return User{}, err
	}

	usr.Name = uu.Name
	usr.Email = uu.Email
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = nowFunc().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if cause := errors.Cause(err); cause == ErrEmailExists {
		return User{}, uniquenessError(cause)
	}
	return usr, errors.Wrap(err, "updating user")
}

func (svc *Service) UpdateRole(ctx context.Context, id, role string) (User, error) {
	if !IsValidRole(role) {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: roleText})
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	usr.Role = role
	usr.UpdatedAt = nowFunc().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user role")
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return errors.Wrap(svc.repo.DeleteUsersByID(ctx, ids...), "deleting users")
}

// RequestPasswordReset mails a reset link to the active user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.mailSvc.SendMessages(svc.passwordResetMessage(usr))
	return nil
}

type passwordResetData struct {
	Name     string
	Username string
	UID      string
	Token    string
}

func (svc *Service) passwordResetMessage(usr User) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: core.TemplatePasswordReset,
		TemplateData: passwordResetData{
			Name:     usr.Name,
			Username: usr.Username,
			UID:      EncodeUID(usr),
			Token:    svc.tokens.makeToken(usr),
		},
	}
}

// ResetPassword sets a new password when the reset token is valid. data must have been validated.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalid := core.NewValidationError(errInvalidToken)

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err)
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}
