// Package auth manages lounge accounts, profiles and the signed-in session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/types"
	"go.uber.org/zap"
)

const (
	AccountsCollection = "accounts"
	UsersCollection    = "users"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoSession          = errors.New("not signed in")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidRole        = errors.New("role must be user or admin")
)

// Service registers and signs in users against a store.
type Service struct {
	store  docstore.Store
	logger *zap.Logger
	now    func() time.Time
	kdf    kdfParams
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used for createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service over store.
func NewService(store docstore.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
		kdf:    defaultKDFParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) newSession(uid, email string) Session {
	return Session{Token: uuid.NewString(), UserID: uid, Email: email, CreatedAt: s.now().UTC()}
}

// Register creates an account and its default profile. The account
// document is keyed by the normalized email and created only if that key
// is free, so concurrent registrations of one address admit one winner.
func (s *Service) Register(ctx context.Context, email, password, name string) (Session, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return Session{}, ErrWeakPassword
	}

	if _, err := s.store.Get(ctx, AccountsCollection, email); err == nil {
		return Session{}, ErrEmailTaken
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return Session{}, err
	}

	hash, salt, err := hashPassword(password, s.kdf)
	if err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	uid := uuid.NewString()
	account := types.Account{Email: email, UserID: uid, PasswordHash: hash, Salt: salt, CreatedAt: now}
	fields, err := types.AccountCodec.Encode(account)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.Create(ctx, AccountsCollection, email, fields); errors.Is(err, docstore.ErrExists) {
		return Session{}, ErrEmailTaken
	} else if err != nil {
		return Session{}, fmt.Errorf("create account: %w", err)
	}

	if err := s.putProfile(ctx, uid, types.UserProfile{
		Role:      types.RoleUser,
		Email:     email,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
	}); err != nil {
		return Session{}, err
	}
	s.logger.Info("account registered", zap.String("uid", uid))
	return s.newSession(uid, email), nil
}

// SignIn checks credentials. A user without a profile gets the default
// one, as on a first sign-in.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	doc, err := s.store.Get(ctx, AccountsCollection, email)
	if errors.Is(err, docstore.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	account, err := types.AccountCodec.Decode(doc)
	if err != nil {
		return Session{}, err
	}
	ok, err := verifyPassword(password, account.PasswordHash, account.Salt)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, ErrInvalidCredentials
	}

	if _, err := s.Profile(ctx, account.UserID); errors.Is(err, docstore.ErrNotFound) {
		if err := s.putProfile(ctx, account.UserID, types.UserProfile{
			Role:      types.RoleUser,
			Email:     email,
			CreatedAt: s.now().UTC(),
		}); err != nil {
			return Session{}, err
		}
	} else if err != nil {
		return Session{}, err
	}
	return s.newSession(account.UserID, email), nil
}

func (s *Service) putProfile(ctx context.Context, uid string, profile types.UserProfile) error {
	fields, err := types.ProfileCodec.Encode(profile)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, UsersCollection, uid, fields); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

// Profile returns the users/{uid} document.
func (s *Service) Profile(ctx context.Context, uid string) (types.UserProfile, error) {
	doc, err := s.store.Get(ctx, UsersCollection, uid)
	if err != nil {
		return types.UserProfile{}, err
	}
	return types.ProfileCodec.Decode(doc)
}

// ProfileUpdate holds the fields a user may change on their own profile.
// Nil fields are left as they are.
type ProfileUpdate struct {
	Name     *string
	PhotoURL *string
}

// UpdateProfile applies update to the user's profile.
func (s *Service) UpdateProfile(ctx context.Context, uid string, update ProfileUpdate) (types.UserProfile, error) {
	patch := types.Fields{}
	if update.Name != nil {
		patch["name"] = strings.TrimSpace(*update.Name)
	}
	if update.PhotoURL != nil {
		if url := strings.TrimSpace(*update.PhotoURL); url != "" {
			patch["photoURL"] = url
		} else {
			patch["photoURL"] = nil
		}
	}
	if len(patch) > 0 {
		if err := s.store.Update(ctx, UsersCollection, uid, patch); err != nil {
			return types.UserProfile{}, err
		}
	}
	return s.Profile(ctx, uid)
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, uid string, role types.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	return s.store.Update(ctx, UsersCollection, uid, types.Fields{"role": string(role)})
}

// IdentityFor resolves session into the acting identity.
func (s *Service) IdentityFor(ctx context.Context, session Session) (*types.Identity, error) {
	profile, err := s.Profile(ctx, session.UserID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("user %s has no profile in this lounge: %w", session.UserID, ErrNoSession)
	}
	if err != nil {
		return nil, err
	}
	role := profile.Role
	if !role.Valid() {
		role = types.RoleUser
	}
	return &types.Identity{
		ID:          session.UserID,
		DisplayName: profile.Name,
		AvatarURL:   profile.PhotoURL,
		Role:        role,
	}, nil
}

// SessionIdentity resolves the saved session on every call.
type SessionIdentity struct {
	Service  *Service
	Sessions *SessionStore
}

// Current returns the signed-in identity, or nil when there is no session.
func (s SessionIdentity) Current(ctx context.Context) (*types.Identity, error) {
	session, err := s.Sessions.Load()
	if errors.Is(err, ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.Service.IdentityFor(ctx, session)
}
