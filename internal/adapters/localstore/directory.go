package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	domainauth "github.com/target/stockgate/internal/domain/auth"
	apperrors "github.com/target/stockgate/internal/errors"
	"github.com/target/stockgate/internal/ports"
)

// Directory is the simulated user directory kept in the client namespace
// as one JSON object keyed by email.
type Directory struct {
	kv    ports.KeyValueStore
	clock ports.Clock
	mu    sync.Mutex
}

var _ ports.Directory = (*Directory)(nil)

// NewDirectory constructs a local Directory.
func NewDirectory(kv ports.KeyValueStore, clock ports.Clock) *Directory {
	return &Directory{kv: kv, clock: clock}
}

type userMap map[string]domainauth.UserRecord

func (d *Directory) load(ctx context.Context) (userMap, error) {
	data, err := d.kv.Get(ctx, KeyUsers)
	if errors.Is(err, ports.ErrKeyNotFound) {
		return userMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	users := userMap{}
	if len(data) == 0 {
		return users, nil
	}
	if unmarshalErr := json.Unmarshal(data, &users); unmarshalErr != nil {
		return nil, fmt.Errorf("decode users: %w", unmarshalErr)
	}
	return users, nil
}

func (d *Directory) store(ctx context.Context, users userMap) error {
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := d.kv.Set(ctx, KeyUsers, data, 0); err != nil {
		return fmt.Errorf("store users: %w", err)
	}
	return nil
}

func (d *Directory) SignIn(ctx context.Context, email, password string) (domainauth.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load(ctx)
	if err != nil {
		return domainauth.Principal{}, err
	}
	u, ok := users[domainauth.NormalizeEmail(email)]
	if !ok || u.Password != password {
		return domainauth.Principal{}, apperrors.InvalidCredentials("invalid email or password")
	}
	return u.Principal(), nil
}

func (d *Directory) SignUp(ctx context.Context, in domainauth.NewUser) (domainauth.Principal, error) {
	rec, err := d.Create(ctx, in)
	if err != nil {
		return domainauth.Principal{}, err
	}
	return rec.Principal(), nil
}

func (d *Directory) Create(ctx context.Context, in domainauth.NewUser) (domainauth.UserRecord, error) {
	in.Normalize()
	if err := validateInput(in.Validate()); err != nil {
		return domainauth.UserRecord{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load(ctx)
	if err != nil {
		return domainauth.UserRecord{}, err
	}
	if _, exists := users[in.Email]; exists {
		return domainauth.UserRecord{}, apperrors.DuplicateEmail(in.Email)
	}

	now := d.clock.Now()
	rec := domainauth.UserRecord{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      domainauth.AssignRole(len(users) == 0, in.Role),
		CreatedAt: now,
		UpdatedAt: now,
	}
	users[rec.Email] = rec
	if err := d.store(ctx, users); err != nil {
		return domainauth.UserRecord{}, err
	}
	return rec, nil
}

func (d *Directory) Update(
	ctx context.Context,
	email string,
	patch domainauth.UserPatch,
) (domainauth.UserRecord, error) {
	if err := validateInput(patch.Validate()); err != nil {
		return domainauth.UserRecord{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load(ctx)
	if err != nil {
		return domainauth.UserRecord{}, err
	}
	key := domainauth.NormalizeEmail(email)
	rec, ok := users[key]
	if !ok {
		return domainauth.UserRecord{}, apperrors.NotFoundf("user %q not found", key)
	}
	patch.Apply(&rec)
	rec.UpdatedAt = d.clock.Now()
	users[key] = rec
	if err := d.store(ctx, users); err != nil {
		return domainauth.UserRecord{}, err
	}
	return rec, nil
}

func (d *Directory) Delete(ctx context.Context, email string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load(ctx)
	if err != nil {
		return err
	}
	key := domainauth.NormalizeEmail(email)
	if _, ok := users[key]; !ok {
		return apperrors.NotFoundf("user %q not found", key)
	}
	delete(users, key)
	return d.store(ctx, users)
}

// List returns all records ordered by email. Records include passwords;
// callers exposing them must project to UserView.
func (d *Directory) List(ctx context.Context) ([]domainauth.UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domainauth.UserRecord, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// Put stores rec as is, replacing any record with the same email.
// It mirrors users created by the remote directory so the local copy stays usable offline.
func (d *Directory) Put(ctx context.Context, rec domainauth.UserRecord) error {
	rec.Email = domainauth.NormalizeEmail(rec.Email)
	if rec.Email == "" {
		return apperrors.ValidationField("email", "is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.load(ctx)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	users[rec.Email] = rec
	return d.store(ctx, users)
}

func validateInput(err error) error {
	if err == nil {
		return nil
	}
	var fe *domainauth.FieldError
	if errors.As(err, &fe) {
		return apperrors.ValidationField(fe.Field, fe.Error())
	}
	return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid input")
}
