package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	domainauth "github.com/target/stockgate/internal/domain/auth"
	apperrors "github.com/target/stockgate/internal/errors"
	"github.com/target/stockgate/internal/ports"
)

// DirectoryOptions groups dependencies for Directory.
type DirectoryOptions struct {
	Identity  ports.RemoteIdentity // Required: sign-in and sign-up switch the current user
	Client    ports.IdentityClient // Required: administrative creation leaves the current user alone
	Documents ports.DocumentStore  // Required
	Logger    *slog.Logger         // Optional
}

// Directory keeps users as hosted accounts plus one profile document per uid.
type Directory struct {
	identity ports.RemoteIdentity
	client   ports.IdentityClient
	docs     ports.DocumentStore
	logger   *slog.Logger
}

var _ ports.Directory = (*Directory)(nil)

// NewDirectory constructs a remote Directory.
func NewDirectory(opts DirectoryOptions) (*Directory, error) {
	if opts.Identity == nil {
		return nil, errors.New("remote identity is required")
	}
	if opts.Client == nil {
		return nil, errors.New("identity client is required")
	}
	if opts.Documents == nil {
		return nil, errors.New("document store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		identity: opts.Identity,
		client:   opts.Client,
		docs:     opts.Documents,
		logger:   logger.With("component", "remote_directory"),
	}, nil
}

func (d *Directory) SignIn(ctx context.Context, email, password string) (domainauth.Principal, error) {
	return d.identity.SignIn(ctx, email, password)
}

func (d *Directory) SignUp(ctx context.Context, in domainauth.NewUser) (domainauth.Principal, error) {
	return d.identity.SignUp(ctx, in)
}

// Create registers an account on behalf of an administrator.
func (d *Directory) Create(ctx context.Context, in domainauth.NewUser) (domainauth.UserRecord, error) {
	rec, _, err := createAccount(ctx, d.client, d.docs, d.logger, in)
	return rec, err
}

// Update merges profile fields into the user's document. Password changes are not
// applied remotely; the hosted service owns credentials.
func (d *Directory) Update(
	ctx context.Context,
	email string,
	patch domainauth.UserPatch,
) (domainauth.UserRecord, error) {
	if err := validationError(patch.Validate()); err != nil {
		return domainauth.UserRecord{}, err
	}
	doc, err := d.findByEmail(ctx, email)
	if err != nil {
		return domainauth.UserRecord{}, err
	}

	fields := map[string]any{}
	if patch.FirstName != nil {
		fields["firstName"] = *patch.FirstName
	}
	if patch.LastName != nil {
		fields["lastName"] = *patch.LastName
	}
	if patch.Role != nil {
		fields["role"] = string(*patch.Role)
	}
	if patch.Password != nil {
		d.logger.InfoContext(ctx, "ignoring remote password change", "uid", doc.ID)
	}

	if len(fields) > 0 {
		if err := d.docs.Update(ctx, UsersCollection, doc.ID, fields); err != nil {
			return domainauth.UserRecord{}, fmt.Errorf("update user profile: %w", err)
		}
	}

	rec := recordFromDocument(doc)
	patch.Password = nil
	patch.Apply(&rec)
	return rec, nil
}

// Delete removes the user's profile document. The hosted account itself is kept.
func (d *Directory) Delete(ctx context.Context, email string) error {
	doc, err := d.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := d.docs.Delete(ctx, UsersCollection, doc.ID); err != nil {
		return fmt.Errorf("delete user profile: %w", err)
	}
	return nil
}

// List returns every profile ordered by email.
func (d *Directory) List(ctx context.Context) ([]domainauth.UserRecord, error) {
	docs, err := d.docs.List(ctx, UsersCollection)
	if err != nil {
		return nil, fmt.Errorf("list user profiles: %w", err)
	}
	out := make([]domainauth.UserRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, recordFromDocument(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (d *Directory) findByEmail(ctx context.Context, email string) (ports.Document, error) {
	key := domainauth.NormalizeEmail(email)
	docs, err := d.docs.FindBy(ctx, UsersCollection, "email", key)
	if err != nil {
		return ports.Document{}, fmt.Errorf("find user profile: %w", err)
	}
	if len(docs) == 0 {
		return ports.Document{}, apperrors.NotFoundf("user %q not found", key)
	}
	return docs[0], nil
}

// createAccount creates the hosted account and its profile document. The first account of
// an empty users collection becomes an administrator. A failed profile write is logged only.
func createAccount(
	ctx context.Context,
	client ports.IdentityClient,
	docs ports.DocumentStore,
	logger *slog.Logger,
	in domainauth.NewUser,
) (domainauth.UserRecord, ports.Credential, error) {
	in.Normalize()
	if err := validationError(in.Validate()); err != nil {
		return domainauth.UserRecord{}, ports.Credential{}, err
	}

	empty := false
	existing, err := docs.List(ctx, UsersCollection)
	if err != nil {
		logger.WarnContext(ctx, "could not check for existing users", "error", err)
	} else {
		empty = len(existing) == 0
	}
	role := domainauth.AssignRole(empty, in.Role)

	cred, err := client.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		return domainauth.UserRecord{}, ports.Credential{}, err
	}
	if cred.Email == "" {
		cred.Email = in.Email
	}

	profile := map[string]any{
		"firstName": in.FirstName,
		"lastName":  in.LastName,
		"username":  in.Email,
		"email":     in.Email,
		"role":      string(role),
	}
	if err := docs.Set(ctx, UsersCollection, cred.UserID, profile); err != nil {
		logger.WarnContext(ctx, "saving user profile failed", "uid", cred.UserID, "error", err)
	}

	return domainauth.UserRecord{
		ID:        cred.UserID,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      role,
	}, cred, nil
}

func recordFromDocument(doc ports.Document) domainauth.UserRecord {
	return domainauth.UserRecord{
		ID:        doc.ID,
		Email:     domainauth.NormalizeEmail(doc.String("email")),
		FirstName: doc.String("firstName"),
		LastName:  doc.String("lastName"),
		Role:      domainauth.Role(doc.String("role")).OrDefault(),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fe *domainauth.FieldError
	if errors.As(err, &fe) {
		return apperrors.ValidationField(fe.Field, fe.Error())
	}
	return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid input")
}
