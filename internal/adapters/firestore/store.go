// Package firestore implements ports.DocumentStore over the Firestore REST API.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	apperrors "github.com/target/stockgate/internal/errors"
	"github.com/target/stockgate/internal/ports"
)

const (
	DefaultBaseURL  = "https://firestore.googleapis.com"
	DefaultDatabase = "(default)"

	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
	listPageSize   = 300
)

// TokenFunc returns the bearer token for the signed-in user, or "" when anonymous.
type TokenFunc func(ctx context.Context) (string, error)

// StoreOptions groups configuration for DocumentStore.
type StoreOptions struct {
	ProjectID  string        // Required
	APIKey     string        // Optional
	BaseURL    string        // Optional: defaults to DefaultBaseURL
	Database   string        // Optional: defaults to DefaultDatabase
	Timeout    time.Duration // Optional
	Token      TokenFunc     // Optional: adds an Authorization header
	HTTPClient *http.Client  // Optional
	Logger     *slog.Logger  // Optional
}

// DocumentStore talks to one Firestore database.
type DocumentStore struct {
	http   *resty.Client
	root   string // projects/<p>/databases/<db>
	base   string // <BaseURL>/v1/<root>/documents
	apiKey string
	token  TokenFunc
	logger *slog.Logger
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore constructs a DocumentStore.
func NewDocumentStore(opts StoreOptions) (*DocumentStore, error) {
	if strings.TrimSpace(opts.ProjectID) == "" {
		return nil, errors.New("firestore project id is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	db := opts.Database
	if db == "" {
		db = DefaultDatabase
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	root := fmt.Sprintf("projects/%s/databases/%s", opts.ProjectID, db)
	return &DocumentStore{
		http:   rc,
		root:   root,
		base:   baseURL + "/v1/" + root + "/documents",
		apiKey: opts.APIKey,
		token:  opts.Token,
		logger: logger.With("component", "firestore"),
	}, nil
}

type wireDocument struct {
	Name       string           `json:"name,omitempty"`
	Fields     map[string]value `json:"fields,omitempty"`
	CreateTime string           `json:"createTime,omitempty"`
	UpdateTime string           `json:"updateTime,omitempty"`
}

type listResponse struct {
	Documents     []wireDocument `json:"documents"`
	NextPageToken string         `json:"nextPageToken"`
}

type queryResult struct {
	Document *wireDocument `json:"document,omitempty"`
}

type fieldTransform struct {
	FieldPath        string `json:"fieldPath"`
	SetToServerValue string `json:"setToServerValue"`
}

type precondition struct {
	Exists *bool `json:"exists,omitempty"`
}

type documentMask struct {
	FieldPaths []string `json:"fieldPaths"`
}

type write struct {
	Update           *wireDocument    `json:"update,omitempty"`
	Delete           string           `json:"delete,omitempty"`
	UpdateMask       *documentMask    `json:"updateMask,omitempty"`
	UpdateTransforms []fieldTransform `json:"updateTransforms,omitempty"`
	CurrentDocument  *precondition    `json:"currentDocument,omitempty"`
}

type commitRequest struct {
	Writes []write `json:"writes"`
}

type statusError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (s *DocumentStore) request(ctx context.Context) (*resty.Request, error) {
	r := s.http.R().SetContext(ctx)
	if s.apiKey != "" {
		r.SetQueryParam("key", s.apiKey)
	}
	if s.token != nil {
		tok, err := s.token(ctx)
		if err != nil {
			return nil, apperrors.RemoteUnavailable(fmt.Errorf("fetch id token: %w", err))
		}
		if tok != "" {
			r.SetAuthToken(tok)
		}
	}
	return r, nil
}

func (s *DocumentStore) docName(collection, id string) string {
	return s.root + "/documents/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}

// Get returns one document; a missing document is NotFound.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (ports.Document, error) {
	req, err := s.request(ctx)
	if err != nil {
		return ports.Document{}, err
	}
	var (
		out    wireDocument
		errOut statusError
	)
	resp, err := req.SetResult(&out).SetError(&errOut).
		Get(s.base + "/" + url.PathEscape(collection) + "/" + url.PathEscape(id))
	if err := s.check(ctx, "get", resp, err, &errOut); err != nil {
		return ports.Document{}, err
	}
	return toDocument(out), nil
}

// Set creates or replaces a document and stamps both timestamps.
func (s *DocumentStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	doc, err := s.wire(collection, id, fields)
	if err != nil {
		return err
	}
	return s.commit(ctx, "set", write{
		Update:           doc,
		UpdateTransforms: serverStamps(fieldCreatedAt, fieldUpdatedAt),
	})
}

// Add creates a document under a new id.
func (s *DocumentStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	doc, err := s.wire(collection, id, fields)
	if err != nil {
		return "", err
	}
	exists := false
	if err := s.commit(ctx, "add", write{
		Update:           doc,
		UpdateTransforms: serverStamps(fieldCreatedAt, fieldUpdatedAt),
		CurrentDocument:  &precondition{Exists: &exists},
	}); err != nil {
		return "", err
	}
	return id, nil
}

// Update merges fields into an existing document; a missing document is NotFound.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	doc, err := s.wire(collection, id, fields)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(fields))
	for k := range fields {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	exists := true
	return s.commit(ctx, "update", write{
		Update:           doc,
		UpdateMask:       &documentMask{FieldPaths: paths},
		UpdateTransforms: serverStamps(fieldUpdatedAt),
		CurrentDocument:  &precondition{Exists: &exists},
	})
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	return s.commit(ctx, "delete", write{Delete: s.docName(collection, id)})
}

// List returns every document of a collection, following page tokens.
func (s *DocumentStore) List(ctx context.Context, collection string) ([]ports.Document, error) {
	var docs []ports.Document
	pageToken := ""
	for {
		req, err := s.request(ctx)
		if err != nil {
			return nil, err
		}
		var (
			out    listResponse
			errOut statusError
		)
		req.SetQueryParam("pageSize", fmt.Sprint(listPageSize))
		if pageToken != "" {
			req.SetQueryParam("pageToken", pageToken)
		}
		resp, err := req.SetResult(&out).SetError(&errOut).Get(s.base + "/" + url.PathEscape(collection))
		if err := s.check(ctx, "list", resp, err, &errOut); err != nil {
			return nil, err
		}
		for _, d := range out.Documents {
			docs = append(docs, toDocument(d))
		}
		if out.NextPageToken == "" {
			return docs, nil
		}
		pageToken = out.NextPageToken
	}
}

// FindBy runs an equality query on one field.
func (s *DocumentStore) FindBy(ctx context.Context, collection, field string, v any) ([]ports.Document, error) {
	ev, err := encodeValue(v)
	if err != nil {
		return nil, apperrors.Validationf("query value: %v", err)
	}
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"structuredQuery": map[string]any{
			"from": []map[string]any{{"collectionId": collection}},
			"where": map[string]any{
				"fieldFilter": map[string]any{
					"field": map[string]any{"fieldPath": field},
					"op":    "EQUAL",
					"value": ev,
				},
			},
		},
	}
	var (
		out    []queryResult
		errOut statusError
	)
	resp, err := req.SetHeader("Content-Type", "application/json").
		SetBody(body).SetResult(&out).SetError(&errOut).
		Post(s.base + ":runQuery")
	if err := s.check(ctx, "query", resp, err, &errOut); err != nil {
		return nil, err
	}
	docs := make([]ports.Document, 0, len(out))
	for _, r := range out {
		if r.Document != nil {
			docs = append(docs, toDocument(*r.Document))
		}
	}
	return docs, nil
}

func (s *DocumentStore) wire(collection, id string, fields map[string]any) (*wireDocument, error) {
	if collection == "" || id == "" {
		return nil, apperrors.Validation("collection and id are required")
	}
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == fieldCreatedAt || k == fieldUpdatedAt {
			continue
		}
		clean[k] = v
	}
	enc, err := encodeFields(clean)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return &wireDocument{Name: s.docName(collection, id), Fields: enc}, nil
}

func (s *DocumentStore) commit(ctx context.Context, op string, w write) error {
	req, err := s.request(ctx)
	if err != nil {
		return err
	}
	var errOut statusError
	resp, err := req.SetHeader("Content-Type", "application/json").
		SetBody(commitRequest{Writes: []write{w}}).
		SetError(&errOut).
		Post(s.base + ":commit")
	return s.check(ctx, op, resp, err, &errOut)
}

func (s *DocumentStore) check(ctx context.Context, op string, resp *resty.Response, err error, se *statusError) error {
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperrors.RemoteUnavailable(fmt.Errorf("%s: %w", op, ctxErr))
		}
		s.logger.WarnContext(ctx, "document request failed", "op", op, "error", err)
		return apperrors.RemoteUnavailable(fmt.Errorf("%s: %w", op, err))
	}
	if !resp.IsError() {
		return nil
	}

	msg := se.Error.Message
	if msg == "" {
		msg = resp.Status()
	}
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return apperrors.NotFound(msg)
	case http.StatusConflict:
		return apperrors.Conflict(msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case http.StatusBadRequest:
		if se.Error.Status == "FAILED_PRECONDITION" {
			return apperrors.Conflict(msg)
		}
		return apperrors.Validation(msg)
	}
	return apperrors.RemoteUnavailable(fmt.Errorf("%s: status %d: %s", op, resp.StatusCode(), msg))
}

func serverStamps(paths ...string) []fieldTransform {
	out := make([]fieldTransform, 0, len(paths))
	for _, p := range paths {
		out = append(out, fieldTransform{FieldPath: p, SetToServerValue: "REQUEST_TIME"})
	}
	return out
}

func toDocument(w wireDocument) ports.Document {
	fields := decodeFields(w.Fields)
	doc := ports.Document{ID: path.Base(w.Name), Fields: fields}

	doc.CreatedAt = stamp(fields[fieldCreatedAt], w.CreateTime)
	doc.UpdatedAt = stamp(fields[fieldUpdatedAt], w.UpdateTime)
	delete(fields, fieldCreatedAt)
	delete(fields, fieldUpdatedAt)
	return doc
}

func stamp(field any, fallback string) time.Time {
	if ts, ok := field.(time.Time); ok {
		return ts
	}
	ts, err := time.Parse(time.RFC3339Nano, fallback)
	if err != nil {
		return time.Time{}
	}
	return ts
}
