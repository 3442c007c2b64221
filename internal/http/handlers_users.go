package httpx

import (
	"net/http"

	domainauth "github.com/target/stockgate/internal/domain/auth"
)

// UserHandlers serves the admin user directory. The caller's role always comes
// from the resolved session, never from the request.
type UserHandlers struct{}

// callerSession resolves the session of the requesting client.
func callerSession(w http.ResponseWriter, r *http.Request) (*ClientServices, domainauth.Session, bool) {
	svc, ok := clientServices(w, r)
	if !ok {
		return nil, domainauth.Session{}, false
	}
	res, err := svc.Sessions.Resolve(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return nil, domainauth.Session{}, false
	}
	return svc, res.Session, true
}

// List returns every user without passwords.
// GET /api/users.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	svc, caller, ok := callerSession(w, r)
	if !ok {
		return
	}
	users, err := svc.Users.List(r.Context(), caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

// Create adds a user.
// POST /api/users.
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	svc, caller, ok := callerSession(w, r)
	if !ok {
		return
	}
	var in domainauth.NewUser
	if !DecodeJSON(w, r, &in) {
		return
	}
	view, err := svc.Users.Create(r.Context(), caller, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, view)
}

// Update patches the user identified by the email path segment.
// PATCH /api/users/{email}.
func (h *UserHandlers) Update(w http.ResponseWriter, r *http.Request) {
	svc, caller, ok := callerSession(w, r)
	if !ok {
		return
	}
	var patch domainauth.UserPatch
	if !DecodeJSON(w, r, &patch) {
		return
	}
	view, err := svc.Users.Update(r.Context(), caller, r.PathValue("email"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// Delete removes the user identified by the email path segment.
// DELETE /api/users/{email}.
func (h *UserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	svc, caller, ok := callerSession(w, r)
	if !ok {
		return
	}
	if err := svc.Users.Delete(r.Context(), caller, r.PathValue("email")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
