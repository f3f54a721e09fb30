package http

import (
	"net/http"

	"property-registry/backend/internal/domain/account"
	"property-registry/backend/internal/httpjson"
)

type authHandlers struct{}

func (h *authHandlers) createAccount(w http.ResponseWriter, r *http.Request) {
	var in account.CredentialsInput
	if err := httpjson.Read(r, &in); err != nil {
		httpjson.Error(w, 400, httpjson.KindBadRequest, "invalid json")
		return
	}

	u, err := facadesFrom(r.Context()).Accounts.CreateAccount(r.Context(), in.Email, in.Password)
	if err != nil {
		status, kind := mapAccountError(err)
		failWith(w, status, kind, err)
		return
	}
	httpjson.OK(w, 201, map[string]any{"user": u})
}

func (h *authHandlers) signIn(w http.ResponseWriter, r *http.Request) {
	var in account.CredentialsInput
	if err := httpjson.Read(r, &in); err != nil {
		httpjson.Error(w, 400, httpjson.KindBadRequest, "invalid json")
		return
	}

	u, err := facadesFrom(r.Context()).Accounts.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		status, kind := mapAccountError(err)
		failWith(w, status, kind, err)
		return
	}
	httpjson.OK(w, 200, map[string]any{"user": u})
}

func (h *authHandlers) signOut(w http.ResponseWriter, r *http.Request) {
	if err := facadesFrom(r.Context()).Accounts.SignOut(r.Context()); err != nil {
		status, kind := mapAccountError(err)
		failWith(w, status, kind, err)
		return
	}
	httpjson.OK(w, 200, nil)
}

func (h *authHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var in account.ChangePasswordInput
	if err := httpjson.Read(r, &in); err != nil {
		httpjson.Error(w, 400, httpjson.KindBadRequest, "invalid json")
		return
	}

	if err := facadesFrom(r.Context()).Accounts.ChangePassword(r.Context(), in.NewPassword); err != nil {
		status, kind := mapAccountError(err)
		failWith(w, status, kind, err)
		return
	}
	httpjson.OK(w, 200, nil)
}

func (h *authHandlers) me(w http.ResponseWriter, r *http.Request) {
	accounts := facadesFrom(r.Context()).Accounts
	httpjson.OK(w, 200, map[string]any{
		"authenticated": accounts.IsAuthenticated(r.Context()),
		"user":          accounts.CurrentUser(r.Context()),
	})
}

func (h *authHandlers) session(w http.ResponseWriter, r *http.Request) {
	c, ok := account.CallerFrom(r.Context())
	if !ok {
		failWith(w, 401, httpjson.KindUnauthenticated, account.ErrNotSignedIn)
		return
	}
	in, err := facadesFrom(r.Context()).Sessions.Get(r.Context(), c.UID)
	if err != nil {
		httpjson.Error(w, 503, httpjson.KindUnavailable, err.Error())
		return
	}
	httpjson.OK(w, 200, map[string]any{"session": in})
}
