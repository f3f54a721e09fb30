package http

import (
	"net/http"

	"property-registry/backend/internal/domain/account"
	"property-registry/backend/internal/domain/property"
	"property-registry/backend/internal/httpjson"
)

func failWith(w http.ResponseWriter, status int, kind string, err error) {
	httpjson.Error(w, status, kind, err.Error())
}

func mapAccountError(err error) (int, string) {
	switch {
	case account.IsErrNotSignedIn(err), account.IsErrInvalidCredentials(err):
		return 401, httpjson.KindUnauthenticated
	case account.IsErrBadRequest(err):
		return 400, httpjson.KindBadRequest
	case account.IsErrEmailExists(err):
		return 409, httpjson.KindConflict
	case account.IsErrNotFound(err):
		return 404, httpjson.KindNotFound
	case account.IsErrUnavailable(err):
		return 503, httpjson.KindUnavailable
	default:
		return 500, httpjson.KindInternal
	}
}

func mapPropertyError(err error) (int, string) {
	switch {
	case property.IsErrBadRequest(err):
		return 400, httpjson.KindBadRequest
	case property.IsErrNotFound(err):
		return 404, httpjson.KindNotFound
	case property.IsErrUnauthorized(err):
		return 403, httpjson.KindPermissionDenied
	case property.IsErrUnavailable(err):
		return 503, httpjson.KindUnavailable
	default:
		return 500, httpjson.KindInternal
	}
}
