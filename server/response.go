package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"modstacker/collection"
	"modstacker/compat"
	"modstacker/modrinth"
	"modstacker/versions"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondErr maps domain errors to a status and code.
func respondErr(c *gin.Context, err error) {
	status, code := classify(err)
	RespondError(c, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, versions.ErrInvalidFormat):
		return http.StatusBadRequest, "invalid_version"
	case errors.Is(err, versions.ErrDuplicate):
		return http.StatusConflict, "duplicate_version"
	case errors.Is(err, versions.ErrIndexOutOfRange), errors.Is(err, collection.ErrCategoryIndex):
		return http.StatusNotFound, "index_out_of_range"
	case errors.Is(err, collection.ErrDuplicateMod):
		return http.StatusConflict, "duplicate_mod"
	case errors.Is(err, collection.ErrModNotFound):
		return http.StatusNotFound, "mod_not_found"
	case errors.Is(err, collection.ErrInvalidMod):
		return http.StatusBadRequest, "invalid_mod"
	case errors.Is(err, compat.ErrNoVersions):
		return http.StatusBadRequest, "no_versions"
	case errors.Is(err, compat.ErrNoMods):
		return http.StatusBadRequest, "no_mods"
	case errors.Is(err, compat.ErrCheckInFlight), errors.Is(err, compat.ErrAlreadyRunning):
		return http.StatusConflict, "check_in_progress"
	case errors.Is(err, collection.ErrPersistence):
		return http.StatusInternalServerError, "persistence_failed"
	case errors.Is(err, modrinth.ErrMissingParams):
		return http.StatusBadRequest, "missing_params"
	case errors.Is(err, modrinth.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, modrinth.ErrRegistryUnavailable):
		return http.StatusServiceUnavailable, "registry_unavailable"
	}
	var httpErr *modrinth.HTTPError
	if errors.As(err, &httpErr) {
		return http.StatusBadGateway, "api_error"
	}
	return http.StatusInternalServerError, "internal_error"
}
