package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/seoulsafe/sinkhole-api/errors"
	"github.com/seoulsafe/sinkhole-api/logging"
)

// JSON sends a bare JSON body.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if data != nil {
		// The status line is already out; an encode failure can only be
		// a broken connection.
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK sends a 200 OK response with data.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

// NoContent sends a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes err as the error envelope, tagged with the request ID.
// Server-side failures are logged here, once, with the request logger.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	if status := errors.HTTPStatus(err); status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed",
			"error", err,
			"status", status,
			"path", r.URL.Path,
		)
	}
	errors.WriteError(w, err, middleware.GetReqID(r.Context()))
}
