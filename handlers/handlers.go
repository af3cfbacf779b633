package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/upb/jaffa-explorer/repositories"
	"github.com/upb/jaffa-explorer/utils"
)

// intParam reads a numeric URL parameter, writing a 404 when it is not a number.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n <= 0 {
		_ = utils.WriteNotFound(w, "")
		return 0, false
	}
	return n, true
}

// writeRepoError maps repository failures to responses
func writeRepoError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, notFound string) {
	if errors.Is(err, repositories.ErrNotFound) {
		_ = utils.WriteNotFound(w, notFound)
		return
	}
	logger.Error("repository failure",
		zap.String("request_id", chimw.GetReqID(r.Context())),
		zap.Error(err))
	_ = utils.WriteInternalServerError(w, "")
}
