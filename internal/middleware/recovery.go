package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"wpcom-shopping-cart/internal/logging"
	"wpcom-shopping-cart/pkg/apierror"
	"wpcom-shopping-cart/pkg/response"
)

// Recovery turns a handler panic into a 500 error envelope.
func Recovery(next http.Handler) http.Handler {
	log := logging.New("Recovery")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.WithFields(logrus.Fields{
				"panic":      rec,
				"method":     r.Method,
				"path":       r.URL.Path,
				"request_id": GetRequestID(r.Context()),
				"stack":      string(debug.Stack()),
			}).Error("Recovered from panic")
			response.Error(w, apierror.InternalError("internal server error"))
		}()

		next.ServeHTTP(w, r)
	})
}
