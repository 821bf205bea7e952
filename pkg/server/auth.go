package server

import (
	"context"
	"net/http"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/auth"
)

// WithAuth wraps next so every request must carry a bearer token svc
// accepts. The authenticated subject becomes the call's user, which sets
// the owner of new tasks and scopes task listing downstream. Push-config
// CRUD does not read it: configs are keyed by task id only.
func WithAuth(next http.Handler, svc *auth.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := svc.Authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		cc := serverCallContextFromHeaders(r.Header)
		cc.User = &a2a.ServerUser{UserName: subject, Authenticated: true}
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), callContextKey{}, cc),
		))
	})
}
