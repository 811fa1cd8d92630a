package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Auth       *AuthHandler
	Sessions   *SessionHandler
	Analytics  *AnalyticsHandler
	Middleware []func(http.Handler) http.Handler
	// Authenticated wraps every route except login; typically RequireSession.
	Authenticated func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Login(w, r)
		})
		mux.Handle("/logout", authenticated(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Logout(w, r)
		})))
	}

	if cfg.Sessions != nil {
		mux.Handle("/sessions", authenticated(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Sessions.Create(w, r)
		})))
		mux.Handle("/sessions/", authenticated(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			routeSession(cfg.Sessions, w, r)
		})))
		mux.Handle("/availability", authenticated(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Sessions.Availability(w, r)
		})))
	}

	if cfg.Analytics != nil {
		mux.Handle("/analytics", authenticated(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Analytics.Report(w, r)
		})))
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

// routeSession dispatches /sessions/{id}[/...] by path shape:
//
//	/sessions/{id}                    GET, PUT
//	/sessions/{id}/cancel             POST
//	/sessions/{id}/start              POST
//	/sessions/{id}/complete           POST
//	/sessions/{id}/members/{memberID} POST, DELETE
func routeSession(handler *SessionHandler, w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		http.NotFound(w, r)
		return
	}

	r = r.WithContext(ContextWithSessionID(r.Context(), segments[0]))

	switch {
	case len(segments) == 1:
		switch r.Method {
		case http.MethodGet:
			handler.Get(w, r)
		case http.MethodPut:
			handler.Update(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPut)
		}
	case len(segments) == 2 && (segments[1] == "cancel" || segments[1] == "start" || segments[1] == "complete"):
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		handler.Transition(w, r, segments[1])
	case len(segments) == 3 && segments[1] == "members":
		switch r.Method {
		case http.MethodPost:
			handler.AddMember(w, r, segments[2])
		case http.MethodDelete:
			handler.RemoveMember(w, r, segments[2])
		default:
			methodNotAllowed(w, http.MethodPost, http.MethodDelete)
		}
	default:
		http.NotFound(w, r)
	}
}

func authenticated(cfg RouterConfig, next http.Handler) http.Handler {
	if cfg.Authenticated != nil {
		return cfg.Authenticated(next)
	}
	return next
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
