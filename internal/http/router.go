package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Teams       *TeamHandler
	Shifts      *ShiftHandler
	Patterns    *PatternHandler
	Assignments *AssignmentHandler
	Exceptions  *ExceptionHandler
	Schedules   *ScheduleHandler
	Middleware  []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.HandleFunc("/sessions/current", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		})
		mux.HandleFunc("/sessions/refresh", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.RefreshSession(w, r)
		})
		mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.URL.Path, "/sessions/")
			if token == "" || strings.Contains(token, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteSession(w, r, token)
		})
	}

	if cfg.Users != nil {
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Users.List(w, r)
			case http.MethodPost:
				cfg.Users.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/users/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Users.Get(w, r, id)
			case http.MethodPut:
				cfg.Users.Update(w, r, id)
			case http.MethodDelete:
				cfg.Users.Delete(w, r, id)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Teams != nil {
		mux.HandleFunc("/teams", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Teams.List(w, r)
			case http.MethodPost:
				cfg.Teams.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/teams/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/teams/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}
			if id, ok := strings.CutSuffix(rest, "/half-teams"); ok && !strings.Contains(id, "/") {
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Teams.ListHalfTeams(w, r, id)
				return
			}
			if strings.Contains(rest, "/") {
				http.NotFound(w, r)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Teams.Get(w, r, rest)
			case http.MethodPut:
				cfg.Teams.Update(w, r, rest)
			case http.MethodDelete:
				cfg.Teams.Delete(w, r, rest)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Shifts != nil {
		mux.HandleFunc("/shifts", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Shifts.List(w, r)
			case http.MethodPost:
				cfg.Shifts.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/shifts/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/shifts/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Shifts.Get(w, r, id)
			case http.MethodPut:
				cfg.Shifts.Update(w, r, id)
			case http.MethodDelete:
				cfg.Shifts.Delete(w, r, id)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Patterns != nil {
		mux.HandleFunc("/patterns", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Patterns.List(w, r)
			case http.MethodPost:
				cfg.Patterns.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/patterns/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/patterns/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}
			if id, ok := strings.CutSuffix(rest, "/preview"); ok && !strings.Contains(id, "/") {
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Patterns.Preview(w, r, id)
				return
			}
			if strings.Contains(rest, "/") {
				http.NotFound(w, r)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Patterns.Get(w, r, rest)
			case http.MethodPut:
				cfg.Patterns.Update(w, r, rest)
			case http.MethodDelete:
				cfg.Patterns.Delete(w, r, rest)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Assignments != nil {
		mux.HandleFunc("/assignments", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Assignments.List(w, r)
			case http.MethodPost:
				cfg.Assignments.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/assignments/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/assignments/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}
			if id, verb, ok := strings.Cut(rest, "/"); ok {
				if id == "" || verb == "" || strings.Contains(verb, "/") {
					http.NotFound(w, r)
					return
				}
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Assignments.Transition(w, r, id, verb)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Assignments.Get(w, r, rest)
			case http.MethodPut:
				cfg.Assignments.Update(w, r, rest)
			case http.MethodDelete:
				cfg.Assignments.Delete(w, r, rest)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Exceptions != nil {
		mux.HandleFunc("/exceptions", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Exceptions.List(w, r)
			case http.MethodPost:
				cfg.Exceptions.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/exceptions/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/exceptions/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}
			if id, verb, ok := strings.Cut(rest, "/"); ok {
				if id == "" || verb == "" || strings.Contains(verb, "/") {
					http.NotFound(w, r)
					return
				}
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Exceptions.Transition(w, r, id, verb)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Exceptions.Get(w, r, rest)
			case http.MethodPut:
				cfg.Exceptions.Update(w, r, rest)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut)
			}
		})
	}

	if cfg.Schedules != nil {
		mux.HandleFunc("/schedule/users/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/schedule/users/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Schedules.UserSchedule(w, r, id)
		})
		mux.HandleFunc("/schedule/teams/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/schedule/teams/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Schedules.TeamRoster(w, r, id)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
