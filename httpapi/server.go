// Package httpapi exposes the pot service as a JSON API over chi.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/billbatista/acasinha-pots/app"
	"github.com/billbatista/acasinha-pots/eventlogger"
	"github.com/billbatista/acasinha-pots/middleware"
	"github.com/billbatista/acasinha-pots/session"
	"github.com/billbatista/acasinha-pots/user"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

type Server struct {
	app          *app.Service
	users        user.Repository
	sessions     session.Repository
	tokens       *middleware.Tokens
	events       app.EventLog
	cookieSecure bool
}

type Option func(*Server)

// WithTokens enables bearer authentication and makes login return a token.
func WithTokens(tokens *middleware.Tokens) Option {
	return func(s *Server) {
		s.tokens = tokens
	}
}

func WithEvents(events app.EventLog) Option {
	return func(s *Server) {
		s.events = events
	}
}

func WithSecureCookies(secure bool) Option {
	return func(s *Server) {
		s.cookieSecure = secure
	}
}

func NewServer(svc *app.Service, users user.Repository, sessions session.Repository, opts ...Option) *Server {
	s := &Server{app: svc, users: users, sessions: sessions}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.AuthMiddleware(s.sessions, s.tokens))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		s.log(eventlogger.NewEvent(
			eventlogger.WithType("health_request"),
			eventlogger.WithData(map[string]string{
				"message":     "ok",
				"http_status": strconv.Itoa(http.StatusOK),
			}),
		))
		w.Write([]byte("ok"))
	})

	router.Post("/user/register", s.register)
	router.Post("/user/login", s.login)
	router.Post("/user/logout", s.logout)

	// Protected routes - require authentication
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/me", s.me)
		r.Put("/me/name", s.updateName)
		r.Put("/me/avatar", s.updateAvatar)

		r.Get("/pots", s.listPots)
		r.Post("/pots", s.createPot)
		r.Post("/pots/join", s.joinPot)

		r.Route("/pots/{potID}", func(r chi.Router) {
			r.Get("/", s.getPot)
			r.Patch("/", s.updatePot)
			r.Delete("/", s.deletePot)
			r.Put("/status", s.setStatus)

			r.Get("/members", s.listMembers)
			r.Delete("/members/me", s.leavePot)
			r.Put("/members/{userID}/role", s.setMemberRole)
			r.Delete("/members/{userID}", s.removeMember)

			r.Get("/transactions", s.listTransactions)
			r.Post("/deposits", s.deposit)
			r.Post("/expenses", s.spend)
			r.Put("/transactions/{txID}", s.editTransaction)
			r.Delete("/transactions/{txID}", s.deleteTransaction)

			r.Get("/balances", s.balances)
		})
	})

	return router
}

func (s *Server) log(e eventlogger.Event) {
	if s.events != nil {
		s.events.Log(e)
	}
}
