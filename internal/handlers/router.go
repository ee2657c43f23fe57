package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prudhvinik1/webradegast/internal/middleware"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Auth        AuthService
	Accounts    AccountService
	Presence    PresenceService
	Connections ConnectionCounter
	Hub         http.Handler
	Metrics     http.Handler
	Checks      map[string]ReadyCheck
	Logger      *zap.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	authHandler := NewAuthHandler(d.Auth, d.Logger)
	accountHandler := NewAccountHandler(d.Accounts, d.Logger)
	presenceHandler := NewPresenceHandler(d.Presence, d.Accounts, d.Connections, d.Logger)

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)

	router.Get("/health", Health)
	router.Get("/ready", Ready(d.Checks))
	if d.Metrics != nil {
		router.Handle("/metrics", d.Metrics)
	}
	if d.Hub != nil {
		router.Handle("/ws", d.Hub)
	}

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.Auth))

			r.Post("/auth/logout", authHandler.Logout)
			r.Post("/auth/logout-all", authHandler.LogoutAll)

			r.Route("/accounts", func(r chi.Router) {
				r.Post("/", accountHandler.Create)
				r.Get("/", accountHandler.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", accountHandler.Get)
					r.Delete("/", accountHandler.Delete)
					r.Post("/login", accountHandler.Login)
					r.Post("/logout", accountHandler.Logout)

					r.Get("/presence", presenceHandler.GetAccountPresence)
					r.Post("/presence/away", presenceHandler.SetAway)
					r.Post("/presence/busy", presenceHandler.SetBusy)
					r.Post("/presence/active", presenceHandler.SetActive)
				})
			})

			r.Route("/presence", func(r chi.Router) {
				r.Get("/", presenceHandler.Snapshot)
				r.Post("/browser-close", presenceHandler.BrowserClose)
				r.Post("/browser-return", presenceHandler.BrowserReturn)
				r.Post("/active-account", presenceHandler.SetActiveAccount)
			})
		})
	})

	return router
}
