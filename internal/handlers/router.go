package handlers

import (
	"net/http"

	"github.com/eventhon/eventhon/internal/metrics"
	"github.com/eventhon/eventhon/internal/middleware"
	"github.com/eventhon/eventhon/internal/models"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Auth          *AuthHandlers
	Events        *EventHandlers
	Scholarships  *ScholarshipHandlers
	AuthMW        *middleware.AuthMiddleware
	Recorder      metrics.Recorder
	Gatherer      prometheus.Gatherer
	AllowedOrigin string
	Logger        *logrus.Logger
}

// NewRouter wires every route. CORS, logging and recovery wrap the whole
// router so that preflight and unmatched requests pass through them too.
func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	authed := func(h http.HandlerFunc) http.Handler {
		return cfg.AuthMW.RequireAuth(h)
	}
	withRole := func(h http.HandlerFunc, roles ...models.Role) http.Handler {
		return cfg.AuthMW.RequireAuth(middleware.RequireRole(roles...)(h))
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler(cfg.Gatherer)).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", cfg.Auth.Register).Methods(http.MethodPost)
	auth.HandleFunc("/verify-otp", cfg.Auth.VerifyOTP).Methods(http.MethodPost)
	auth.HandleFunc("/resend-otp", cfg.Auth.ResendOTP).Methods(http.MethodPost)
	auth.HandleFunc("/login", cfg.Auth.Login).Methods(http.MethodPost)
	auth.Handle("/logout", authed(cfg.Auth.Logout)).Methods(http.MethodPost)
	auth.Handle("/me", authed(cfg.Auth.Me)).Methods(http.MethodGet)

	ev := cfg.Events
	api.HandleFunc("/events", ev.List).Methods(http.MethodGet)
	api.Handle("/events", withRole(ev.Create, models.RoleOrganizer, models.RoleAdmin)).Methods(http.MethodPost)
	api.Handle("/events/mine", authed(ev.ListMine)).Methods(http.MethodGet)
	api.Handle("/events/registered", authed(ev.ListRegistered)).Methods(http.MethodGet)
	api.HandleFunc("/events/organizer/{organizerId}", ev.ListByOrganizer).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", ev.Get).Methods(http.MethodGet)
	api.Handle("/events/{id}", authed(ev.Update)).Methods(http.MethodPut)
	api.Handle("/events/{id}", authed(ev.Delete)).Methods(http.MethodDelete)
	api.HandleFunc("/events/{id}/participants", ev.Participants).Methods(http.MethodGet)
	api.Handle("/events/{id}/register", authed(ev.Register)).Methods(http.MethodPost)
	api.Handle("/events/{id}/register", authed(ev.CancelRegistration)).Methods(http.MethodDelete)
	api.Handle("/events/{id}/remove-participant", authed(ev.RemoveParticipant)).Methods(http.MethodPost)

	sc := cfg.Scholarships
	api.HandleFunc("/scholarships", sc.List).Methods(http.MethodGet)
	api.Handle("/scholarships", withRole(sc.Create, models.RoleOrganizer, models.RoleAdmin)).Methods(http.MethodPost)
	api.Handle("/scholarships/mine", authed(sc.ListMine)).Methods(http.MethodGet)
	api.Handle("/scholarships/registered", authed(sc.ListRegistered)).Methods(http.MethodGet)
	api.HandleFunc("/scholarships/organizer/{organizerId}", sc.ListByOrganizer).Methods(http.MethodGet)
	api.HandleFunc("/scholarships/{id}", sc.Get).Methods(http.MethodGet)
	api.Handle("/scholarships/{id}", authed(sc.Update)).Methods(http.MethodPut)
	api.Handle("/scholarships/{id}", authed(sc.Delete)).Methods(http.MethodDelete)
	api.HandleFunc("/scholarships/{id}/participants", sc.Participants).Methods(http.MethodGet)
	api.Handle("/scholarships/{id}/register", authed(sc.Register)).Methods(http.MethodPost)
	api.Handle("/scholarships/{id}/register", authed(sc.CancelRegistration)).Methods(http.MethodDelete)
	api.Handle("/scholarships/{id}/remove-participant", authed(sc.RemoveParticipant)).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Handle("/events/{id}", withRole(ev.AdminDelete, models.RoleAdmin)).Methods(http.MethodDelete)
	admin.Handle("/scholarships/{id}", withRole(sc.AdminDelete, models.RoleAdmin)).Methods(http.MethodDelete)

	var handler http.Handler = router
	handler = middleware.CORS(cfg.AllowedOrigin)(handler)
	handler = middleware.Logging(cfg.Logger, cfg.Recorder)(handler)
	handler = middleware.Recovery(cfg.Logger)(handler)
	return handler
}
