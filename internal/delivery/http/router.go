package http

import (
	"net/http"

	"go-medical-chat-booking/internal/delivery/http/handler"
	"go-medical-chat-booking/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	router                  *mux.Router
	chatHandler             *handler.ChatHandler
	appointmentHandler      *handler.AppointmentHandler
	sessionMiddleware       *middleware.SessionMiddleware
	requestLoggerMiddleware *middleware.RequestLoggerMiddleware
	corsMiddleware          *middleware.CORSMiddleware
	metricsGatherer         prometheus.Gatherer
}

func NewRouter(
	chatHandler *handler.ChatHandler,
	appointmentHandler *handler.AppointmentHandler,
	sessionMiddleware *middleware.SessionMiddleware,
	requestLoggerMiddleware *middleware.RequestLoggerMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
	metricsGatherer prometheus.Gatherer,
) *Router {
	if metricsGatherer == nil {
		metricsGatherer = prometheus.DefaultGatherer
	}
	return &Router{
		router:                  mux.NewRouter(),
		chatHandler:             chatHandler,
		appointmentHandler:      appointmentHandler,
		sessionMiddleware:       sessionMiddleware,
		requestLoggerMiddleware: requestLoggerMiddleware,
		corsMiddleware:          corsMiddleware,
		metricsGatherer:         metricsGatherer,
	}
}

func (r *Router) Setup() *mux.Router {
	// Health check & metrics
	r.router.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)
	r.router.Handle("/metrics", promhttp.HandlerFor(r.metricsGatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// Chat routes (session-scoped)
	chat := r.router.PathPrefix("/chat").Subrouter()
	chat.Use(r.sessionMiddleware.Authenticate)
	chat.HandleFunc("", r.chatHandler.Chat).Methods(http.MethodPost, http.MethodOptions)
	chat.HandleFunc("/reset", r.chatHandler.Reset).Methods(http.MethodPost, http.MethodOptions)

	// Appointment ledger (read-only)
	r.router.HandleFunc("/appointments", r.appointmentHandler.ListAppointments).Methods(http.MethodGet, http.MethodOptions)

	r.router.Use(r.requestLoggerMiddleware.Handle)
	r.router.Use(r.corsMiddleware.Handle)

	return r.router
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
