package httpserver

import (
	"log"
	"net/http"

	"github.com/taskops/reporting-service/internal/http/handlers"
	"github.com/taskops/reporting-service/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Verifier       middleware.TokenVerifier
	Logger         *log.Logger
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", deps.API.Health)
	mux.HandleFunc("/api/reports", deps.API.Reports)
	mux.HandleFunc("/api/reports/", deps.API.ReportByID)
	mux.HandleFunc("/api/reports/quick/project-summary/", deps.API.QuickProjectSummary)
	mux.HandleFunc("/api/reports/quick/dashboard", deps.API.QuickDashboard)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.Verifier)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
