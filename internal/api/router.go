/**
 * @description
 * This file sets up the HTTP router for the backoffice-service using the `chi`
 * routing library. Admin routes and customer routes are split into groups,
 * each guarded by bearer-token authentication and a role check.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: The routing library.
 * - github.com/go-chi/cors: CORS handling for the back-office frontend.
 * - The service's internal packages for handlers and middleware.
 */
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hometown/backoffice-service/internal/config"
	"github.com/hometown/backoffice-service/pkg/middleware"
)

// NewRouter creates and configures a new HTTP router.
func NewRouter(cfg *config.Config, services Services, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if limiter != nil {
		r.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimitPerMinute))
	}

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	adminHandler := NewAdminHandler(services, logger)
	customerHandler := NewCustomerHandler(services, logger)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))
		r.Use(middleware.RequireRole(middleware.RoleAdmin))

		r.Route("/users", func(r chi.Router) {
			r.Post("/", adminHandler.CreateUser)
			r.Get("/", adminHandler.ListUsers)
			r.Get("/{id}", adminHandler.GetUser)
			r.Post("/{id}/accounts", adminHandler.OpenAccount)
		})

		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Patch("/status", adminHandler.ChangeAccountStatus)
			r.Post("/adjustments", adminHandler.AdjustFunds)
			r.Post("/cards", adminHandler.IssueCard)
		})

		r.Patch("/cards/{id}/status", adminHandler.SetCardStatus)

		r.Route("/deposits", func(r chi.Router) {
			r.Get("/pending", adminHandler.ListPendingDeposits)
			r.Post("/{id}/approve", adminHandler.ApproveDeposit)
			r.Post("/{id}/reject", adminHandler.RejectDeposit)
		})

		r.Patch("/transactions/{id}/status", adminHandler.UpdateTransactionStatus)
	})

	r.Route("/me", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))
		r.Use(middleware.RequireRole(middleware.RoleCustomer))

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", customerHandler.ListAccounts)
			r.Get("/{id}/transactions", customerHandler.ListTransactions)
			r.Post("/{id}/deposits", customerHandler.SubmitDeposit)
			r.Get("/{id}/cards", customerHandler.ListCards)
		})

		r.Put("/cards/{id}/pin", customerHandler.SetPIN)
		r.Post("/cards/{id}/pin/change", customerHandler.ChangePIN)
	})

	return r
}
