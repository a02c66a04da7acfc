package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/naruebet/tmwatch/internal/api/httpx"
	"github.com/naruebet/tmwatch/internal/api/validate"
	"github.com/naruebet/tmwatch/internal/config"
	"github.com/naruebet/tmwatch/internal/metrics"
	"github.com/naruebet/tmwatch/internal/middleware"
	"github.com/naruebet/tmwatch/internal/models"
	"github.com/naruebet/tmwatch/internal/services"
	"github.com/naruebet/tmwatch/internal/store"
	"github.com/naruebet/tmwatch/internal/webhook"
	"github.com/naruebet/tmwatch/internal/workflow"
)

func NewRouter(cfg config.Config, ts *services.TransactionService, us *services.UserService, settings store.Settings, am *middleware.AuthMiddleware) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	// ---------- webhook (provider-facing, transport auth upstream) ----------
	r.Get("/webhook/status", func(w http.ResponseWriter, r *http.Request) {
		dbStatus := "disconnected"
		if ts.Connected() {
			dbStatus = "connected"
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"status":    "online",
			"db_status": dbStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Post("/webhook", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "read_error", "could not read body", nil)
			return
		}
		tx, err := ts.Ingest(r.Context(), body, webhook.UnitMinor)
		if err != nil {
			writeTxnError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": tx})
	})

	// ---------- authenticated API ----------
	r.Group(func(r chi.Router) {
		r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			var req struct{ Username, Password string }
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
				return
			}
			u, pair, err := us.Login(r.Context(), req.Username, req.Password)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", nil)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": u, "tokens": pair})
		})

		r.Group(func(r chi.Router) {
			r.Use(am.Auth)

			// ---------- transactions ----------
			r.Get("/transactions", func(w http.ResponseWriter, r *http.Request) {
				limit := 50
				if v := r.URL.Query().Get("limit"); v != "" {
					if n, err := strconv.Atoi(v); err == nil && n > 0 {
						limit = n
					}
				}
				txs, err := ts.List(r.Context(), limit)
				if err != nil {
					httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
					return
				}
				if txs == nil {
					txs = []models.Transaction{}
				}
				httpx.WriteJSON(w, http.StatusOK, txs)
			})

			// manual/test payload path: amounts arrive in major units
			r.With(middleware.RequireRole(models.RoleAdmin, models.RoleDev)).
				Post("/transactions/simulate", func(w http.ResponseWriter, r *http.Request) {
					body, err := io.ReadAll(r.Body)
					if err != nil {
						httpx.WriteError(w, http.StatusInternalServerError, "read_error", "could not read body", nil)
						return
					}
					tx, err := ts.Ingest(r.Context(), body, webhook.UnitMajor)
					if err != nil {
						writeTxnError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": tx})
				})

			r.Put("/transactions/{id}/status", func(w http.ResponseWriter, r *http.Request) {
				claims, _ := middleware.GetClaims(r.Context())
				var req struct {
					Status  models.TransactionStatus `json:"status"`
					Confirm bool                     `json:"confirm"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
					return
				}
				tx, err := ts.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, claims.Role, req.Confirm)
				if err != nil {
					writeTxnError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, tx)
			})

			r.With(middleware.RequireRole(models.RoleAdmin, models.RoleDev)).
				Delete("/transactions", func(w http.ResponseWriter, r *http.Request) {
					if err := ts.Clear(r.Context()); err != nil {
						httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
				})

			r.With(middleware.RequireRole(models.RoleAdmin, models.RoleDev)).
				Delete("/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
					if err := ts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
						writeTxnError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
				})

			// ---------- users (admin-gated collaborator CRUD) ----------
			r.Route("/users", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin, models.RoleDev))

				r.Get("/", func(w http.ResponseWriter, r *http.Request) {
					users, err := us.List(r.Context())
					if err != nil {
						httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, users)
				})

				r.Post("/", func(w http.ResponseWriter, r *http.Request) {
					var req struct {
						Username string      `json:"username"`
						Password string      `json:"password"`
						Role     models.Role `json:"role"`
					}
					if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
						httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
						return
					}
					var errs validate.Errs
					if e := validate.MinLen("username", req.Username, 3); e != nil {
						errs = append(errs, *e)
					}
					if e := validate.Required("password", req.Password); e != nil {
						errs = append(errs, *e)
					}
					if len(errs) > 0 {
						httpx.WriteError(w, http.StatusBadRequest, "validation", errs.Error(), errs)
						return
					}
					u, err := us.Create(r.Context(), req.Username, req.Password, req.Role)
					if err != nil {
						writeUserError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, u)
				})

				r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
					var req struct {
						Username string      `json:"username"`
						Password string      `json:"password"`
						Role     models.Role `json:"role"`
					}
					if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
						httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
						return
					}
					u, err := us.Update(r.Context(), chi.URLParam(r, "id"), req.Username, req.Password, req.Role)
					if err != nil {
						writeUserError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, u)
				})

				r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
					if err := us.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
						writeUserError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
				})
			})

			// ---------- settings (provider token for the balance proxy) ----------
			r.Route("/settings", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin, models.RoleDev))

				r.Get("/{key}", func(w http.ResponseWriter, r *http.Request) {
					key := chi.URLParam(r, "key")
					v, err := settings.Get(r.Context(), key)
					if errors.Is(err, store.ErrNotFound) {
						httpx.WriteError(w, http.StatusNotFound, "not_found", "setting not found", nil)
						return
					}
					if err != nil {
						httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, map[string]string{"key": key, "value": v})
				})

				r.Put("/{key}", func(w http.ResponseWriter, r *http.Request) {
					var req struct {
						Value string `json:"value"`
					}
					if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
						httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid body", nil)
						return
					}
					if err := settings.Set(r.Context(), chi.URLParam(r, "key"), req.Value); err != nil {
						httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"})
				})
			})
		})
	})

	return r
}

func writeTxnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "transaction not found", nil)
	case errors.Is(err, workflow.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, workflow.ErrInvalidStatus):
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, services.ErrConfirmationRequired):
		httpx.WriteError(w, http.StatusBadRequest, "confirmation_required", err.Error(), nil)
	case errors.Is(err, webhook.ErrAmountNonPositive):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "amount_non_positive", err.Error(), nil)
	case errors.Is(err, webhook.ErrNoPayload):
		httpx.WriteError(w, http.StatusInternalServerError, "decode_failure", err.Error(), nil)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
	}
}

func writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "user not found", nil)
	case errors.Is(err, store.ErrUsernameTaken), errors.Is(err, services.ErrProtectedUser):
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
}
