package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/chopnow/storefront/internal/adapter/auth"
	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/core/service"
	"github.com/chopnow/storefront/internal/metrics"
	"github.com/chopnow/storefront/internal/port"
)

const maxBodyBytes = 1 << 20

type Services struct {
	Orders     *service.OrderService
	Dashboards *service.DashboardService
	Vendors    *service.VendorService
	Catalog    *service.CatalogService
	Reviews    *service.ReviewService
	Users      *service.UserService
}

type HTTPHandler struct {
	svc      Services
	auth     *auth.Authenticator
	notifier port.IdentityNotifier
	limiter  *RateLimiter
	logger   zerolog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}

func NewHTTPHandler(svc Services, authenticator *auth.Authenticator, notifier port.IdentityNotifier, limiter *RateLimiter, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:      svc,
		auth:     authenticator,
		notifier: notifier,
		limiter:  limiter,
		logger:   logger,
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(h.logger))
	r.Use(requestIDField)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get("/ws/dashboard", h.DashboardStream)

		r.Route("/api", func(r chi.Router) {
			r.Get("/dashboard", h.Dashboard)
			r.Post("/auth/signout", h.SignOut)
			r.Get("/profile", h.Profile)
			r.Patch("/profile", h.UpdateProfile)

			r.Get("/orders", h.ListOrders)
			r.With(h.limiter.Middleware).Post("/orders", h.Checkout)
			r.Get("/orders/{id}/actions", h.OrderActions)
			r.Post("/orders/{id}/transition", h.TransitionOrder)
			r.Post("/orders/{id}/review", h.ReviewOrder)

			r.Get("/vendors", h.ListVendors)
			r.Post("/vendors", h.ApplyVendor)
			r.Get("/admin/vendors", h.AllVendors)
			r.Get("/admin/vendors/pending", h.PendingVendors)
			r.Get("/admin/users", h.ListUsers)
			r.Post("/admin/vendors/{id}/{decision}", h.DecideVendor)

			r.Get("/search", h.Search)
			r.Get("/featured", h.Featured)
			r.Post("/menu", h.AddMenuItem)
			r.Patch("/menu/{id}/availability", h.SetAvailability)
		})
	})
	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.svc.Dashboards.Compose(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardView(dash))
}

func (h *HTTPHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Revoke(r.Context(), auth.IdentityFromContext(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Users.Profile(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *HTTPHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.ProfileUpdate
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.svc.Users.UpdateProfile(r.Context(), auth.IdentityFromContext(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	mine, err := h.svc.Orders.ListMine(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, myOrdersView{
		Active: newOrderViews(mine.Active),
		Past:   newOrderViews(mine.Past),
	})
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	order, err := h.svc.Orders.Checkout(r.Context(), auth.IdentityFromContext(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderView(order))
}

func (h *HTTPHandler) OrderActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.svc.Orders.Actions(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Action{"actions": actions})
}

func (h *HTTPHandler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.svc.Orders.Transition(r.Context(), auth.IdentityFromContext(r.Context()),
		chi.URLParam(r, "id"), domain.OrderStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(order))
}

func (h *HTTPHandler) ReviewOrder(w http.ResponseWriter, r *http.Request) {
	var req service.ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	review, err := h.svc.Reviews.Rate(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *HTTPHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vendors, err := h.svc.Vendors.ListApproved(r.Context(), service.VendorFilter{
		Sort:     service.VendorSort(q.Get("sort")),
		Location: q.Get("location"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Vendor{"vendors": vendors})
}

func (h *HTTPHandler) ApplyVendor(w http.ResponseWriter, r *http.Request) {
	var req service.VendorApplication
	if !h.decode(w, r, &req) {
		return
	}

	vendor, err := h.svc.Vendors.Apply(r.Context(), auth.IdentityFromContext(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vendor)
}

func (h *HTTPHandler) AllVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.svc.Vendors.ListAll(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Vendor{"vendors": vendors})
}

func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.Users.ListUsers(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.User{"users": users})
}

func (h *HTTPHandler) PendingVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.svc.Vendors.ListPending(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Vendor{"vendors": vendors})
}

func (h *HTTPHandler) DecideVendor(w http.ResponseWriter, r *http.Request) {
	vendor, err := h.svc.Vendors.Decide(r.Context(), auth.IdentityFromContext(r.Context()),
		chi.URLParam(r, "id"), domain.VendorDecision(chi.URLParam(r, "decision")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vendor)
}

func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCatalogView(res))
}

func (h *HTTPHandler) Featured(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Catalog.Featured(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCatalogView(res))
}

func (h *HTTPHandler) AddMenuItem(w http.ResponseWriter, r *http.Request) {
	var req service.NewMenuItem
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.svc.Catalog.AddMenuItem(r.Context(), auth.IdentityFromContext(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMenuItemView(item))
}

func (h *HTTPHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Available == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "available is required"})
		return
	}

	item, err := h.svc.Catalog.SetAvailability(r.Context(), auth.IdentityFromContext(r.Context()),
		chi.URLParam(r, "id"), *req.Available)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMenuItemView(item))
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, _, message := classify(err)
	event := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.Err(err).Int("status", status).Msg("request failed")
	writeJSON(w, status, errorResponse{Error: message})
}

// requestIDField copies chi's request id onto the request logger.
func requestIDField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			logger := hlog.FromRequest(r).With().Str("request_id", id).Logger()
			r = r.WithContext(logger.WithContext(r.Context()))
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
