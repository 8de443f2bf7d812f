package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// IndexHandler gives a small service banner (GET /).
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service":   s.config.GetAppName(),
			"authorize": s.config.GetBaseURL() + RouteOAuth2Authorize,
			"token":     s.config.GetBaseURL() + RouteOAuth2Token,
			"revoke":    s.config.GetBaseURL() + RouteOAuth2Revoke,
		})
	}
}

// HealthHandler answers liveness probes (GET /health).
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// MeHandler returns the profile of the token's user (GET /api/me, scope
// "profile").
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := authorizationFromContext(r.Context())
		if auth.User == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"client_id": auth.ClientID,
				"scope":     auth.Scope,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":          auth.User.ID,
			"username":    auth.User.Username,
			"email":       auth.User.Email,
			"role":        auth.User.Role,
			"date_joined": auth.User.DateJoined.Format(time.RFC3339),
			"scope":       auth.Scope,
		})
	}
}

type order struct {
	ID     string  `json:"id"`
	Item   string  `json:"item"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`
}

// CustomerOrdersHandler serves the customer's order history
// (GET /api/customer/orders, scope "customer").
func (s *Server) CustomerOrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := authorizationFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"customer": auth.User.Username,
			"orders": []order{
				{ID: "ord-1001", Item: "Whole wheat flour 5kg", Amount: 12.50, Status: "delivered"},
				{ID: "ord-1002", Item: "Rye starter kit", Amount: 24.00, Status: "shipped"},
			},
		})
	}
}

// StoreDashboardHandler serves the store owner's dashboard
// (GET /api/store/dashboard, scope "store").
func (s *Server) StoreDashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := authorizationFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"store":          auth.User.Username,
			"open_orders":    3,
			"revenue_month":  1284.75,
			"top_item":       "Sourdough loaf",
			"pending_payout": 412.30,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
