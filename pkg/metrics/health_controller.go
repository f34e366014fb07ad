package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vecinal/certdesk/pkg/application"
	"github.com/vecinal/certdesk/pkg/composables"
	"github.com/vecinal/certdesk/pkg/httpapi"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	db      Pinger
	timeout time.Duration
}

func NewHealthController(db Pinger) application.Controller {
	return &HealthController{db: db, timeout: 2 * time.Second}
}

func (c *HealthController) Key() string {
	return "/health"
}

func (c *HealthController) Register(r *mux.Router) {
	r.HandleFunc("/health", c.Health).Methods(http.MethodGet)
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	if c.db == nil {
		_ = httpapi.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Database: "not configured"})
		return
	}
	if err := c.db.Ping(ctx); err != nil {
		composables.UseLogger(r.Context()).WithError(err).Warn("health check: database ping failed")
		_ = httpapi.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Database: "down"})
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "up"})
}
