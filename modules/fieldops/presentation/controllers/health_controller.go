package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jusegoram/react-apollo-ccs-desk/pkg/application"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/httpapi"
)

type healthStatus string

const (
	healthStatusHealthy  healthStatus = "healthy"
	healthStatusDegraded healthStatus = "degraded"
	healthStatusDown     healthStatus = "down"
)

const dbDegradedLatency = 100 * time.Millisecond

type healthResponse struct {
	Status    healthStatus               `json:"status"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]componentHealth `json:"checks"`
}

type componentHealth struct {
	Status       healthStatus `json:"status"`
	ResponseTime string       `json:"responseTime,omitempty"`
	Error        string       `json:"error,omitempty"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	db pinger
}

func NewHealthController(app application.Application) application.Controller {
	c := &HealthController{}
	if pool := app.DB(); pool != nil {
		c.db = pool
	}
	return c
}

func (c *HealthController) Key() string {
	return "/health"
}

func (c *HealthController) Register(r *mux.Router) {
	r.HandleFunc("/health", c.Get).Methods(http.MethodGet)
}

func (c *HealthController) Get(w http.ResponseWriter, r *http.Request) {
	db := c.checkDB(r.Context())
	resp := healthResponse{
		Status:    db.Status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    map[string]componentHealth{"database": db},
	}
	status := http.StatusOK
	if resp.Status == healthStatusDown {
		status = http.StatusServiceUnavailable
	}
	_ = httpapi.WriteJSON(w, status, resp)
}

func (c *HealthController) checkDB(ctx context.Context) componentHealth {
	if c.db == nil {
		return componentHealth{Status: healthStatusDown, Error: "database not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := c.db.Ping(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return componentHealth{Status: healthStatusDown, ResponseTime: elapsed.String(), Error: err.Error()}
	}
	if elapsed > dbDegradedLatency {
		return componentHealth{Status: healthStatusDegraded, ResponseTime: elapsed.String()}
	}
	return componentHealth{Status: healthStatusHealthy, ResponseTime: elapsed.String()}
}
