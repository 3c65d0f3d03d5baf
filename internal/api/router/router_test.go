package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harborhomes/leadrouter/internal/events"
	"github.com/harborhomes/leadrouter/internal/http/handlers"
	eventrouter "github.com/harborhomes/leadrouter/internal/router"
)

type noopRouter struct{}

func (noopRouter) HandleEvent(_ context.Context, _ events.InboundEvent) (*eventrouter.Outcome, error) {
	return &eventrouter.Outcome{CorrelationID: "corr", Status: eventrouter.StatusProcessed}, nil
}

func TestRoutes(t *testing.T) {
	h := handlers.NewGHLWebhookHandler(handlers.GHLWebhookConfig{Router: noopRouter{}})
	srv := httptest.NewServer(New(&Config{Webhooks: h}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatalf("unknown route: %v", err)
	}
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
