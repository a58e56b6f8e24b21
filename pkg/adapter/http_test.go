package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stresslab-project/stresslab/pkg/aggregator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

func TestHTTPAdapter_Send_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(nil)
	outcome, err := a.Send(context.Background(), &scenario.HTTPStepConfig{Method: "GET", URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != aggregator.OutcomeOK {
		t.Fatalf("expected OutcomeOK, got %v", outcome)
	}
}

func TestHTTPAdapter_Send_NonSuccessStatusIsFailRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(nil)
	outcome, err := a.Send(context.Background(), &scenario.HTTPStepConfig{Method: "GET", URL: srv.URL})
	if err == nil {
		t.Fatalf("expected error for 500 response")
	}
	if outcome != aggregator.OutcomeFailRequest {
		t.Fatalf("expected OutcomeFailRequest, got %v", outcome)
	}
}

func TestHTTPAdapter_Send_ConnectionRefusedIsFailTransport(t *testing.T) {
	a := NewHTTPAdapter(nil)
	outcome, err := a.Send(context.Background(), &scenario.HTTPStepConfig{Method: "GET", URL: "http://127.0.0.1:1"})
	if err == nil {
		t.Fatalf("expected error for unreachable host")
	}
	if outcome != aggregator.OutcomeFailTransport {
		t.Fatalf("expected OutcomeFailTransport, got %v", outcome)
	}
}
