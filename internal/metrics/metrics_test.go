package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hearkenhq/hearken/internal/connector"
)

var errFake = errors.New("boom")

func TestCollectorRecordsHTTPMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	handlerInvoked := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerInvoked = true
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	instrumented := collector.InstrumentHandler(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	instrumented.ServeHTTP(rr, req)

	if !handlerInvoked {
		t.Fatal("expected handler to be invoked")
	}

	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `hearken_http_requests_total{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}

	if !strings.Contains(body, `hearken_http_request_duration_seconds_count{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestCollectorRecordsOutboundMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	collector.ObserveRequest("twitter", "post", nil, 120*time.Millisecond)
	collector.ObserveRequest("twitter", "post", &connector.RateLimitError{Provider: "twitter"}, 80*time.Millisecond)
	collector.ObserveRequest("reddit", "search", &connector.AuthenticationError{Provider: "reddit"}, time.Millisecond)
	collector.ObserveRetry("twitter", "post")

	body := scrape(t, collector)

	expected := []string{
		`hearken_connector_requests_total{operation="post",outcome="ok",provider="twitter"} 1`,
		`hearken_connector_requests_total{operation="post",outcome="rate_limited",provider="twitter"} 1`,
		`hearken_connector_requests_total{operation="search",outcome="auth_failed",provider="reddit"} 1`,
		`hearken_connector_retries_total{operation="post",provider="twitter"} 1`,
		`hearken_connector_request_duration_seconds_count{operation="post",provider="twitter"} 2`,
		`hearken_connector_rate_limit_waits_total{provider="twitter"} 1`,
	}
	for _, want := range expected {
		if !strings.Contains(body, want) {
			t.Errorf("missing metric %q in body=%q", want, body)
		}
	}
}

func TestCollectorRecordsVaultMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	collector.ObserveVaultOperation("store", nil)
	collector.ObserveVaultOperation("store", nil)
	collector.ObserveVaultOperation("get", errFake)

	body := scrape(t, collector)

	expected := []string{
		`hearken_vault_operations_total{operation="store",outcome="ok"} 2`,
		`hearken_vault_operations_total{operation="get",outcome="error"} 1`,
	}
	for _, want := range expected {
		if !strings.Contains(body, want) {
			t.Errorf("missing metric %q in body=%q", want, body)
		}
	}
}

func TestOutcomeLabel(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&connector.RateLimitError{}, "rate_limited"},
		{&connector.TransportError{}, "transport"},
		{&connector.AuthenticationError{}, "auth_failed"},
		{&connector.ProviderAPIError{StatusCode: 500}, "provider_error"},
		{&connector.ConfigurationError{}, "error"},
	}
	for _, tc := range cases {
		if got := outcomeLabel(tc.err); got != tc.want {
			t.Errorf("outcomeLabel(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func scrape(t *testing.T, collector *Collector) string {
	t.Helper()
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}
