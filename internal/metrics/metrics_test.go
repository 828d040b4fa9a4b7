package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if labelsMatch(m, labels) && m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Withdrawal("submit", nil)
	m.Withdrawal("submit", errors.New("x"))
	m.Withdrawal("submit", nil)
	m.CacheLookup("hit")

	if got := counterValue(t, reg, "tap2go_withdrawal_operations_total", map[string]string{"operation": "submit", "result": "ok"}); got != 2 {
		t.Fatalf("expected 2 ok submits, got %v", got)
	}
	if got := counterValue(t, reg, "tap2go_withdrawal_operations_total", map[string]string{"operation": "submit", "result": "error"}); got != 1 {
		t.Fatalf("expected 1 failed submit, got %v", got)
	}
	if got := counterValue(t, reg, "tap2go_link_cache_lookups_total", map[string]string{"result": "hit"}); got != 1 {
		t.Fatalf("expected 1 cache hit, got %v", got)
	}
}

func TestMiddlewareRecordsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/wallet/balance", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]int{"balance": 1})
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet/balance", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	labels := map[string]string{"method": "GET", "route": "/wallet/balance", "code": "200"}
	if got := counterValue(t, reg, "tap2go_http_requests_total", labels); got != 1 {
		t.Fatalf("expected one recorded request, got %v", got)
	}
}
