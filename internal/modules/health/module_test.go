package health

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"liquidation_bot/internal/models"
	"liquidation_bot/internal/modules/health/service"

	"github.com/bytedance/sonic"
)

type stubSweeps struct {
	last     *models.SweepResult
	inFlight int
}

func (s stubSweeps) LastSweep() (models.SweepResult, bool) {
	if s.last == nil {
		return models.SweepResult{}, false
	}
	return *s.last, true
}

func (s stubSweeps) InFlight() []models.OrderRecord {
	return make([]models.OrderRecord, s.inFlight)
}

func TestMux_Readiness(t *testing.T) {
	state := service.NewState()
	srv := httptest.NewServer(NewMux(state, stubSweeps{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d before ready", resp.StatusCode)
	}

	state.SetReady(true)
	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d after ready", resp.StatusCode)
	}
}

func TestMux_HealthzReportsSweepState(t *testing.T) {
	state := service.NewState()
	state.SetWSConnected(true)
	finished := time.Unix(1_700_000_000, 0)
	srv := httptest.NewServer(NewMux(state, stubSweeps{
		last:     &models.SweepResult{FinishedAt: finished, Success: true},
		inFlight: 2,
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var got struct {
		WSConnected      bool  `json:"wsConnected"`
		InFlightOrders   int   `json:"inFlightOrders"`
		LastSweepUnix    int64 `json:"lastSweepUnix"`
		LastSweepSuccess bool  `json:"lastSweepSuccess"`
	}
	if err := sonic.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	if !got.WSConnected || got.InFlightOrders != 2 || got.LastSweepUnix != finished.Unix() || !got.LastSweepSuccess {
		t.Fatalf("unexpected health %+v", got)
	}
}
