package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/abelzeko/dwlr-dashboard/internal/integration"
	"github.com/abelzeko/dwlr-dashboard/internal/scheduler"
	"github.com/abelzeko/dwlr-dashboard/internal/usecases"
	"go.uber.org/zap"
)

var backendRoutes = map[string]string{
	"/api/groundwater": `[
		{"station_id":"S1","district":"Pune","latitude":18.52,"longitude":73.85,
		 "timestamp":"2024-06-30T00:00:00","water_level_m_bgl":12.4,"zone":"Safe","trend":"Rising"},
		{"station_id":"S2","district":"Nagpur","latitude":21.14,"longitude":79.08,
		 "timestamp":"2024-06-30T00:00:00","water_level_m_bgl":25.1,"zone":"Critical","trend":"Falling"}
	]`,
	"/api/summary": `{"avg_water_level":18.75,"total_recharge":320.5,"critical_alerts":1,"active_stations":2}`,
	"/api/alerts":  `[{"station_id":"S2","district":"Nagpur","water_level_m_bgl":25.1,"alert_reason":"Water level below critical threshold"}]`,
	"/api/zones": `[
		{"station_id":"S1","latitude":18.52,"longitude":73.85,"zone":"Safe"},
		{"station_id":"S2","latitude":21.14,"longitude":79.08,"zone":"Critical"},
		{"station_id":"S3","latitude":19.07,"longitude":72.87,"zone":"Semi-Critical"},
		{"station_id":"S4","latitude":26.91,"longitude":75.78,"zone":"Unknown"}
	]`,
	"/api/history/S1": `[
		{"timestamp":"2024-06-29T00:00:00","water_level_m_bgl":12.1},
		{"timestamp":"2024-06-30T00:00:00","water_level_m_bgl":12.4}
	]`,
	"/api/history/S2":      `[{"timestamp":"2024-06-30T00:00:00","water_level_m_bgl":25.1}]`,
	"/api/forecast/S1":     `[{"date":"2024-07-01","water_level_m_bgl":12.6}]`,
	"/api/forecast/S2":     `[{"date":"2024-07-01","water_level_m_bgl":25.4}]`,
	"/api/availability/S1": `{"rainfall_mm":850,"season":"Monsoon","estimated_recharge_mm":120,"estimated_demand_mm":90,"available_groundwater_mm":30,"status":"Sustainable"}`,
	"/api/availability/S2": `{"rainfall_mm":400,"season":"Monsoon","estimated_recharge_mm":50,"estimated_demand_mm":140,"available_groundwater_mm":-90,"status":"Over-exploited"}`,
	"/api/scenario":        `{"adjusted_recharge":40.5,"adjusted_demand":55.0,"net_availability":-14.5,"risk_level":"High"}`,
}

// backend is a fake analytics backend that records scenario bodies
type backend struct {
	server *httptest.Server

	mu             sync.Mutex
	scenarioBodies []string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := backendRoutes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodPost {
			data, _ := io.ReadAll(r.Body)
			b.mu.Lock()
			b.scenarioBodies = append(b.scenarioBodies, string(data))
			b.mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) scenarios() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.scenarioBodies...)
}

// newSessions wires sessions to the fake backend. The cron scheduler is
// never started, so alert polls only run on mount.
func newSessions(t *testing.T, b *backend) *usecases.Sessions {
	t.Helper()
	client := integration.NewGroundwaterClient(b.server.URL)
	sched := scheduler.NewCronScheduler(zap.NewNop().Sugar())
	sessions := usecases.NewSessions(func() *usecases.Dashboard {
		return usecases.NewDashboard(client, sched, usecases.Options{})
	}, nil)
	t.Cleanup(sessions.Close)
	return sessions
}
