package deps

import (
	"time"

	"github.com/MrSnakeDoc/sevasetu/internal/directory"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
	"github.com/MrSnakeDoc/sevasetu/internal/orchestrator"
	"github.com/MrSnakeDoc/sevasetu/internal/relay"
	"github.com/MrSnakeDoc/sevasetu/internal/sessions"
	redisstore "github.com/MrSnakeDoc/sevasetu/internal/store/redis"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedHosts []string // Host headers allowed to access admin endpoints
	AllowedCIDRS []string // IPs allowed to access readyz/infra/reload
	TrustProxy   bool     // true if running behind a trusted reverse proxy
	CORSOrigins  []string // origins allowed for browser calls

	StartRatePerMin int // POST /rpa/start budget per client IP
	StartBurst      int

	Directory     *directory.Index   // In-memory supplier index
	Store         *redisstore.Store  // nil when Redis is disabled
	Sessions      *sessions.Registry // automation sessions
	Relay         *relay.Relay       // WebSocket status relay
	Orchestrator  *orchestrator.Orchestrator
	HomeURL       string        // Fallback URL when no supplier matches
	PortalLogin   string        // GUVNL login page used by the auto-fill pages
	ReloadTrigger chan struct{} // Channel to trigger a manual directory reload
}

// Now returns the current time using TimeNow when set.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
