package http

import (
	"net/http"
	"time"

	"mymoney/internal/log"
	"mymoney/internal/services"
)

// Server exposes the job triggers and the app-facing JSON API.
type Server struct {
	http.Server

	scheduler     *services.BillScheduler
	lowBalance    *services.LowBalanceNotifier
	bills         *services.BillService
	ledger        *services.LedgerService
	notifications *services.NotificationService

	now func() time.Time
}

// Deps carries the services the server routes to.
type Deps struct {
	Scheduler     *services.BillScheduler
	LowBalance    *services.LowBalanceNotifier
	Bills         *services.BillService
	Ledger        *services.LedgerService
	Notifications *services.NotificationService

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps, logger *log.Logger) *Server {
	s := &Server{
		scheduler:     deps.Scheduler,
		lowBalance:    deps.LowBalance,
		bills:         deps.Bills,
		ledger:        deps.Ledger,
		notifications: deps.Notifications,
		now:           deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	// Job triggers, the scheduled-function invocation surface.
	mux.HandleFunc("POST /api/jobs/generate-bills", s.handleGenerateBills)
	mux.HandleFunc("POST /api/jobs/low-balance", s.handleLowBalance)

	// Bill templates and instances.
	mux.HandleFunc("POST /api/bills/templates", s.handleCreateTemplate)
	mux.HandleFunc("GET /api/bills/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/bills/templates/{id}/stop", s.handleStopRecurring)
	mux.HandleFunc("DELETE /api/bills/templates/{id}", s.handleDeleteTemplate)
	mux.HandleFunc("GET /api/bills/upcoming", s.handleUpcomingBills)
	mux.HandleFunc("POST /api/bills/{id}/paid", s.handleMarkPaid)

	// Money ledger.
	mux.HandleFunc("POST /api/money/add", s.handleAddMoney)
	mux.HandleFunc("POST /api/purchases", s.handleRecordPurchase)
	mux.HandleFunc("GET /api/purchases", s.handleListPurchases)
	mux.HandleFunc("GET /api/balance", s.handleBalance)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	// Notification feed.
	mux.HandleFunc("GET /api/notifications", s.handleListNotifications)
	mux.HandleFunc("GET /api/notifications/unread", s.handleUnreadNotifications)
	mux.HandleFunc("POST /api/notifications/read", s.handleMarkAllRead)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           log.Middleware(logger)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
