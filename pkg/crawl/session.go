package crawl

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webfetch/pkg/config"
	"github.com/Sriram-PR/webfetch/pkg/fetch"
	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// Session owns the shared HTTP client handle used by all fetches of one
// crawl, together with the concurrency gate and timeout policy. It has an
// explicit Closed/Open lifecycle: operations that need the client fail
// fast with ErrSessionNotStarted while the session is closed, instead of
// dereferencing a nil handle.
type Session struct {
	mu     sync.Mutex
	client *http.Client // nil while closed
	cfg    config.HTTPClientConfig
	gate   *fetch.Gate
	id     string
	log    *logrus.Entry
}

// NewSession creates a closed session. gateCapacity bounds concurrent
// network operations issued through this session.
func NewSession(cfg config.HTTPClientConfig, gateCapacity int, log *logrus.Entry) *Session {
	id := uuid.NewString()
	sessionLog := log.WithField("session_id", id)
	return &Session{
		cfg:  cfg,
		gate: fetch.NewGate(gateCapacity, sessionLog),
		id:   id,
		log:  sessionLog,
	}
}

// Start opens the session, constructing the shared client. Calling Start
// on an already-open session is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return
	}
	s.client = fetch.NewClient(s.cfg, s.log.Logger)
	s.log.Info("Session started")
}

// Stop closes the session and releases the client handle. Stopping a
// closed session is a no-op. A stopped session may be restarted.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return
	}
	s.client.CloseIdleConnections()
	s.client = nil
	s.log.Info("Session stopped")
}

// Client returns the shared HTTP client, or ErrSessionNotStarted while
// the session is closed.
func (s *Session) Client() (*http.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, utils.ErrSessionNotStarted
	}
	return s.client, nil
}

// Gate returns the session's concurrency gate. The gate outlives
// Stop/Start cycles so slot accounting is continuous.
func (s *Session) Gate() *fetch.Gate {
	return s.gate
}

// Active reports whether the session is currently open.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// ID returns the session's unique identifier, tagged into its log fields.
func (s *Session) ID() string {
	return s.id
}
