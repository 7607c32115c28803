package crawl

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webfetch/pkg/config"
	"github.com/Sriram-PR/webfetch/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testClientConfig() config.HTTPClientConfig {
	return config.HTTPClientConfig{Timeout: 30 * time.Second}
}

func TestSession_ClientFailsFastWhileClosed(t *testing.T) {
	s := NewSession(testClientConfig(), 2, testLogger())

	if _, err := s.Client(); !errors.Is(err, utils.ErrSessionNotStarted) {
		t.Fatalf("Client on closed session: error = %v, want ErrSessionNotStarted", err)
	}
	if s.Active() {
		t.Error("new session reports active")
	}
}

func TestSession_StartStopLifecycle(t *testing.T) {
	s := NewSession(testClientConfig(), 2, testLogger())

	s.Start()
	if !s.Active() {
		t.Fatal("session not active after Start")
	}
	client, err := s.Client()
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if client == nil {
		t.Fatal("Client returned nil without error")
	}

	// Start on an open session is a no-op: same client handle
	s.Start()
	again, _ := s.Client()
	if again != client {
		t.Error("Start on open session replaced the client")
	}

	s.Stop()
	if s.Active() {
		t.Error("session active after Stop")
	}
	if _, err := s.Client(); !errors.Is(err, utils.ErrSessionNotStarted) {
		t.Errorf("Client after Stop: error = %v, want ErrSessionNotStarted", err)
	}
}

func TestSession_StopIdempotent(t *testing.T) {
	s := NewSession(testClientConfig(), 2, testLogger())

	// Stop on a never-started session must not panic or error
	s.Stop()
	s.Stop()

	s.Start()
	s.Stop()
	s.Stop()
	if s.Active() {
		t.Error("session active after repeated Stop")
	}
}

func TestSession_Restartable(t *testing.T) {
	s := NewSession(testClientConfig(), 2, testLogger())

	s.Start()
	first, _ := s.Client()
	s.Stop()
	s.Start()
	second, err := s.Client()
	if err != nil {
		t.Fatalf("Client after restart: %v", err)
	}
	if first == second {
		t.Error("restart reused the old client handle")
	}
}
