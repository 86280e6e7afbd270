package sink

import (
	"crypto/tls"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startSink(t *testing.T, config Config) *Sink {
	t.Helper()
	if config.Endpoint == "" {
		config.Endpoint = "127.0.0.1:0"
	}
	s, err := Listen(config)
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	s.Start()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSinkRecordsPerConnection(t *testing.T) {
	s := startSink(t, Config{})

	messages := []string{"alpha", "beta", "gamma"}
	for _, msg := range messages {
		conn, err := net.Dial("tcp", s.Addr().String())
		if err != nil {
			t.Fatalf("Failed to dial: %v", err)
		}
		if _, err := conn.Write([]byte(msg)); err != nil {
			t.Fatalf("Failed to write: %v", err)
		}
		conn.Close()

		// wait for the sink to register the connection so accept order is stable
		want := int64(0)
		for _, m := range messages {
			want += int64(len(m))
			if m == msg {
				break
			}
		}
		if !s.WaitReceived(want, 2*time.Second) {
			t.Fatalf("Timeout waiting for %d bytes, got %d", want, s.Received())
		}
	}

	if !s.WaitFor(2*time.Second, func(s *Sink) bool {
		for _, rec := range s.Recordings() {
			if !rec.Done {
				return false
			}
		}
		return true
	}) {
		t.Fatal("Timeout waiting for connections to finish")
	}

	recs := s.Recordings()
	if len(recs) != len(messages) {
		t.Fatalf("Expected %d recordings, got %d", len(messages), len(recs))
	}
	for i, rec := range recs {
		if string(rec.Data) != messages[i] {
			t.Errorf("Recording %d: expected %q, got %q", i, messages[i], rec.Data)
		}
		if rec.Err != nil {
			t.Errorf("Recording %d: unexpected error %v", i, rec.Err)
		}
	}

	if s.Accepted() != len(messages) {
		t.Errorf("Expected %d accepted, got %d", len(messages), s.Accepted())
	}
}

func TestSinkLimit(t *testing.T) {
	s := startSink(t, Config{Limit: 2})

	var conns []net.Conn
	for i := 0; i < 4; i++ {
		conn, err := net.Dial("tcp", s.Addr().String())
		if err != nil {
			t.Fatalf("Failed to dial: %v", err)
		}
		conns = append(conns, conn)
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	if !s.WaitFor(2*time.Second, func(s *Sink) bool { return s.Accepted()+s.Rejected() == 4 }) {
		t.Fatalf("Timeout, accepted %d rejected %d", s.Accepted(), s.Rejected())
	}
	if s.Accepted() != 2 || s.Rejected() != 2 {
		t.Errorf("Expected 2 accepted and 2 rejected, got %d and %d", s.Accepted(), s.Rejected())
	}
}

func TestSinkCloseIdempotent(t *testing.T) {
	s, err := Listen(Config{Endpoint: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	if !s.WaitFor(2*time.Second, func(s *Sink) bool { return s.Accepted() == 1 }) {
		t.Fatal("Timeout waiting for accept")
	}

	if err := s.Close(); err != nil {
		t.Errorf("Unexpected error on first close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Unexpected error on second close: %v", err)
	}

	select {
	case err := <-done:
		if err != net.ErrClosed {
			t.Errorf("Expected net.ErrClosed from Serve, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestSinkTLS(t *testing.T) {
	cert, err := NewSelfSigned("example.test", "127.0.0.1")
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}

	s := startSink(t, Config{TLS: cert.ServerConfig()})

	conn, err := tls.Dial("tcp", s.Addr().String(), &tls.Config{
		RootCAs:    cert.Pool,
		ServerName: "example.test",
	})
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	if _, err := conn.Write([]byte("secret")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	conn.Close()

	if !s.WaitReceived(6, 2*time.Second) {
		t.Fatalf("Timeout waiting for data, got %d bytes", s.Received())
	}
	recs := s.Recordings()
	if len(recs) != 1 || string(recs[0].Data) != "secret" {
		t.Errorf("Unexpected recordings: %+v", recs)
	}
}

func TestSelfSignedWriteCA(t *testing.T) {
	cert, err := NewSelfSigned("localhost")
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}

	dir := t.TempDir()
	caPath := filepath.Join(dir, "ca.pem")
	if err := cert.WriteCA(caPath); err != nil {
		t.Fatalf("Failed to write CA: %v", err)
	}

	data, err := os.ReadFile(caPath)
	if err != nil {
		t.Fatalf("Failed to read CA: %v", err)
	}
	if string(data) != string(cert.CertPEM) {
		t.Error("Written CA differs from certificate PEM")
	}

	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certPath, cert.CertPEM, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, cert.KeyPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadServerConfig(certPath, keyPath); err != nil {
		t.Errorf("Failed to load written key pair: %v", err)
	}

	if _, err := NewSelfSigned(); err == nil {
		t.Error("Expected error without hosts")
	}
}

func TestSinkSummary(t *testing.T) {
	s := startSink(t, Config{})

	for _, msg := range []string{"aa", "aa"} {
		conn, err := net.Dial("tcp", s.Addr().String())
		if err != nil {
			t.Fatalf("Failed to dial: %v", err)
		}
		conn.Write([]byte(msg))
		conn.Close()
	}

	if !s.WaitReceived(4, 2*time.Second) {
		t.Fatalf("Timeout waiting for data, got %d bytes", s.Received())
	}

	summary := s.Summary()
	if summary.Accepted != 2 || summary.Received != 4 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if summary.Distribution.Mean != 2 {
		t.Errorf("Expected mean 2, got %f", summary.Distribution.Mean)
	}
	if summary.String() == "" {
		t.Error("Expected non empty summary string")
	}
}

// TestSinkCloseWhileDialing closes the sink while clients keep connecting and
// never hang up. Every admitted connection must be closed by Close.
func TestSinkCloseWhileDialing(t *testing.T) {
	for run := 0; run < 20; run++ {
		s, err := Listen(Config{Endpoint: "127.0.0.1:0"})
		if err != nil {
			t.Fatalf("Failed to listen: %v", err)
		}
		s.Start()

		stop := make(chan struct{})
		dialerDone := make(chan []net.Conn, 1)
		go func() {
			var conns []net.Conn
			defer func() { dialerDone <- conns }()
			for {
				select {
				case <-stop:
					return
				default:
				}
				conn, err := net.DialTimeout("tcp", s.Addr().String(), 100*time.Millisecond)
				if err != nil {
					continue
				}
				conns = append(conns, conn)
			}
		}()

		// let a few connections in, then close mid stream
		s.WaitFor(time.Second, func(s *Sink) bool { return s.Accepted() >= 3 })

		closed := make(chan error, 1)
		go func() { closed <- s.Close() }()

		select {
		case <-closed:
		case <-time.After(5 * time.Second):
			t.Fatalf("Run %d: Close did not return while clients were dialing", run)
		}

		close(stop)
		for _, conn := range <-dialerDone {
			conn.Close()
		}

		for _, rec := range s.Recordings() {
			if !rec.Done {
				t.Errorf("Run %d: connection %d still open after Close", run, rec.ID)
			}
		}
		if accepted := s.Accepted(); accepted != len(s.Recordings()) {
			t.Errorf("Run %d: %d accepted but %d recorded", run, accepted, len(s.Recordings()))
		}
	}
}
