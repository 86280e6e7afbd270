package tls

import (
	"errors"
	"github.com/ValentinKolb/fanout/lib/common"
	"github.com/ValentinKolb/fanout/lib/pool"
	"github.com/ValentinKolb/fanout/lib/sink"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startTLSSink(t *testing.T) (*sink.Sink, *sink.SelfSigned) {
	t.Helper()
	cert, err := sink.NewSelfSigned("example.test", "127.0.0.1")
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	s, err := sink.Listen(sink.Config{Endpoint: "127.0.0.1:0", TLS: cert.ServerConfig()})
	if err != nil {
		t.Fatalf("Failed to start sink: %v", err)
	}
	s.Start()
	t.Cleanup(func() { s.Close() })
	return s, cert
}

func testConfig(cert *sink.SelfSigned) common.PoolConfig {
	config := common.DefaultPoolConfig()
	config.ConnectTimeout = 2 * time.Second
	config.TLS.HandshakeTimeout = 2 * time.Second
	config.TLS.RootCAs = cert.Pool
	return config
}

func TestTLSPoolSend(t *testing.T) {
	t.Run("Broadcast", func(t *testing.T) {
		s, cert := startTLSSink(t)

		p, err := NewPool("127.0.0.1", s.Port(), "example.test", testConfig(cert))
		if err != nil {
			t.Fatalf("Failed to create pool: %v", err)
		}
		defer p.Close()

		if report, err := p.Connect(3); err != nil || report.Live != 3 {
			t.Fatalf("Connect failed: %s, %v", report, err)
		}

		report, err := p.Send([][]byte{[]byte("X")})
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if report.Written != 3 || len(report.Failures) != 0 {
			t.Fatalf("Unexpected send report: %s", report)
		}
		for i, idx := range report.Assignment {
			if idx != 0 {
				t.Errorf("Position %d: expected payload 0, got %d", i, idx)
			}
		}
		p.Close()

		if !s.WaitReceived(3, 2*time.Second) {
			t.Fatalf("Timeout waiting for data, got %d bytes", s.Received())
		}
		recs := s.Recordings()
		if len(recs) != 3 {
			t.Fatalf("Expected 3 recordings, got %d", len(recs))
		}
		for _, rec := range recs {
			if string(rec.Data) != "X" {
				t.Errorf("Connection %d: expected %q, got %q", rec.ID, "X", rec.Data)
			}
		}
	})

	t.Run("Bijective", func(t *testing.T) {
		s, cert := startTLSSink(t)

		p, err := NewPool("127.0.0.1", s.Port(), "example.test", testConfig(cert))
		if err != nil {
			t.Fatalf("Failed to create pool: %v", err)
		}
		defer p.Close()

		report, err := p.Connect(2)
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if report.Live != 2 || report.Failed != 0 {
			t.Fatalf("Unexpected connect report: %s, failures %v", report, report.Failures)
		}

		payloads := [][]byte{[]byte("one"), []byte("two")}
		sendReport, err := p.Send(payloads)
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if len(sendReport.Assignment) != 2 {
			t.Fatalf("Expected 2 assignments, got %v", sendReport.Assignment)
		}

		// every payload goes to exactly one connection
		expected := map[string]int{}
		for i, idx := range sendReport.Assignment {
			if idx != i {
				t.Errorf("Position %d: expected payload %d, got %d", i, i, idx)
			}
			if sendReport.BytesPerConnection[i] != len(payloads[idx]) {
				t.Errorf("Position %d: expected %d bytes, got %d", i, len(payloads[idx]), sendReport.BytesPerConnection[i])
			}
			expected[string(payloads[idx])]++
		}
		p.Close()

		if !s.WaitReceived(6, 2*time.Second) {
			t.Fatalf("Timeout waiting for data, got %d bytes", s.Received())
		}
		received := map[string]int{}
		for _, rec := range s.Recordings() {
			received[string(rec.Data)]++
		}
		for payload, n := range expected {
			if received[payload] != n {
				t.Errorf("Payload %q: assigned %d times, received %d times", payload, n, received[payload])
			}
		}
		if len(received) != len(expected) {
			t.Errorf("Received unexpected payloads: %v", received)
		}
	})
}

func TestTLSDomainMismatch(t *testing.T) {
	s, cert := startTLSSink(t)

	p, err := NewPool("127.0.0.1", s.Port(), "other.test", testConfig(cert))
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer p.Close()

	report, err := p.Connect(2)
	if err != nil {
		t.Fatalf("Connect must not fail on handshake errors: %v", err)
	}
	if report.Live != 0 || p.Len() != 0 {
		t.Errorf("Expected empty live set, got %d", report.Live)
	}
	if report.HandshakeFailures() != 2 {
		t.Fatalf("Expected 2 handshake failures, got %s", report)
	}
	for _, f := range report.Failures {
		if !errors.Is(f, pool.ErrHandshake) || f.FailedIn != pool.StateHandshaking {
			t.Errorf("Unexpected failure %v", f)
		}
	}
}

func TestTLSUntrustedCertificate(t *testing.T) {
	s, _ := startTLSSink(t)

	other, err := sink.NewSelfSigned("example.test")
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}

	p, err := NewPool("127.0.0.1", s.Port(), "example.test", testConfig(other))
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer p.Close()

	report, _ := p.Connect(1)
	if report.HandshakeFailures() != 1 {
		t.Errorf("Expected a handshake failure for an untrusted certificate, got %s", report)
	}

	// without verification the same server is accepted
	config := testConfig(other)
	config.TLS.InsecureSkipVerify = true
	insecure, err := NewPool("127.0.0.1", s.Port(), "example.test", config)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer insecure.Close()

	if report, _ := insecure.Connect(1); report.Live != 1 {
		t.Errorf("Expected connection with InsecureSkipVerify, got %s", report)
	}
}

func TestTLSDomainDefaultsToHost(t *testing.T) {
	s, cert := startTLSSink(t)

	p, err := NewPool("127.0.0.1", s.Port(), "", testConfig(cert))
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer p.Close()

	if p.Endpoint().Domain != "127.0.0.1" {
		t.Errorf("Expected domain to default to host, got %q", p.Endpoint().Domain)
	}
	if report, _ := p.Connect(1); report.Live != 1 {
		t.Errorf("Expected certificate to match IP host, got %s", report)
	}
}

func TestNewConnectorCAFile(t *testing.T) {
	s, cert := startTLSSink(t)

	dir := t.TempDir()
	caPath := filepath.Join(dir, "ca.pem")
	if err := cert.WriteCA(caPath); err != nil {
		t.Fatalf("Failed to write CA: %v", err)
	}

	config := common.DefaultPoolConfig()
	config.TLS.CAFile = caPath
	p, err := NewPool("127.0.0.1", s.Port(), "example.test", config)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer p.Close()

	if report, _ := p.Connect(1); report.Live != 1 {
		t.Errorf("Expected CA file to be trusted, got %s", report)
	}

	if _, err := NewConnector("example.test", common.TLSConf{CAFile: filepath.Join(dir, "missing.pem")}); err == nil {
		t.Error("Expected error for missing CA file")
	}

	garbage := filepath.Join(dir, "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewConnector("example.test", common.TLSConf{CAFile: garbage}); err == nil {
		t.Error("Expected error for CA file without certificates")
	}
}
