package util

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"testing"
	"time"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("Line exceeds %d characters: %q", Wrap, line)
		}
	}

	if got := WrapString("short text"); got != "short text" {
		t.Errorf("Expected short text unchanged, got %q", got)
	}
}

func TestGetPoolConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cmd := &cobra.Command{Use: "test"}
	SetupPoolFlags(cmd)
	SetupRootFlags(cmd)

	if err := cmd.PersistentFlags().Parse([]string{
		"--connect-timeout=3s",
		"--max-in-flight=8",
		"--socket-write-buffer=16",
		"--tcp-keepalive=30",
		"--tls-insecure",
	}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		t.Fatalf("Failed to bind flags: %v", err)
	}

	conf := GetPoolConfig()
	if conf.ConnectTimeout != 3*time.Second {
		t.Errorf("Expected connect timeout 3s, got %s", conf.ConnectTimeout)
	}
	if conf.WriteTimeout != 10*time.Second {
		t.Errorf("Expected default write timeout 10s, got %s", conf.WriteTimeout)
	}
	if conf.MaxInFlight != 8 {
		t.Errorf("Expected max in flight 8, got %d", conf.MaxInFlight)
	}
	if conf.Socket.WriteBufferSize != 16*1024 {
		t.Errorf("Expected write buffer 16 KB, got %d", conf.Socket.WriteBufferSize)
	}
	if !conf.TCP.TCPNoDelay || conf.TCP.TCPKeepAliveSec != 30 {
		t.Errorf("Unexpected TCP config %+v", conf.TCP)
	}
	if !conf.TLS.InsecureSkipVerify {
		t.Error("Expected insecure TLS")
	}
}

func TestEnvOverride(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	t.Setenv("FANOUT_MAX_IN_FLIGHT", "4")
	InitConfig()

	cmd := &cobra.Command{Use: "test"}
	SetupPoolFlags(cmd)
	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		t.Fatalf("Failed to bind flags: %v", err)
	}

	if conf := GetPoolConfig(); conf.MaxInFlight != 4 {
		t.Errorf("Expected max in flight 4 from env, got %d", conf.MaxInFlight)
	}
}
