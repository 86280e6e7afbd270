package sink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/fanout/cmd/util"
	"github.com/ValentinKolb/fanout/lib/sink"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var (
	SinkCmd = &cobra.Command{
		Use:   "sink",
		Short: "Accept connections and count the bytes received on each",
		Long: `Accept plain or TLS connections and record the bytes received per connection.
A summary is printed when the sink stops (on SIGINT/SIGTERM or after --duration).
The format of the environment variables is FANOUT_<flag> (e.g. FANOUT_ENDPOINT=0.0.0.0:9000)`,
		PreRunE: processConfig,
		RunE:    run,
	}

	sinkConfig sink.Config
)

func init() {
	key := "endpoint"
	SinkCmd.Flags().String(key, "127.0.0.1:8080", cmdUtil.WrapString("The address on which the sink will listen"))

	key = "tls-cert"
	SinkCmd.Flags().String(key, "", cmdUtil.WrapString("PEM certificate to serve TLS with (requires --tls-key)"))

	key = "tls-key"
	SinkCmd.Flags().String(key, "", cmdUtil.WrapString("PEM private key of --tls-cert"))

	key = "tls-self-signed"
	SinkCmd.Flags().String(key, "", cmdUtil.WrapString("Serve TLS with a generated certificate for these comma separated hosts (e.g. example.test,127.0.0.1)"))

	key = "tls-ca-out"
	SinkCmd.Flags().String(key, "", cmdUtil.WrapString("Write the generated certificate to this file, to be used as --tls-ca-file by blast"))

	key = "limit"
	SinkCmd.Flags().Int(key, 0, cmdUtil.WrapString("Close every connection after the first N (0 = unlimited)"))

	key = "read-timeout"
	SinkCmd.Flags().Duration(key, 0, cmdUtil.WrapString("Close connections that stay silent this long (0 = never)"))

	key = "duration"
	SinkCmd.Flags().Duration(key, 0, cmdUtil.WrapString("Stop after this long (0 = until interrupted)"))

	key = "show-data"
	SinkCmd.Flags().Bool(key, false, cmdUtil.WrapString("Print the bytes received on every connection when stopping"))
}

// processConfig reads the configuration from the command line flags and
// environment variables and builds the sink configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	sinkConfig = sink.Config{
		Endpoint:    viper.GetString("endpoint"),
		Limit:       viper.GetInt("limit"),
		ReadTimeout: viper.GetDuration("read-timeout"),
	}

	tlsConfig, err := loadTLS()
	if err != nil {
		return err
	}
	sinkConfig.TLS = tlsConfig

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	s, err := sink.Listen(sinkConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if d := viper.GetDuration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve() }()

	fmt.Printf("Listening on %s\n", s.Addr())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, net.ErrClosed) {
			return err
		}
	}

	if err := s.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		cmdUtil.Logger.Warningf("Failed to close sink: %v", err)
	}

	fmt.Println(s.Summary().String())

	if viper.GetBool("show-data") {
		for _, rec := range s.Recordings() {
			fmt.Printf("#%d %s (%d bytes): %q\n", rec.ID, rec.Remote, len(rec.Data), rec.Data)
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func loadTLS() (*tls.Config, error) {
	certFile, keyFile := viper.GetString("tls-cert"), viper.GetString("tls-key")
	selfSigned := viper.GetString("tls-self-signed")

	switch {
	case certFile != "" && selfSigned != "":
		return nil, errors.New("--tls-cert and --tls-self-signed are mutually exclusive")
	case certFile != "" || keyFile != "":
		if certFile == "" || keyFile == "" {
			return nil, errors.New("--tls-cert and --tls-key must be given together")
		}
		return sink.LoadServerConfig(certFile, keyFile)
	case selfSigned != "":
		hosts := strings.Split(selfSigned, ",")
		for i := range hosts {
			hosts[i] = strings.TrimSpace(hosts[i])
		}
		cert, err := sink.NewSelfSigned(hosts...)
		if err != nil {
			return nil, err
		}
		if caOut := viper.GetString("tls-ca-out"); caOut != "" {
			if err := cert.WriteCA(caOut); err != nil {
				return nil, fmt.Errorf("failed to write CA file: %w", err)
			}
			cmdUtil.Logger.Infof("Wrote certificate for %s to %s", selfSigned, caOut)
		}
		return cert.ServerConfig(), nil
	default:
		return nil, nil
	}
}
