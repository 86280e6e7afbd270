package blast

import (
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/fanout/cmd/util"
	"github.com/ValentinKolb/fanout/lib/common"
	"github.com/ValentinKolb/fanout/lib/payload"
	"github.com/ValentinKolb/fanout/lib/pool"
	"github.com/ValentinKolb/fanout/lib/pool/tcp"
	"github.com/ValentinKolb/fanout/lib/pool/tls"
	"github.com/ValentinKolb/fanout/lib/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"net"
	"os"
	"strconv"
	"time"
)

var (
	BlastCmd = &cobra.Command{
		Use:   "blast",
		Short: "Open many connections to one endpoint and send payloads over them",
		Long: `Open many connections to one endpoint and send payloads over them.

Every round sends payload[i mod M] to live connection i, where M is the number of
payloads. With a single payload every connection receives the same bytes. The
configuration can be set via command line flags or environment variables. The
format of the environment variables is FANOUT_<flag> (e.g. FANOUT_COUNT=100)`,
		PreRunE: processConfig,
		RunE:    run,
	}

	blastPayloads   [][]byte
	blastPoolConfig common.PoolConfig
)

func init() {
	cmdUtil.SetupPoolFlags(BlastCmd)

	key := "host"
	BlastCmd.Flags().String(key, "localhost", cmdUtil.WrapString("Host name or IP address of the endpoint"))

	key = "port"
	BlastCmd.Flags().Uint32(key, 8080, cmdUtil.WrapString("Port of the endpoint"))

	key = "tls"
	BlastCmd.Flags().Bool(key, false, cmdUtil.WrapString("Whether to secure every connection with TLS"))

	key = "domain"
	BlastCmd.Flags().String(key, "", cmdUtil.WrapString("Domain the server certificate is validated against (defaults to host, only for TLS)"))

	key = "count"
	BlastCmd.Flags().Uint32(key, 10, cmdUtil.WrapString("Number of connections to open"))

	key = "connect-batches"
	BlastCmd.Flags().Int(key, 1, cmdUtil.WrapString("Split the connections over this many consecutive connect calls"))

	key = "rounds"
	BlastCmd.Flags().Int(key, 1, cmdUtil.WrapString("How many times the payloads are sent"))

	key = "interval"
	BlastCmd.Flags().Duration(key, 0, cmdUtil.WrapString("Pause between two rounds"))

	key = "payload"
	BlastCmd.Flags().StringSlice(key, nil, cmdUtil.WrapString("Payload to send, may be repeated. Prefix with hex:, base64: or file: for non text payloads"))

	key = "payload-file"
	BlastCmd.Flags().String(key, "", cmdUtil.WrapString("YAML manifest with the payloads to send (appended after --payload)"))

	key = "csv"
	BlastCmd.Flags().String(key, "", cmdUtil.WrapString("Optional path to save the round results as CSV"))

	key = "metrics"
	BlastCmd.Flags().String(key, "", cmdUtil.WrapString("Optional path to dump the pool metrics in Prometheus format after the run (- for stdout)"))
}

// processConfig reads the configuration from the command line flags and
// environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	blastPoolConfig = cmdUtil.GetPoolConfig()

	payloads, err := payload.ParseArgs(viper.GetStringSlice("payload"))
	if err != nil {
		return err
	}
	if path := viper.GetString("payload-file"); path != "" {
		fromFile, err := payload.Load(path)
		if err != nil {
			return err
		}
		payloads = append(payloads, fromFile...)
	}
	if len(payloads) == 0 {
		return errors.New("no payloads given, use --payload or --payload-file")
	}
	blastPayloads = payloads

	if viper.GetInt("connect-batches") < 1 {
		return fmt.Errorf("connect-batches must be at least 1")
	}
	if viper.GetInt("rounds") < 0 {
		return fmt.Errorf("rounds must not be negative")
	}

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	host := viper.GetString("host")
	port := viper.GetUint32("port")
	target := net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))

	p, err := newPool(host, port)
	if err != nil {
		return err
	}
	defer p.Close()

	config := p.Config()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Target: %s (%s)\n", p.Endpoint(), p.Name())
	fmt.Printf("Payloads: %d\n", len(blastPayloads))

	rec := report.NewRecorder()
	defer rec.Stop()

	// connect
	for i, batch := range batches(viper.GetUint32("count"), viper.GetInt("connect-batches")) {
		connectReport, err := p.Connect(batch)
		if err != nil {
			return err
		}
		rec.ObserveConnect(connectReport)
		cmdUtil.Logger.Debugf("Batch %d: %s", i, connectReport)

		for _, failure := range connectReport.Failures {
			cmdUtil.Logger.Debugf("Attempt %d failed: %v", failure.Attempt, failure)
		}
	}

	// send
	rounds := viper.GetInt("rounds")
	interval := viper.GetDuration("interval")
	for i := 0; i < rounds; i++ {
		if i > 0 && interval > 0 {
			time.Sleep(interval)
		}

		sendReport, err := p.Send(blastPayloads)
		if err != nil {
			return err
		}
		round := rec.ObserveSend(sendReport)
		cmdUtil.Logger.Infof("Round %d: %s", round.Index, sendReport)
	}

	fmt.Println(rec.Summary().String())

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("Exporting results to CSV: %s\n", csvPath)
		if err := rec.WriteCSVFile(csvPath, target, p.Name(), p.Config()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %w", err)
		}
	}

	if metricsPath := viper.GetString("metrics"); metricsPath != "" {
		if err := dumpMetrics(p, metricsPath); err != nil {
			return fmt.Errorf("failed to dump metrics: %w", err)
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func newPool(host string, port uint32) (*pool.Pool, error) {
	if viper.GetBool("tls") {
		return tls.NewPool(host, port, viper.GetString("domain"), blastPoolConfig)
	}
	return tcp.NewPool(host, port, blastPoolConfig)
}

// batches splits count into n nearly equal parts, the first ones being larger
func batches(count uint32, n int) []uint32 {
	if n < 1 {
		n = 1
	}
	if uint32(n) > count && count > 0 {
		n = int(count)
	}

	parts := make([]uint32, n)
	base, rest := count/uint32(n), count%uint32(n)
	for i := range parts {
		parts[i] = base
		if uint32(i) < rest {
			parts[i]++
		}
	}
	return parts
}

func dumpMetrics(p *pool.Pool, path string) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	p.WriteMetrics(w)
	return nil
}
