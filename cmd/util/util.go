package util

import (
	"fmt"
	"github.com/ValentinKolb/fanout/lib/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"time"
)

var Logger = common.NewLogger("cli")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by the cli
	EnvPrefix = "fanout"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupPoolFlags adds the connection pool flags to a command
func SetupPoolFlags(cmd *cobra.Command) {
	key := "id"
	cmd.PersistentFlags().String(key, "", WrapString("Identifier of the pool used in logs and metrics (random uuid if empty)"))

	key = "connect-timeout"
	cmd.PersistentFlags().Duration(key, 10*time.Second, WrapString("Timeout of a single connect attempt (0 = no timeout)"))

	key = "write-timeout"
	cmd.PersistentFlags().Duration(key, 10*time.Second, WrapString("Timeout of a single write (0 = no timeout)"))

	key = "max-in-flight"
	cmd.PersistentFlags().Int(key, 0, WrapString("Maximum number of concurrent connect attempts and writes (0 = unlimited)"))

	key = "socket-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket write buffer (in KB, 0 = OS default)"))

	key = "socket-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 = OS default)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, 0 = disabled)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time (in seconds, 0 = OS default)"))

	key = "tls-ca-file"
	cmd.PersistentFlags().String(key, "", WrapString("PEM file with additional trusted root certificates (system roots if empty)"))

	key = "tls-insecure"
	cmd.PersistentFlags().Bool(key, false, WrapString("Skip verification of the server certificate and domain"))

	key = "tls-handshake-timeout"
	cmd.PersistentFlags().Duration(key, 10*time.Second, WrapString("Timeout of a single TLS handshake (0 = no timeout)"))
}

// SetupRootFlags adds the global flags to the root command
func SetupRootFlags(cmd *cobra.Command) {
	key := "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("Log level (debug, info, warn, error), optionally followed by per-logger overrides, e.g. warn,pool=debug,sink=error"))

	key = "config"
	cmd.PersistentFlags().String(key, "", WrapString("Optional config file (yaml, json, toml, ...). Keys are the flag names"))
}

// InitConfig loads env files and configures viper. The format of the
// environment variables is FANOUT_<flag> (e.g. FANOUT_CONNECT_TIMEOUT=5s)
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper, reads the optional config
// file and initializes the loggers
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return common.InitLoggers(viper.GetString("log-level"))
}

// GetPoolConfig reads the pool configuration from viper
func GetPoolConfig() common.PoolConfig {
	conf := common.DefaultPoolConfig()

	conf.ID = viper.GetString("id")
	conf.ConnectTimeout = viper.GetDuration("connect-timeout")
	conf.WriteTimeout = viper.GetDuration("write-timeout")
	conf.MaxInFlight = viper.GetInt("max-in-flight")
	conf.Socket = common.SocketConf{
		WriteBufferSize: viper.GetInt("socket-write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("socket-read-buffer") * 1024,
	}
	conf.TCP = common.TCPConf{
		TCPNoDelay:      viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("tcp-linger"),
	}
	conf.TLS.CAFile = viper.GetString("tls-ca-file")
	conf.TLS.InsecureSkipVerify = viper.GetBool("tls-insecure")
	conf.TLS.HandshakeTimeout = viper.GetDuration("tls-handshake-timeout")

	return conf
}
