package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/dCoord/lib/coord"
	"github.com/ValentinKolb/dCoord/rpc/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
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

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and makes every flag settable as DCOORD_<FLAG>
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dcoord")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper and sets up the loggers
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	level := viper.GetString("log-level")
	if !common.ValidLogLevel(level) {
		return fmt.Errorf("invalid log level %q (debug, info, warn, error)", level)
	}
	common.InitLoggers(level)
	return nil
}

// SetupCoordFlags adds the backend and service flags to a command
func SetupCoordFlags(cmd *cobra.Command) {
	d := coord.DefaultConfig()
	flags := cmd.PersistentFlags()

	// backend
	flags.String("backend", string(d.Backend), WrapString("The coordination backend (local, rpc, etcd, memcached). It is chosen once per process"))
	flags.String("endpoints", strings.Join(d.Endpoints, ","), WrapString("Comma-separated endpoints of the shared backend (dcoord servers, etcd members or memcached servers)"))
	flags.String("cache-endpoints", "", WrapString("(memcached) Comma-separated memcached servers for progress records. Defaults to --endpoints"))
	flags.Uint64("lock-shard", d.RPC.LockShard, WrapString("(rpc) Shard of the locks, cell guards and login failures"))
	flags.Uint64("cache-shard", d.RPC.CacheShard, WrapString("(rpc) Shard of the progress records"))
	flags.String("etcd-prefix", d.EtcdPrefix, WrapString("(etcd) Namespace prefix of all keys"))
	flags.Int("op-timeout-ms", int(d.OpTimeout/time.Millisecond), WrapString("(etcd, memcached) Timeout of a single backend operation in milliseconds"))

	// rpc transport
	flags.Int("timeout", d.RPC.Client.TimeoutSecond, WrapString("(rpc) The timeout in seconds of the client"))
	flags.Int("transport-conn-per-endpoint", 1, WrapString("(rpc) Simultaneous connections per endpoint - for transports that support this feature"))
	flags.Int("transport-retries", d.RPC.Client.Transport.RetryCount, WrapString("(rpc) How many times to retry the request"))
	flags.Int("transport-write-buffer", 512, WrapString("(rpc) The size of the write buffer for the transport (in KB, ignored for http)"))
	flags.Int("transport-read-buffer", 512, WrapString("(rpc) The size of the read buffer for the transport (in KB, ignored for http)"))
	flags.Bool("transport-tcp-nodelay", true, WrapString("(rpc) Whether to enable TCP_NODELAY for the transport (only for tcp)"))
	flags.Int("transport-tcp-keepalive", 0, WrapString("(rpc) The keepalive interval for the transport (in seconds, only for tcp)"))
	flags.Int("transport-tcp-linger", 0, WrapString("(rpc) The linger time for the transport (in seconds, only for tcp)"))

	// services
	flags.Int("lock-retry-times", d.Lock.MaxRetries, WrapString("How many times a lock is tried before giving up"))
	flags.Int("lock-retry-interval-ms", int(d.Lock.RetryInterval/time.Millisecond), WrapString("Wait between two lock attempts in milliseconds"))
	flags.Int("cell-retry-times", d.Cell.RetryTimes, WrapString("How many times the reference count of a cell is polled before a bulk deletion gives up"))
	flags.Int("cell-retry-interval-ms", int(d.Cell.RetryInterval/time.Millisecond), WrapString("Wait between two reference count polls in milliseconds"))
	flags.Int64("account-lock-count", d.Lockout.LockCount, WrapString("Failed logins after which an account is locked (0 disables the lockout)"))
	flags.Int("account-lock-time", int(d.Lockout.LockTime/time.Second), WrapString("Seconds after the last failed login until the failures are forgotten"))
	flags.Int("progress-lifetime", int(d.Progress.Lifetime/time.Second), WrapString("Seconds a progress record is kept"))
}

// splitList splits a comma-separated flag value and drops empty entries
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetCoordConfig reads the coordination configuration from viper
func GetCoordConfig() (coord.Config, error) {
	cfg := coord.DefaultConfig()

	backend, err := coord.ParseBackend(viper.GetString("backend"))
	if err != nil {
		return cfg, err
	}
	cfg.Backend = backend
	cfg.Endpoints = splitList(viper.GetString("endpoints"))
	cfg.CacheEndpoints = splitList(viper.GetString("cache-endpoints"))
	cfg.EtcdPrefix = viper.GetString("etcd-prefix")
	cfg.OpTimeout = time.Duration(viper.GetInt("op-timeout-ms")) * time.Millisecond

	cfg.RPC = coord.RPCConfig{
		Client: common.ClientConfig{
			TimeoutSecond: viper.GetInt("timeout"),
			Transport: common.ClientTransportConfig{
				RetryCount:             viper.GetInt("transport-retries"),
				ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
				SocketConf: common.SocketConf{
					WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
					ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
				},
				TCPConf: common.TCPConf{
					TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
					TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
					TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
				},
			},
		},
		Transport:  viper.GetString("transport"),
		Serializer: viper.GetString("serializer"),
		LockShard:  viper.GetUint64("lock-shard"),
		CacheShard: viper.GetUint64("cache-shard"),
	}

	cfg.Lock.MaxRetries = viper.GetInt("lock-retry-times")
	cfg.Lock.RetryInterval = time.Duration(viper.GetInt("lock-retry-interval-ms")) * time.Millisecond
	cfg.Cell.RetryTimes = viper.GetInt("cell-retry-times")
	cfg.Cell.RetryInterval = time.Duration(viper.GetInt("cell-retry-interval-ms")) * time.Millisecond
	cfg.Lockout.LockCount = viper.GetInt64("account-lock-count")
	cfg.Lockout.LockTime = time.Duration(viper.GetInt("account-lock-time")) * time.Second
	cfg.Progress.Lifetime = time.Duration(viper.GetInt("progress-lifetime")) * time.Second

	return cfg, nil
}

// OpenCoordinator binds the flags of cmd and opens the configured backend
func OpenCoordinator(cmd *cobra.Command) (*coord.Coordinator, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	cfg, err := GetCoordConfig()
	if err != nil {
		return nil, err
	}
	return coord.New(cfg)
}
