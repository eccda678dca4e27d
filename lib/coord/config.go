package coord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dCoord/lib/cellmgr"
	"github.com/ValentinKolb/dCoord/lib/clock"
	"github.com/ValentinKolb/dCoord/lib/lockmgr"
	"github.com/ValentinKolb/dCoord/lib/lockout"
	"github.com/ValentinKolb/dCoord/lib/progress"
	"github.com/ValentinKolb/dCoord/rpc/common"
)

// Backend selects the implementation of the coordination store
type Backend string

const (
	BackendLocal     Backend = "local"
	BackendRPC       Backend = "rpc"
	BackendEtcd      Backend = "etcd"
	BackendMemcached Backend = "memcached"
)

// ParseBackend validates a backend name
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case BackendLocal, BackendRPC, BackendEtcd, BackendMemcached:
		return b, nil
	default:
		return "", fmt.Errorf("invalid backend %q (local, rpc, etcd or memcached)", name)
	}
}

// RPCConfig configures the stores of the rpc backend
type RPCConfig struct {
	Client     common.ClientConfig
	Transport  string // http, tcp or unix
	Serializer string // json, gob or binary
	LockShard  uint64
	CacheShard uint64
}

// Config selects the backend and configures the services
type Config struct {
	Backend Backend
	// Endpoints of the shared backend: dcoord servers, etcd members or memcached servers
	Endpoints []string
	// CacheEndpoints are the memcached servers of the progress records, Endpoints if empty
	CacheEndpoints []string
	RPC            RPCConfig
	EtcdPrefix     string
	OpTimeout      time.Duration

	Lock     lockmgr.Options
	Cell     cellmgr.Options
	Lockout  lockout.Options
	Progress progress.Options

	// Clock is handed to every service, nil means clock.Real
	Clock clock.Clock
}

// DefaultConfig returns the in-process backend with the default service options
func DefaultConfig() Config {
	return Config{
		Backend:   BackendLocal,
		Endpoints: []string{"http://localhost:8080"},
		RPC: RPCConfig{
			Client: common.ClientConfig{
				TimeoutSecond: 5,
				Transport: common.ClientTransportConfig{
					RetryCount:             3,
					ConnectionsPerEndpoint: 1,
				},
			},
			Transport:  "http",
			Serializer: "binary",
			LockShard:  200,
			CacheShard: 100,
		},
		EtcdPrefix: "/dcoord",
		OpTimeout:  5 * time.Second,
		Lock:       lockmgr.DefaultOptions(),
		Cell:       cellmgr.DefaultOptions(),
		Lockout:    lockout.DefaultOptions(),
		Progress:   progress.DefaultOptions(),
		Clock:      clock.Real{},
	}
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Coordination Backend")
	addField("Backend", string(c.Backend))
	switch c.Backend {
	case BackendRPC:
		addField("Transport", c.RPC.Transport)
		addField("Serializer", c.RPC.Serializer)
		addField("Lock Shard", strconv.FormatUint(c.RPC.LockShard, 10))
		addField("Cache Shard", strconv.FormatUint(c.RPC.CacheShard, 10))
	case BackendEtcd:
		addField("Prefix", c.EtcdPrefix)
	case BackendMemcached:
		addField("Cache Servers", strings.Join(c.cacheEndpoints(), ","))
	}
	if c.Backend != BackendLocal {
		addField("Endpoints", strings.Join(c.Endpoints, ","))
		addField("Operation Timeout", c.OpTimeout.String())
	}

	addSection("Services")
	addField("Lock Retries", strconv.Itoa(c.Lock.MaxRetries))
	addField("Lock Retry Interval", c.Lock.RetryInterval.String())
	addField("Cell Retries", strconv.Itoa(c.Cell.RetryTimes))
	addField("Cell Retry Interval", c.Cell.RetryInterval.String())
	addField("Account Lock Count", strconv.FormatInt(c.Lockout.LockCount, 10))
	addField("Account Lock Time", c.Lockout.LockTime.String())
	addField("Progress Lifetime", c.Progress.Lifetime.String())

	return sb.String()
}

func (c *Config) cacheEndpoints() []string {
	if len(c.CacheEndpoints) > 0 {
		return c.CacheEndpoints
	}
	return c.Endpoints
}
