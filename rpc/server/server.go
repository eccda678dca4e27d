package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/db/engines/maple"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/ValentinKolb/dCoord/lib/store/dstore"
	"github.com/ValentinKolb/dCoord/lib/store/lstore"
	"github.com/ValentinKolb/dCoord/rpc/common"
	"github.com/ValentinKolb/dCoord/rpc/serializer"
	"github.com/ValentinKolb/dCoord/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("server")

// serverShard is a struct that represents a shard in the RPC server
// It contains the shard ID, the store it encapsulates and the adapter
// that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		dbFactory:  func() db.KVDB { return maple.NewMapleDB(nil) },
	}
}

// RPCServer serves the configured shards over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	dbFactory  store.DBFactory
	nodeHost   *dragonboat.NodeHost
	metricsSrv *http.Server
}

// handle decodes a request, routes it to the shard and encodes the response
func (s *RPCServer) handle(shardId uint64, req []byte) []byte {
	start := time.Now()
	var msg common.Message
	var respMsg *common.Message

	// Get appropriate shard
	shard, ok := s.shards.Load(shardId)

	if !ok {
		// Case shard does not exist -> error
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		// Let the adapter handle the request
		respMsg = shard.Adapter.Handle(&msg, shard.Store)
	}

	observeRequest(shardId, msg.MsgType, respMsg, start)

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// observeRequest updates the request metrics of the server
func observeRequest(shardId uint64, msgType common.MessageType, resp *common.Message, start time.Time) {
	shard := strconv.FormatUint(shardId, 10)
	metrics.GetOrCreateCounter(fmt.Sprintf(`dcoord_rpc_requests_total{shard=%q,type=%q}`, shard, msgType)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`dcoord_rpc_request_duration_seconds{type=%q}`, msgType)).UpdateDuration(start)
	if resp.Code != store.RetCSuccess {
		metrics.GetOrCreateCounter(fmt.Sprintf(`dcoord_rpc_errors_total{shard=%q,code=%q}`, shard, resp.Code)).Inc()
	}
}

// AddShard serves an existing store under the given shard id, an existing shard is replaced
func (s *RPCServer) AddShard(shardId uint64, st store.IStore) {
	s.shards.Store(shardId, serverShard{
		Store:   st,
		Adapter: NewIStoreServerAdapter(),
	})
}

// Init creates all shards and registers the request handler at the transport.
// It is called by Serve.
func (s *RPCServer) Init() error {
	// Create the Dragonboat NodeHost
	if s.config.HasRemoteShard() {
		// Only create the NodeHost if we have remote shards
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	// Configure the timeout for the distributed store
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	// CREATE SHARDS

	/*
		Note: A single RPC Server can have any number of remote and or local shards.
		The following loop creates all the shards and stores them for the RPC server.
	*/

	for _, shardConfig := range s.config.Shards {
		switch shardConfig.Type {
		case common.ShardTypeLocalIStore:
			s.AddShard(shardConfig.ShardID, lstore.NewLocalStore(s.dbFactory))
			Logger.Infof("created local store for shard %d", shardConfig.ShardID)

		case common.ShardTypeRemoteIStore:
			// Start Raft for the shard
			if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, dstore.CreateStateMaschineFactory(s.dbFactory), s.config.ToDragonboatConfig(shardConfig.ShardID)); err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}
			s.AddShard(shardConfig.ShardID, dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, timeout))
			Logger.Infof("created distributed store for shard %d", shardConfig.ShardID)

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}
	}

	Logger.Infof("dCoord setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer
func (s *RPCServer) Serve() error {
	if err := s.Init(); err != nil {
		return err
	}
	if s.config.MetricsEndpoint != "" {
		s.serveMetrics()
	}
	return s.transport.Listen(s.config)
}

// serveMetrics exposes all metrics in the prometheus text format
func (s *RPCServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	s.metricsSrv = &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}
	go func() {
		Logger.Infof("Serving metrics on %s/metrics", s.config.MetricsEndpoint)
		if err := s.metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint failed: %v", err)
		}
	}()
}

// Close stops the transport and releases all shards
func (s *RPCServer) Close() error {
	errs := []error{s.transport.Close()}
	if s.metricsSrv != nil {
		errs = append(errs, s.metricsSrv.Close())
	}
	s.shards.Range(func(id uint64, shard serverShard) bool {
		if c, ok := shard.Store.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		return true
	})
	s.shards.Clear()
	if s.nodeHost != nil {
		s.nodeHost.Close()
	}
	return errors.Join(errs...)
}
