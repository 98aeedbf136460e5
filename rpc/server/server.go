package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/JonasWeidner/oDB/lib/engine/bolt"
	"github.com/JonasWeidner/oDB/lib/odb"
	"github.com/JonasWeidner/oDB/rpc/common"
	"github.com/JonasWeidner/oDB/rpc/serializer"
	"github.com/JonasWeidner/oDB/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// ObjectStoreShardID is the shard every object store request is routed to.
// The shard ID travels in the frame header, so additional services can be
// mounted on other shards of the same server.
const ObjectStoreShardID uint64 = 0

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	logger := common.MustLogger(config.LogLevel).Named("rpc.server")
	logger.Info("created RPC server")
	logger.Info(config.String())

	// Create the RPC server
	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		logger:     logger,
		shards:     xsync.NewMapOf[uint64, IRPCServerAdapter](),
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	logger     *zap.Logger
	shards     *xsync.MapOf[uint64, IRPCServerAdapter]
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		// Get appropriate shard
		adapter, ok := s.shards.Load(shardId)

		// Case shard does not exist -> error
		if !ok {
			respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
		} else if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			// Let the adapter handle the request
			respMsg = adapter.Handle(&msg)
		}

		// Return result
		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			s.logger.Error("failed to serialize response", zap.Error(err))
			return nil
		}
		return val
	})
}

func (s *rpcServer) init() error {
	// Create the storage engine
	opts := bolt.DefaultOptions(s.config.DataDir)
	if s.config.QuotaBytes > 0 {
		opts.QuotaBytes = s.config.QuotaBytes
	}
	eng, err := bolt.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create storage engine: %w", err)
	}

	// Create the registry and mount the object store adapter on its shard
	registry := odb.NewRegistry(eng, s.logger.Named("odb"))
	s.shards.Store(ObjectStoreShardID, NewObjectStoreAdapter(registry))
	s.logger.Info("mounted object store",
		zap.Uint64("shard", ObjectStoreShardID),
		zap.String("dataDir", s.config.DataDir))

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the storage engine plus the shards
// and start the transport layer
func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}
