package client

import (
	"encoding/json"

	"github.com/ValentinKolb/dCoord/lib/db"
	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/ValentinKolb/dCoord/rpc/common"
	"github.com/ValentinKolb/dCoord/rpc/serializer"
	"github.com/ValentinKolb/dCoord/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IStore and an error. The returned store implements io.Closer.
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC store
	s := rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC store
	return &s, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Get(key string) (value []byte, loaded bool, err error) {
	req := common.NewGetRequest(key)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *rpcStore) PutIfAbsent(key string, value []byte, ttlSeconds uint64) (stored bool, err error) {
	req := common.NewPutIfAbsentRequest(key, value, ttlSeconds)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Put(key string, value []byte, ttlSeconds uint64) (err error) {
	req := common.NewPutRequest(key, value, ttlSeconds)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) Delete(key string) (err error) {
	req := common.NewDeleteRequest(key)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) Increment(key string, ttlSeconds uint64) (value int64, err error) {
	req := common.NewIncrementRequest(key, ttlSeconds)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return 0, err
	}
	return resp.Num, nil
}

func (i *rpcStore) Decrement(key string) (value int64, err error) {
	req := common.NewDecrementRequest(key)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return 0, err
	}
	return resp.Num, nil
}

func (i *rpcStore) Clear() (err error) {
	_, err = invokeRPCRequest(i.shardId, common.NewClearRequest(), i.transport, i.serializer)
	return err
}

func (i *rpcStore) GetDBInfo() (info db.DatabaseInfo, err error) {
	resp, err := invokeRPCRequest(i.shardId, common.NewInfoRequest(), i.transport, i.serializer)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(resp.Value, &info); err != nil {
		return info, store.Unavailable("rpc: malformed db info: %v", err)
	}
	return info, nil
}

// Close closes the underlying transport
func (i *rpcStore) Close() error {
	return i.transport.Close()
}
