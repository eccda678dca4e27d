package server

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dCoord/lib/store"
	"github.com/ValentinKolb/dCoord/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTKVGet:
		val, ok, err := s.Get(req.Key)
		return common.NewGetResponse(val, ok, err)
	case common.MsgTKVPut:
		err := s.Put(req.Key, req.Value, req.TTL)
		return common.NewPutResponse(err)
	case common.MsgTKVPutIfAbsent:
		stored, err := s.PutIfAbsent(req.Key, req.Value, req.TTL)
		return common.NewPutIfAbsentResponse(stored, err)
	case common.MsgTKVDelete:
		err := s.Delete(req.Key)
		return common.NewDeleteResponse(err)
	case common.MsgTKVIncrement:
		val, err := s.Increment(req.Key, req.TTL)
		return common.NewIncrementResponse(val, err)
	case common.MsgTKVDecrement:
		val, err := s.Decrement(req.Key)
		return common.NewDecrementResponse(val, err)
	case common.MsgTKVClear:
		err := s.Clear()
		return common.NewClearResponse(err)
	case common.MsgTKVInfo:
		info, err := s.GetDBInfo()
		if err != nil {
			return common.NewInfoResponse(nil, err)
		}
		data, err := json.Marshal(info)
		return common.NewInfoResponse(data, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsuported message type: %s", req.MsgType),
		)
	}
}
