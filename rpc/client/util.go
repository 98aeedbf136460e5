package client

import (
	"fmt"

	"github.com/JonasWeidner/oDB/lib/odb"
	"github.com/JonasWeidner/oDB/rpc/common"
	"github.com/JonasWeidner/oDB/rpc/serializer"
	"github.com/JonasWeidner/oDB/rpc/transport"
)

// invokeRPCRequest is a helper function used to send a request and await its
// response. It checks whether the response is an error response and whether
// the type of the response matches the request.
//
// Wire errors reported by the server are parsed back into the error
// taxonomy, so a remote constraint violation still matches
// errors.Is(err, odb.NewAlreadyExists()).
func invokeRPCRequest(shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := transport.Send(shardId, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("rpc client: failed to deserialize response: %s", err)
	}

	// Check if the response is an error response
	if resp.Err != "" {
		return nil, odb.ParseError(resp.Err)
	}
	if resp.MsgType == common.MsgTError {
		return nil, odb.NewDatabaseError("rpc client: server reported an error without a message")
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("rpc client: unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}
