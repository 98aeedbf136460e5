package server

import (
	"github.com/JonasWeidner/oDB/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// If an error occurs, it is set in the Err field of the response
	Handle(req *common.Message) (resp *common.Message)
}
