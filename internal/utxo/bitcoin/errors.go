package bitcoin

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/btcsuite/btcd/btcjson"
)

// NetworkError reports a transport failure or timeout while talking to the node.
type NetworkError struct {
	Method string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("rpc %s: network error: %v", e.Method, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports an error payload returned by the node or a response
// that does not match the expected schema.
type ProtocolError struct {
	Method string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("rpc %s: protocol error: %v", e.Method, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ConnectionError reports that the node could not be reached at all.
type ConnectionError struct {
	Method string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rpc %s: connection error: %v", e.Method, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func protocolErrorf(method, format string, args ...any) error {
	return &ProtocolError{Method: method, Err: fmt.Errorf(format, args...)}
}

// classify maps a RawClient failure onto the gateway error kinds.
func classify(method string, err error) error {
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		return &ProtocolError{Method: method, Err: err}
	}
	if isConnectionFailure(err) {
		return &ConnectionError{Method: method, Err: err}
	}
	return &NetworkError{Method: method, Err: err}
}

func isConnectionFailure(err error) bool {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" && !opErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
