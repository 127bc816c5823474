package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// RPCErrType is a protocol error code, as understood by the test harness.
type RPCErrType int

const (
	// Timeout ...
	Timeout RPCErrType = 0
	// NodeNotFound ...
	NodeNotFound RPCErrType = 1
	// NotSupported ...
	NotSupported RPCErrType = 10
	// TemporarilyUnavailable ...
	TemporarilyUnavailable RPCErrType = 11
	// MalformedRequest ...
	MalformedRequest RPCErrType = 12
	// Crash ...
	Crash RPCErrType = 13
	// Abort ...
	Abort RPCErrType = 14
	// KeyDoesNotExist ...
	KeyDoesNotExist RPCErrType = 20
	// KeyAlreadyExists ...
	KeyAlreadyExists RPCErrType = 21
	// PreconditionFailed ...
	PreconditionFailed RPCErrType = 22
	// TxnConflict ...
	TxnConflict RPCErrType = 30
)

// String ...
func (t RPCErrType) String() string {
	switch t {
	case Timeout:
		return "Timeout"
	case NodeNotFound:
		return "Node Not Found"
	case NotSupported:
		return "Not Supported"
	case TemporarilyUnavailable:
		return "Temporarily Unavailable"
	case MalformedRequest:
		return "Malformed Request"
	case Crash:
		return "Crash"
	case Abort:
		return "Abort"
	case KeyDoesNotExist:
		return "Key Does Not Exist"
	case KeyAlreadyExists:
		return "Key Already Exists"
	case PreconditionFailed:
		return "Precondition Failed"
	case TxnConflict:
		return "Txn Conflict"
	default:
		return "Unknown"
	}
}

// Definite reports whether an operation that failed with this code is known
// not to have taken place. Timeouts and crashes are indefinite.
func (t RPCErrType) Definite() bool {
	return t != Timeout && t != Crash
}

// RPCErr is an error that travels on the wire as an error body.
type RPCErr struct {
	Code RPCErrType
	Text string
}

// NewRPCErr ...
func NewRPCErr(code RPCErrType, text string) RPCErr {
	return RPCErr{
		Code: code,
		Text: text,
	}
}

// NewRPCErrf ...
func NewRPCErrf(code RPCErrType, format string, args ...interface{}) RPCErr {
	return NewRPCErr(code, fmt.Sprintf(format, args...))
}

// Error ...
func (e RPCErr) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("rpc error %d (%s)", e.Code, e.Code)
	}
	return fmt.Sprintf("rpc error %d (%s): %s", e.Code, e.Code, e.Text)
}

// AsRPC unwraps err down to an RPCErr. Errors that do not carry a protocol code
// are reported as Crash, which the harness treats as indefinite.
func AsRPC(err error) RPCErr {
	if rpcErr, ok := errors.Cause(err).(RPCErr); ok {
		return rpcErr
	}
	return NewRPCErr(Crash, err.Error())
}

// IsRPC checks that an error is of type RPCErr and that its code matches the
// provided code. Wrapped errors are unwrapped first.
func IsRPC(err error, t RPCErrType) bool {
	rpcErr, ok := errors.Cause(err).(RPCErr)
	return ok && rpcErr.Code == t
}
