package kv

import (
	"encoding/json"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/pkg/errors"
)

// DefaultService is the id of the harness' linearizable key-value service.
const DefaultService = "lin-kv"

// Caller sends a request and waits for the correlated response. Error
// responses come back as common.RPCErr. node.Node is a Caller.
type Caller interface {
	Call(dest, typ string, payload interface{}) (message.Message, error)
}

// Client is a key-value client for one service.
type Client struct {
	caller  Caller
	service string
}

// NewClient ...
func NewClient(caller Caller, service string) *Client {
	return &Client{
		caller:  caller,
		service: service,
	}
}

// Read returns the value under key. A missing key is a KeyDoesNotExist
// RPCErr.
func (c *Client) Read(key string) (json.RawMessage, error) {
	resp, err := c.caller.Call(c.service, message.TypeRead, &message.Read{Key: message.StringKey(key)})
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", key)
	}

	ok, isReadOk := resp.Body.Payload.(*message.ReadOk)
	if !isReadOk {
		return nil, unexpected(resp, message.TypeReadOk)
	}

	if len(ok.Value) == 0 {
		return json.RawMessage("null"), nil
	}

	return ok.Value, nil
}

// Write stores value under key.
func (c *Client) Write(key string, value json.RawMessage) error {
	resp, err := c.caller.Call(c.service, message.TypeWrite, &message.Write{Key: message.StringKey(key), Value: value})
	if err != nil {
		return errors.Wrapf(err, "writing %q", key)
	}

	if resp.Body.Type != message.TypeWriteOk {
		return unexpected(resp, message.TypeWriteOk)
	}

	return nil
}

// CAS replaces from with to under key. When create is set, a missing key is
// created with to. A different current value is a PreconditionFailed RPCErr;
// a missing key without create is KeyDoesNotExist.
func (c *Client) CAS(key string, from, to json.RawMessage, create bool) error {
	resp, err := c.caller.Call(c.service, message.TypeCas, &message.Cas{
		Key:               message.StringKey(key),
		From:              from,
		To:                to,
		CreateIfNotExists: create,
	})
	if err != nil {
		return errors.Wrapf(err, "cas %q", key)
	}

	if resp.Body.Type != message.TypeCasOk {
		return unexpected(resp, message.TypeCasOk)
	}

	return nil
}

func unexpected(resp message.Message, want string) error {
	return common.NewRPCErrf(common.Crash, "expected %s from %s, got %s", want, resp.Src, resp.Body.Type)
}
