package kv

import (
	"encoding/json"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/sirupsen/logrus"
)

// Backend is the storage a Service serves.
type Backend interface {
	Read(key string) (json.RawMessage, error)
	Write(key string, value json.RawMessage) error
	CAS(key string, from, to json.RawMessage, create bool) error
}

// Service is a workload answering read, write and cas like the harness'
// lin-kv. Requests are served one at a time by the dispatch loop, which makes
// every operation linearizable.
type Service struct {
	backend Backend
}

// NewService ...
func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

// Name implements the node.Workload interface.
func (s *Service) Name() string {
	return DefaultService
}

// Start implements the node.Workload interface.
func (s *Service) Start(n *node.Node) {}

// Handle implements the node.Workload interface.
func (s *Service) Handle(n *node.Node, msg message.Message) error {
	switch msg.Body.Type {
	case message.TypeRead:
		req, ok := msg.Body.Payload.(*message.Read)
		if !ok {
			return common.NewRPCErr(common.MalformedRequest, "read payload missing")
		}
		key, err := storeKey(req.Key)
		if err != nil {
			return err
		}
		value, err := s.backend.Read(key)
		if err != nil {
			return err
		}
		return n.Reply(msg, message.TypeReadOk, &message.ReadValueOk{Value: value})

	case message.TypeWrite:
		req, ok := msg.Body.Payload.(*message.Write)
		if !ok {
			return common.NewRPCErr(common.MalformedRequest, "write payload missing")
		}
		key, err := storeKey(req.Key)
		if err != nil {
			return err
		}
		if err := s.backend.Write(key, req.Value); err != nil {
			return err
		}
		return n.Reply(msg, message.TypeWriteOk, nil)

	case message.TypeCas:
		req, ok := msg.Body.Payload.(*message.Cas)
		if !ok {
			return common.NewRPCErr(common.MalformedRequest, "cas payload missing")
		}
		key, err := storeKey(req.Key)
		if err != nil {
			return err
		}
		if err := s.backend.CAS(key, req.From, req.To, req.CreateIfNotExists); err != nil {
			n.Logger().WithFields(logrus.Fields{
				"key":    key,
				"create": req.CreateIfNotExists,
			}).WithError(err).Debug("CAS refused")
			return err
		}
		return n.Reply(msg, message.TypeCasOk, nil)
	}

	return node.ErrUnknownKind
}

// storeKey maps a wire key to the backend key: its compact JSON encoding, so
// the string "1" and the integer 1 are distinct keys.
func storeKey(k message.Key) (string, error) {
	if k.Missing() {
		return "", common.NewRPCErr(common.MalformedRequest, "key missing")
	}
	return k.String(), nil
}
