package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingType is returned when encoding or decoding a body without a kind.
var ErrMissingType = errors.New("message body has no type")

// Message is the envelope exchanged between nodes, clients and services.
type Message struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
	Body Body   `json:"body"`
}

// Body is a tagged union keyed by Type. Payload holds the kind-specific fields;
// it is nil for kinds that carry none.
type Body struct {
	Type      string
	MsgID     *uint64
	InReplyTo *uint64
	Payload   interface{}
}

type header struct {
	Type      string  `json:"type"`
	MsgID     *uint64 `json:"msg_id,omitempty"`
	InReplyTo *uint64 `json:"in_reply_to,omitempty"`
}

// NewRequest builds a request from src to dest carrying a fresh msg_id.
func NewRequest(src, dest, typ string, msgID uint64, payload interface{}) Message {
	return Message{
		Src:  src,
		Dest: dest,
		Body: Body{
			Type:    typ,
			MsgID:   Uint64(msgID),
			Payload: payload,
		},
	}
}

// Reply builds a response to req. The response is addressed back to the
// requester and correlated through in_reply_to. Replies to requests that did
// not carry a msg_id are uncorrelated.
func Reply(req Message, msgID uint64, typ string, payload interface{}) Message {
	resp := Message{
		Src:  req.Dest,
		Dest: req.Src,
		Body: Body{
			Type:    typ,
			MsgID:   Uint64(msgID),
			Payload: payload,
		},
	}
	if req.Body.MsgID != nil {
		resp.Body.InReplyTo = Uint64(*req.Body.MsgID)
	}
	return resp
}

// ErrorReply builds an error response to req.
func ErrorReply(req Message, msgID uint64, code int, text string) Message {
	return Reply(req, msgID, TypeError, &Error{Code: code, Text: text})
}

// Uint64 returns a pointer to a copy of v.
func Uint64(v uint64) *uint64 {
	return &v
}

// IsReply reports whether the body answers another message.
func (b Body) IsReply() bool {
	return b.InReplyTo != nil
}

// ID returns the msg_id, or 0 when it is not set.
func (b Body) ID() uint64 {
	if b.MsgID == nil {
		return 0
	}
	return *b.MsgID
}

// ReplyTo returns in_reply_to, or 0 when it is not set.
func (b Body) ReplyTo() uint64 {
	if b.InReplyTo == nil {
		return 0
	}
	return *b.InReplyTo
}

// MarshalJSON flattens the header and the payload into one object.
func (b Body) MarshalJSON() ([]byte, error) {
	if b.Type == "" {
		return nil, ErrMissingType
	}

	hdr, err := json.Marshal(header{
		Type:      b.Type,
		MsgID:     b.MsgID,
		InReplyTo: b.InReplyTo,
	})
	if err != nil {
		return nil, err
	}

	if b.Payload == nil {
		return hdr, nil
	}

	pl, err := json.Marshal(b.Payload)
	if err != nil {
		return nil, err
	}

	pl = bytes.TrimSpace(pl)
	if len(pl) < 2 || pl[0] != '{' {
		return nil, fmt.Errorf("%s payload must encode to a JSON object, got %s", b.Type, pl)
	}
	if bytes.Equal(pl, []byte("{}")) {
		return hdr, nil
	}

	//splice: {"type":...} + {"field":...} => {"type":...,"field":...}
	out := make([]byte, 0, len(hdr)+len(pl))
	out = append(out, hdr[:len(hdr)-1]...)
	out = append(out, ',')
	out = append(out, pl[1:]...)

	return out, nil
}

// UnmarshalJSON reads the header then decodes the payload into the struct
// registered for the kind. Unregistered kinds keep their raw JSON.
func (b *Body) UnmarshalJSON(data []byte) error {
	var hdr header
	if err := json.Unmarshal(data, &hdr); err != nil {
		return err
	}
	if hdr.Type == "" {
		return ErrMissingType
	}

	b.Type = hdr.Type
	b.MsgID = hdr.MsgID
	b.InReplyTo = hdr.InReplyTo
	b.Payload = nil

	factory, ok := lookup(hdr.Type)
	if !ok {
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		b.Payload = raw
		return nil
	}

	if factory == nil {
		return nil
	}

	payload := factory()
	if err := json.Unmarshal(data, payload); err != nil {
		return fmt.Errorf("decoding %s payload: %v", hdr.Type, err)
	}
	b.Payload = payload

	return nil
}

// Encode marshals msg as a single line, without the trailing newline.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode parses one line into a Message.
func Decode(line []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, err
	}
	if msg.Body.Type == "" {
		return Message{}, ErrMissingType
	}
	return msg, nil
}
