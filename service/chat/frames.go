package chat

import (
	"encoding/json"
	"fmt"

	"PPChat/module/chat/model"
	"PPChat/tools/decode"
	"PPChat/tools/errs"
)

const (
	FrameTypePresence    = "presence"
	FrameTypeMessage     = "message"
	FrameTypeAck         = "ack"
	FrameTypeError       = "error"
	FrameTypeSendMessage = "send-message"
)

// Frame is the wire envelope. ID is set by clients on requests and echoed on replies.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// SendMessageRequest is the payload of an inbound send-message frame.
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// AckPayload answers a send-message request once the message is durable.
type AckPayload struct {
	MessageID string          `json:"messageId"`
	Delivery  DeliveryOutcome `json:"delivery"`
}

// ErrorPayload answers a request that failed.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorPayload(err error) ErrorPayload {
	ce := errs.As(err)
	msg := ce.Msg
	if ce.Detail != "" {
		msg += ": " + ce.Detail
	}
	return ErrorPayload{Code: ce.Code, Message: msg}
}

// EncodeFrame wraps v in its typed envelope.
func EncodeFrame(v any) ([]byte, error) {
	return EncodeReply("", v)
}

// EncodeReply is EncodeFrame with the request id echoed back.
func EncodeReply(requestID string, v any) ([]byte, error) {
	typ, err := frameType(v)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(err, "marshal payload")
	}
	return json.Marshal(Frame{Type: typ, ID: requestID, Payload: payload})
}

func frameType(v any) (string, error) {
	switch v.(type) {
	case model.PresenceEvent, *model.PresenceEvent:
		return FrameTypePresence, nil
	case model.Message, *model.Message:
		return FrameTypeMessage, nil
	case AckPayload, *AckPayload:
		return FrameTypeAck, nil
	case ErrorPayload, *ErrorPayload:
		return FrameTypeError, nil
	case SendMessageRequest, *SendMessageRequest:
		return FrameTypeSendMessage, nil
	default:
		return "", fmt.Errorf("no frame type for %T", v)
	}
}

// ParseFrame reads the envelope only.
func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, errs.ErrArgs.WrapMsg("malformed frame", "err", err)
	}
	if f.Type == "" {
		return f, errs.ErrArgs.WrapMsg("frame type is required")
	}
	return f, nil
}

// DecodeFrame parses raw and returns the typed payload selected by the type field:
// model.PresenceEvent, model.Message, AckPayload, ErrorPayload or SendMessageRequest.
func DecodeFrame(raw []byte) (any, error) {
	f, err := ParseFrame(raw)
	if err != nil {
		return nil, err
	}
	return f.Decode()
}

func (f Frame) Decode() (any, error) {
	switch f.Type {
	case FrameTypePresence:
		var ev model.PresenceEvent
		if err := unmarshalPayload(f, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case FrameTypeMessage:
		var msg model.Message
		if err := unmarshalPayload(f, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case FrameTypeAck:
		var ack AckPayload
		if err := unmarshalPayload(f, &ack); err != nil {
			return nil, err
		}
		return ack, nil
	case FrameTypeError:
		var e ErrorPayload
		if err := unmarshalPayload(f, &e); err != nil {
			return nil, err
		}
		return e, nil
	case FrameTypeSendMessage:
		req, err := decode.DecodeJSON[SendMessageRequest](f.Payload)
		if err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad send-message payload", "err", err)
		}
		return *req, nil
	default:
		return nil, errs.ErrArgs.WrapMsg("unknown frame type", "type", f.Type)
	}
}

func unmarshalPayload(f Frame, out any) error {
	if len(f.Payload) == 0 {
		return errs.ErrArgs.WrapMsg("frame payload is required", "type", f.Type)
	}
	if err := json.Unmarshal(f.Payload, out); err != nil {
		return errs.ErrArgs.WrapMsg("bad frame payload", "type", f.Type, "err", err)
	}
	return nil
}
