package chat

import (
	"PPChat/module/chat/model"

	"go.uber.org/zap"
)

// ParticipantOutcome is what happened for one side of a message. Queued means the frame
// reached the connection's send queue; it is never a transport acknowledgment.
type ParticipantOutcome struct {
	UserID    model.UserID `json:"userId"`
	Online    bool         `json:"online"`
	Attempted bool         `json:"attempted"`
	Queued    bool         `json:"queued"`
	Error     string       `json:"error,omitempty"`
	Err       error        `json:"-"`
}

// DeliveryOutcome reports live delivery of one persisted message.
type DeliveryOutcome struct {
	MessageID string             `json:"messageId"`
	Sender    ParticipantOutcome `json:"sender"`
	Receiver  ParticipantOutcome `json:"receiver"`
	// FallbackToStorage is set when neither participant had a live connection.
	FallbackToStorage bool `json:"fallbackToStorage"`
	// ReceiverFallback is set when the receiver will only see the message through history.
	ReceiverFallback bool `json:"receiverFallback"`
}

// Router pushes persisted messages to the live connections of both participants.
type Router struct {
	reg *Registry
	log *zap.Logger
}

func NewRouter(reg *Registry, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{reg: reg, log: log}
}

// Route never blocks and never fails: push errors are reported in the outcome only.
func (r *Router) Route(msg model.Message) DeliveryOutcome {
	out := DeliveryOutcome{
		MessageID: msg.MessageID,
		Sender:    ParticipantOutcome{UserID: msg.SenderID},
		Receiver:  ParticipantOutcome{UserID: msg.ReceiverID},
	}
	if !msg.Persisted() {
		out.FallbackToStorage = true
		out.ReceiverFallback = true
		return out
	}

	sh, senderOnline := r.reg.Lookup(msg.SenderID)
	rh, receiverOnline := r.reg.Lookup(msg.ReceiverID)
	out.Sender.Online = senderOnline
	out.Receiver.Online = receiverOnline

	if !senderOnline && !receiverOnline {
		out.FallbackToStorage = true
		out.ReceiverFallback = true
		return out
	}

	frame, err := EncodeFrame(msg)
	if err != nil {
		r.log.Error("encode message frame", zap.String("msg", msg.MessageID), zap.Error(err))
		out.Sender.Err, out.Receiver.Err = err, err
		out.Sender.Error, out.Receiver.Error = err.Error(), err.Error()
		out.ReceiverFallback = true
		return out
	}

	if receiverOnline {
		out.Receiver = r.push(out.Receiver, rh, frame)
	}
	if senderOnline {
		if receiverOnline && sh.ID() == rh.ID() {
			// same connection, already pushed
			out.Sender.Attempted = out.Receiver.Attempted
			out.Sender.Queued = out.Receiver.Queued
			out.Sender.Err = out.Receiver.Err
			out.Sender.Error = out.Receiver.Error
		} else {
			out.Sender = r.push(out.Sender, sh, frame)
		}
	}
	out.ReceiverFallback = !out.Receiver.Queued
	return out
}

func (r *Router) push(p ParticipantOutcome, h Handle, frame []byte) ParticipantOutcome {
	p.Attempted = true
	if err := h.Push(frame); err != nil {
		p.Err = err
		p.Error = err.Error()
		r.log.Debug("message push failed", zap.String("user", p.UserID), zap.String("handle", h.ID()), zap.Error(err))
		return p
	}
	p.Queued = true
	return p
}
