package natsx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"PPChat/module/chat/model"

	"github.com/nats-io/nats.go"
)

const (
	HeaderMsgID    = nats.MsgIdHdr // Nats-Msg-Id, JetStream 去重
	HeaderSender   = "X-Sender-Id"
	HeaderReceiver = "X-Receiver-Id"
	HeaderUser     = "X-User-Id"
	HeaderOnline   = "X-Online"
)

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Publisher 把已落库的消息发到 NATS subject
type Publisher struct {
	nc      msgPublisher
	subject string
}

func NewPublisher(nc msgPublisher, subject string) *Publisher {
	return &Publisher{nc: nc, subject: subject}
}

func (p *Publisher) Publish(ctx context.Context, msg model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	m := nats.NewMsg(p.subject)
	m.Data = data
	m.Header.Set(HeaderMsgID, msg.MessageID)
	m.Header.Set(HeaderSender, msg.SenderID)
	m.Header.Set(HeaderReceiver, msg.ReceiverID)
	if err := p.nc.PublishMsg(m); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// PresencePublisher 把上下线事件广播给其他节点
type PresencePublisher struct {
	nc      msgPublisher
	subject string
}

func NewPresencePublisher(nc msgPublisher, subject string) *PresencePublisher {
	return &PresencePublisher{nc: nc, subject: subject}
}

func (p *PresencePublisher) Observe(ctx context.Context, ev model.PresenceEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	m := nats.NewMsg(p.subject)
	m.Data = data
	m.Header.Set(HeaderUser, ev.UserID)
	m.Header.Set(HeaderOnline, strconv.FormatBool(ev.IsOnline))
	if err := p.nc.PublishMsg(m); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}
