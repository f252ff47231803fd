package natsx

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"PPChat/module/chat/model"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

type captureConn struct {
	msgs []*nats.Msg
	err  error
}

func (c *captureConn) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	req := require.New(t)
	conn := &captureConn{}
	p := NewPublisher(conn, "chat.message.created")

	msg := model.Message{MessageID: "m1", SenderID: "a", ReceiverID: "b", Content: "hi", CreatedAt: time.Now().UTC()}
	req.NoError(p.Publish(context.Background(), msg))

	req.Len(conn.msgs, 1)
	got := conn.msgs[0]
	req.Equal("chat.message.created", got.Subject)
	req.Equal("m1", got.Header.Get(HeaderMsgID))
	req.Equal("b", got.Header.Get(HeaderReceiver))

	var decoded model.Message
	req.NoError(json.Unmarshal(got.Data, &decoded))
	req.Equal("hi", decoded.Content)
}

func TestPublisher_Errors(t *testing.T) {
	req := require.New(t)
	conn := &captureConn{err: nats.ErrConnectionClosed}
	p := NewPublisher(conn, "s")

	err := p.Publish(context.Background(), model.Message{MessageID: "m1"})
	req.True(errors.Is(err, nats.ErrConnectionClosed))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req.ErrorIs(p.Publish(ctx, model.Message{MessageID: "m1"}), context.Canceled)
}

func TestPresencePublisher_Observe(t *testing.T) {
	req := require.New(t)
	conn := &captureConn{}
	p := NewPresencePublisher(conn, "chat.presence")

	req.NoError(p.Observe(context.Background(), model.PresenceEvent{UserID: "a", IsOnline: false, Timestamp: time.Now()}))
	req.Len(conn.msgs, 1)
	req.Equal("a", conn.msgs[0].Header.Get(HeaderUser))
	req.Equal("false", conn.msgs[0].Header.Get(HeaderOnline))
}
