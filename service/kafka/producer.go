package kafka

import (
	"context"
	"encoding/json"

	"PPChat/module/chat/model"
	"PPChat/service/storage"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// Publisher 同步写 Kafka；key 用会话键，同一会话的消息落到同一分区。
type Publisher struct {
	prod   sarama.SyncProducer
	client sarama.Client
	topic  string
}

func NewPublisherWithProducer(prod sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{prod: prod, topic: topic}
}

// Open 建 client，确保 topic 存在，再起同步生产者。
func Open(c Config, log *zap.Logger) (*Publisher, error) {
	client, err := sarama.NewClient(c.Brokers, BuildConfig(c))
	if err != nil {
		return nil, err
	}
	admin, err := sarama.NewClusterAdminFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := EnsureTopic(admin, c.Topic, c, log); err != nil {
		_ = client.Close()
		return nil, err
	}
	prod, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Publisher{prod: prod, client: client, topic: c.Topic}, nil
}

func (p *Publisher) Publish(ctx context.Context, msg model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, _, err = p.prod.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(storage.DMKey(msg.SenderID, msg.ReceiverID)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("message-id"), Value: []byte(msg.MessageID)},
		},
	})
	return err
}

func (p *Publisher) Close() error {
	err := p.prod.Close()
	if p.client != nil && !p.client.Closed() {
		if cerr := p.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
