package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"PPChat/module/chat/model"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func TestPublisher_Publish(t *testing.T) {
	req := require.New(t)
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var m model.Message
		if err := json.Unmarshal(val, &m); err != nil {
			return err
		}
		if m.MessageID != "m1" || m.Content != "hi" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := NewPublisherWithProducer(sp, "chat_message_created")
	req.NoError(p.Publish(context.Background(), model.Message{MessageID: "m1", SenderID: "a", ReceiverID: "b", Content: "hi"}))
	req.NoError(p.Close())
}

func TestPublisher_SendFails(t *testing.T) {
	req := require.New(t)
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisherWithProducer(sp, "t")
	err := p.Publish(context.Background(), model.Message{MessageID: "m1", SenderID: "a", ReceiverID: "b"})
	req.ErrorIs(err, sarama.ErrOutOfBrokers)
	req.NoError(p.Close())
}

type fakeAdmin struct {
	existing   map[string]int
	created    map[string]*sarama.TopicDetail
	expandedTo map[string]int32
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{existing: map[string]int{}, created: map[string]*sarama.TopicDetail{}, expandedTo: map[string]int32{}}
}

func (f *fakeAdmin) DescribeTopics(topics []string) ([]*sarama.TopicMetadata, error) {
	out := make([]*sarama.TopicMetadata, 0, len(topics))
	for _, t := range topics {
		n, ok := f.existing[t]
		if !ok {
			out = append(out, &sarama.TopicMetadata{Name: t, Err: sarama.ErrUnknownTopicOrPartition})
			continue
		}
		out = append(out, &sarama.TopicMetadata{Name: t, Err: sarama.ErrNoError, Partitions: make([]*sarama.PartitionMetadata, n)})
	}
	return out, nil
}

func (f *fakeAdmin) CreateTopic(topic string, detail *sarama.TopicDetail, _ bool) error {
	f.created[topic] = detail
	return nil
}

func (f *fakeAdmin) CreatePartitions(topic string, count int32, _ [][]int32, _ bool) error {
	f.expandedTo[topic] = count
	return nil
}

func TestEnsureTopic(t *testing.T) {
	req := require.New(t)
	admin := newFakeAdmin()
	admin.existing["small"] = 2
	admin.existing["big"] = 16

	// Given a missing topic, When ensured, Then it is created with the configured layout
	req.NoError(EnsureTopic(admin, "missing", Config{Partitions: 4, ReplicationFactor: 3}, nil))
	req.Contains(admin.created, "missing")
	req.Equal(int32(4), admin.created["missing"].NumPartitions)
	req.Equal("2", *admin.created["missing"].ConfigEntries["min.insync.replicas"])

	// Given too few partitions, Then the topic is expanded
	req.NoError(EnsureTopic(admin, "small", Config{Partitions: 8}, nil))
	req.Equal(int32(8), admin.expandedTo["small"])

	// Given enough partitions, Then nothing changes
	req.NoError(EnsureTopic(admin, "big", Config{Partitions: 8}, nil))
	req.NotContains(admin.expandedTo, "big")
	req.NotContains(admin.created, "big")
}
