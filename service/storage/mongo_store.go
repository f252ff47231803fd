package storage

import (
	"context"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const MsgTableName = "messages" // 集合名

// msgDoc 消息文档；conv_key 把两个方向的消息归到同一会话，便于按会话分页。
type msgDoc struct {
	ID         string    `bson:"_id"`
	ConvKey    string    `bson:"conv_key"`
	SenderID   string    `bson:"sender_id"`
	ReceiverID string    `bson:"receiver_id"`
	Content    string    `bson:"content"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d msgDoc) toModel() model.Message {
	return model.Message{
		MessageID:  d.ID,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Content:    d.Content,
		CreatedAt:  d.CreatedAt,
	}
}

// DBProvider returns the current database; mgo.Manager.DB satisfies it.
type DBProvider func() (*mongo.Database, error)

// MongoStore persists messages in MongoDB.
type MongoStore struct {
	db         DBProvider
	collection string
	now        func() time.Time
}

func NewMongoStore(db DBProvider, collection string) *MongoStore {
	if collection == "" {
		collection = MsgTableName
	}
	return &MongoStore{db: db, collection: collection, now: time.Now}
}

func (s *MongoStore) coll() (*mongo.Collection, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	return db.Collection(s.collection), nil
}

// EnsureIndexes creates the conversation index used by QueryHistory.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	c, err := s.coll()
	if err != nil {
		return err
	}
	_, err = c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conv_key", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("conv_created"),
	})
	return errs.Wrap(err, "create conv_created index")
}

func (s *MongoStore) Persist(ctx context.Context, senderID, receiverID model.UserID, content string) (model.Message, error) {
	c, err := s.coll()
	if err != nil {
		return model.Message{}, err
	}
	// mongo stores millisecond precision; truncate so the returned value matches reads
	doc := msgDoc{
		ID:         uuid.NewString(),
		ConvKey:    DMKey(senderID, receiverID),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := c.InsertOne(ctx, doc); err != nil {
		return model.Message{}, errs.WrapMsg(err, "insert message", "sender", senderID, "receiver", receiverID)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) QueryHistory(ctx context.Context, userA, userB model.UserID, page, limit int) (model.HistoryPage, error) {
	page, limit = model.NormalizePage(page, limit)
	c, err := s.coll()
	if err != nil {
		return model.HistoryPage{}, err
	}

	filter := bson.M{
		"conv_key": DMKey(userA, userB),
		"$or": bson.A{
			bson.M{"sender_id": userA, "receiver_id": userB},
			bson.M{"sender_id": userB, "receiver_id": userA},
		},
	}
	total, err := c.CountDocuments(ctx, filter)
	if err != nil {
		return model.HistoryPage{}, errs.Wrap(err, "count messages")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return model.HistoryPage{}, errs.Wrap(err, "find messages")
	}
	defer cur.Close(ctx)

	var docs []msgDoc
	if err := cur.All(ctx, &docs); err != nil {
		return model.HistoryPage{}, errs.Wrap(err, "decode messages")
	}
	items := make([]model.Message, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toModel())
	}
	return model.HistoryPage{Items: items, Meta: model.NewHistoryMeta(page, limit, total)}, nil
}
