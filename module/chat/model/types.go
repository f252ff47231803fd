package model

import "time"

// UserID 账号的稳定标识，不透明。
type UserID = string

// HandleID 一条在线连接的标识（一个浏览器标签页/一台设备）。
type HandleID = string

// User 由身份解析器返回的用户主档快照。
type User struct {
	UserID UserID `json:"userId" bson:"user_id"`
	Name   string `json:"name" bson:"name"`
}

// Message 一条已落库的单聊消息，构造后不可修改。
type Message struct {
	MessageID  string    `json:"messageId" bson:"_id"`
	SenderID   UserID    `json:"senderId" bson:"sender_id"`
	ReceiverID UserID    `json:"receiverId" bson:"receiver_id"`
	Content    string    `json:"content" bson:"content"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}

// Persisted reports whether the store has assigned an id.
func (m Message) Persisted() bool { return m.MessageID != "" }

// PresenceEvent 上下线通知，只广播不落库。
type PresenceEvent struct {
	UserID    UserID    `json:"userId"`
	IsOnline  bool      `json:"isOnline"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceStatus 查询接口返回的在线状态。LastSeen 只在有观察者记录时非空。
type PresenceStatus struct {
	UserID   UserID     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}
