package config

import "time"

const NodeTypeMsgGateWay = "msgGateWay" // 网关节点

// Driver names accepted by the identity / storage / events sections.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverNone     = "none"
	DriverNats     = "nats"
	DriverKafka    = "kafka"
)

type AppConfig struct {
	Node     NodeConfig     `yaml:"node"`
	HTTP     HTTPConfig     `yaml:"http"`
	Grpc     GrpcConfig     `yaml:"grpc"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Jwt      JwtConfig      `yaml:"jwt"`
	Identity IdentityConfig `yaml:"identity"`
	Postgres PostgresConfig `yaml:"postgres"`
	Storage  StorageConfig  `yaml:"storage"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Redis    RedisConfig    `yaml:"redis"`
	Events   EventsConfig   `yaml:"events"`
	Nats     NatsConfig     `yaml:"nats"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Log      LogConfig      `yaml:"log"`
	Nacos    NacosConfig    `yaml:"nacos"`
}

type NodeConfig struct {
	NodeType  string `yaml:"node_type"`
	NodeId    string `yaml:"node_id"`   // 节点ID
	Snowflake int64  `yaml:"snowflake"` // 0~1023
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // 空则不校验 Origin
}

type GrpcConfig struct {
	Addr string `yaml:"addr"` // 健康检查端口，空则不启动
}

type GatewayConfig struct {
	SendQueueSize      int           `yaml:"send_queue_size"`
	WriteWait          time.Duration `yaml:"write_wait"`
	PongWait           time.Duration `yaml:"pong_wait"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	MaxMessageBytes    int64         `yaml:"max_message_bytes"`
	AllowQueryIdentity bool          `yaml:"allow_query_identity"` // 允许 ?userId= 直接声明身份（仅开发环境）
	MaxContentRunes    int           `yaml:"max_content_runes"`
	ObserverTimeout    time.Duration `yaml:"observer_timeout"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
}

type JwtConfig struct {
	Secret string        `yaml:"secret"`
	Alg    string        `yaml:"alg"`
	TTL    time.Duration `yaml:"ttl"`
}

type IdentityConfig struct {
	Driver   string        `yaml:"driver"`
	CacheTTL time.Duration `yaml:"cache_ttl"` // 0 关闭 redis 缓存
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
}

type MongoConfig struct {
	Uri         string `yaml:"uri"`
	Database    string `yaml:"database"`
	Collection  string `yaml:"collection"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	MaxPoolSize int    `yaml:"max_pool_size"`
	MaxRetry    int    `yaml:"max_retry"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // 空则不连接 redis
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type EventsConfig struct {
	Driver string `yaml:"driver"`
}

type NatsConfig struct {
	Servers         []string `yaml:"servers"`
	Name            string   `yaml:"name"`
	Subject         string   `yaml:"subject"`
	PresenceSubject string   `yaml:"presence_subject"` // empty: presence is not published
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"client_id"`
	Topic    string   `yaml:"topic"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// NacosConfig 远程配置中心；Addr 为空则只用本地文件和环境变量。
type NacosConfig struct {
	Addr      string `yaml:"addr"` // host:port
	Namespace string `yaml:"namespace"`
	DataID    string `yaml:"data_id"`
	Group     string `yaml:"group"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	// 网关实例注册到 nacos 服务发现，ServiceName 为空则不注册
	ServiceName string `yaml:"service_name"`
	AdvertiseIP string `yaml:"advertise_ip"`
}
