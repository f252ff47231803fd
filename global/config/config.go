package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"PPChat/tools"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var Global = Default()

// Default 返回进程内置的默认配置：全部内存实现，可直接本地启动。
func Default() AppConfig {
	return AppConfig{
		Node: NodeConfig{
			NodeType:  NodeTypeMsgGateWay,
			NodeId:    "gateway_01",
			Snowflake: 100,
		},
		HTTP: HTTPConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Grpc: GrpcConfig{Addr: ":50051"},
		Gateway: GatewayConfig{
			SendQueueSize:    256,
			WriteWait:        10 * time.Second,
			PongWait:         60 * time.Second,
			PingInterval:     54 * time.Second,
			MaxMessageBytes:  64 << 10,
			MaxContentRunes:  4000,
			ObserverTimeout:  2 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Jwt:      JwtConfig{Alg: "HS256", TTL: 2 * time.Hour},
		Identity: IdentityConfig{Driver: DriverMemory, CacheTTL: 5 * time.Minute},
		Postgres: PostgresConfig{MaxConns: 10},
		Storage:  StorageConfig{Driver: DriverMemory},
		Mongo: MongoConfig{
			Uri:         "mongodb://localhost:27017",
			Database:    "ppchat",
			Collection:  "messages",
			MaxPoolSize: 20,
			MaxRetry:    3,
		},
		Events: EventsConfig{Driver: DriverNone},
		Nats:   NatsConfig{Servers: []string{"nats://127.0.0.1:4222"}, Name: "ppchat-gateway", Subject: "chat.message.created", PresenceSubject: "chat.presence"},
		Kafka:  KafkaConfig{Brokers: []string{"127.0.0.1:9092"}, ClientID: "ppchat-gateway", Topic: "chat_message_created"},
		Log:    LogConfig{Level: "info"},
		Nacos:  NacosConfig{DataID: "ppchat-gateway.yaml", Group: "DEFAULT_GROUP"},
	}
}

// Load 构造配置：默认值 -> yaml 文件(path 或 CHAT_CONFIG) -> nacos(配置了 nacos.addr 时)
// -> 环境变量，最后校验。
func Load(path string) (AppConfig, error) {
	return load(path, dialNacos)
}

func load(path string, dial func(NacosConfig) (remoteConfigClient, error)) (AppConfig, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("CHAT_CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}
	applyEnv(&cfg)
	if cfg.Nacos.Addr != "" {
		cli, err := dial(cfg.Nacos)
		if err != nil {
			return cfg, err
		}
		if cfg, err = overlayRemote(cfg, cli); err != nil {
			return cfg, err
		}
		applyEnv(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	cfg.HTTP.Addr = tools.GetEnv("CHAT_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Grpc.Addr = tools.GetEnv("CHAT_GRPC_ADDR", cfg.Grpc.Addr)
	cfg.Jwt.Secret = tools.GetEnv("CHAT_JWT_SECRET", cfg.Jwt.Secret)
	cfg.Log.Level = tools.GetEnv("CHAT_LOG_LEVEL", cfg.Log.Level)
	cfg.Nacos.Addr = tools.GetEnv("CHAT_NACOS_ADDR", cfg.Nacos.Addr)
	if origins := tools.SplitList(tools.GetEnv("CHAT_ALLOWED_ORIGINS", "")); len(origins) > 0 {
		cfg.HTTP.AllowedOrigins = origins
	}
	cfg.Gateway.AllowQueryIdentity = tools.GetEnvBool("CHAT_ALLOW_QUERY_IDENTITY", cfg.Gateway.AllowQueryIdentity)

	if dsn := tools.GetEnv("DATABASE_URL", ""); dsn != "" {
		cfg.Postgres.DSN = dsn
		cfg.Identity.Driver = DriverPostgres
	}
	if uri := tools.GetEnv("MONGO_URI", ""); uri != "" {
		cfg.Mongo.Uri = uri
		cfg.Storage.Driver = DriverMongo
	}
	cfg.Redis.Addr = tools.GetEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = tools.GetEnv("REDIS_PASSWORD", cfg.Redis.Password)

	if servers := tools.SplitList(tools.GetEnv("NATS_URL", "")); len(servers) > 0 {
		cfg.Nats.Servers = servers
		cfg.Events.Driver = DriverNats
	}
	if brokers := tools.SplitList(tools.GetEnv("KAFKA_BROKERS", "")); len(brokers) > 0 {
		cfg.Kafka.Brokers = brokers
		cfg.Events.Driver = DriverKafka
	}
}

// Validate 检查取值范围与各 driver 所需的连接参数。
func (c AppConfig) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if c.HTTP.Addr == "" {
		add("http.addr is required")
	}
	// 没有 secret 时 /chat 全部 401，ws 也只能拒绝握手
	if c.Jwt.Secret == "" && !c.Gateway.AllowQueryIdentity {
		add("jwt.secret is required unless gateway.allow_query_identity is set")
	}
	if c.Node.Snowflake < 0 || c.Node.Snowflake > 1023 {
		add("node.snowflake %d out of range [0,1023]", c.Node.Snowflake)
	}
	g := c.Gateway
	if g.SendQueueSize <= 0 {
		add("gateway.send_queue_size must be positive")
	}
	if g.WriteWait <= 0 || g.PongWait <= 0 || g.PingInterval <= 0 || g.HandshakeTimeout <= 0 {
		add("gateway timings must be positive")
	}
	if g.PingInterval >= g.PongWait {
		add("gateway.ping_interval (%s) must be shorter than pong_wait (%s)", g.PingInterval, g.PongWait)
	}
	if g.MaxMessageBytes <= 0 {
		add("gateway.max_message_bytes must be positive")
	}
	if g.MaxContentRunes <= 0 {
		add("gateway.max_content_runes must be positive")
	}

	switch c.Identity.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			add("postgres.dsn is required for identity driver postgres")
		}
	default:
		add("identity.driver %q unknown", c.Identity.Driver)
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Mongo.Uri == "" || c.Mongo.Database == "" {
			add("mongo.uri and mongo.database are required for storage driver mongo")
		}
	default:
		add("storage.driver %q unknown", c.Storage.Driver)
	}
	switch c.Events.Driver {
	case DriverNone, "":
	case DriverNats:
		if len(c.Nats.Servers) == 0 || c.Nats.Subject == "" {
			add("nats.servers and nats.subject are required for events driver nats")
		}
	case DriverKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			add("kafka.brokers and kafka.topic are required for events driver kafka")
		}
	default:
		add("events.driver %q unknown", c.Events.Driver)
	}

	if len(problems) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
