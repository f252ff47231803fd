package global

import (
	"context"
	"errors"
	"time"

	"PPChat/data/database/mgo/mongoutil"
	"PPChat/global/config"
	chatsvc "PPChat/service/chat"
	"PPChat/service/identity"
	"PPChat/service/kafka"
	mgoSrv "PPChat/service/mgo"
	"PPChat/service/natsx"
	"PPChat/service/storage"
	redisx "PPChat/service/storage/redis"
	"PPChat/tools/ids"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Components 各 driver 装配出来的依赖，Close 逆序释放。
type Components struct {
	Resolver   chatsvc.IdentityResolver
	Store      chatsvc.MessageStore
	Publishers []chatsvc.EventPublisher
	Observers  []chatsvc.PresenceObserver
	LastSeen   chatsvc.LastSeenReader
	Directory  chatsvc.PresenceDirectory

	closers []func(ctx context.Context) error
}

func (c *Components) onClose(f func(ctx context.Context) error) { c.closers = append(c.closers, f) }

func (c *Components) Close(ctx context.Context) error {
	var errList []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errList = append(errList, err)
		}
	}
	c.closers = nil
	return errors.Join(errList...)
}

// ConfigAll 按配置装配全部 driver；中途失败会释放已建立的连接。
func ConfigAll(ctx context.Context, cfg config.AppConfig, log *zap.Logger) (*Components, error) {
	ConfigIds(cfg)
	comps := &Components{}

	rdb, err := ConfigRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		comps.onClose(func(context.Context) error { return rdb.Close() })
		mirror := storage.NewPresenceMirror(rdb, cfg.Node.NodeId, 0)
		comps.Observers = append(comps.Observers, mirror)
		comps.LastSeen = mirror
		comps.Directory = mirror
	}

	steps := []func() error{
		func() error { return ConfigIdentity(ctx, cfg, rdb, log, comps) },
		func() error { return ConfigMgo(ctx, cfg, log, comps) },
		func() error { return ConfigEvents(cfg, log, comps) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			_ = comps.Close(context.Background())
			return nil, err
		}
	}
	return comps, nil
}

func ConfigIds(cfg config.AppConfig) {
	ids.SetNodeID(cfg.Node.Snowflake)
}

// ConfigRedis 未配置地址时返回 nil，不算错误
func ConfigRedis(ctx context.Context, cfg config.AppConfig) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	return redisx.Open(ctx, redisx.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
}

func ConfigIdentity(ctx context.Context, cfg config.AppConfig, rdb *redis.Client, log *zap.Logger, comps *Components) error {
	var resolver identity.Resolver
	switch cfg.Identity.Driver {
	case config.DriverPostgres:
		pool, err := identity.OpenPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return err
		}
		comps.onClose(func(context.Context) error { pool.Close(); return nil })
		resolver = identity.NewPostgresResolver(pool)
	default:
		log.Warn("identity driver memory: every user id is accepted")
		resolver = identity.AcceptAll{}
	}
	if rdb != nil && cfg.Identity.CacheTTL > 0 && cfg.Identity.Driver == config.DriverPostgres {
		resolver = identity.NewCachedResolver(resolver, rdb, cfg.Identity.CacheTTL, log.Named("identity"))
	}
	comps.Resolver = resolver
	return nil
}

// ConfigMgo 异步连接 mongo；就绪前的写入返回 ErrNotReady，由 service 映射成持久化失败。
func ConfigMgo(ctx context.Context, cfg config.AppConfig, log *zap.Logger, comps *Components) error {
	if cfg.Storage.Driver != config.DriverMongo {
		comps.Store = storage.NewMemoryStore()
		return nil
	}
	mc := &mongoutil.Config{
		Uri:         cfg.Mongo.Uri,
		Database:    cfg.Mongo.Database,
		Username:    cfg.Mongo.Username,
		Password:    cfg.Mongo.Password,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
		MaxRetry:    cfg.Mongo.MaxRetry,
	}
	if err := mc.ValidateAndSetDefaults(); err != nil {
		return err
	}
	mctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	mgr := mgoSrv.NewManager(mc, log.Named("mongo"))
	mgr.Start(mctx)
	comps.onClose(func(ctx context.Context) error {
		cancel()
		select {
		case <-mgr.Stopped():
		case <-ctx.Done():
		}
		return nil
	})

	store := storage.NewMongoStore(mgr.DB, cfg.Mongo.Collection)
	go func() {
		wctx, wcancel := context.WithTimeout(mctx, time.Minute)
		defer wcancel()
		if err := mgr.WaitReady(wctx); err != nil {
			log.Warn("mongo not ready yet", zap.Error(err))
			return
		}
		if err := store.EnsureIndexes(wctx); err != nil {
			log.Error("mongo ensure indexes", zap.Error(err))
		}
	}()
	comps.Store = store
	return nil
}

func ConfigEvents(cfg config.AppConfig, log *zap.Logger, comps *Components) error {
	switch cfg.Events.Driver {
	case config.DriverNats:
		nc, err := natsx.Connect(natsx.Config{Servers: cfg.Nats.Servers, Name: cfg.Nats.Name}, log.Named("nats"))
		if err != nil {
			return err
		}
		comps.onClose(func(context.Context) error { return nc.Drain() })
		comps.Publishers = append(comps.Publishers, natsx.NewPublisher(nc, cfg.Nats.Subject))
		if cfg.Nats.PresenceSubject != "" {
			comps.Observers = append(comps.Observers, natsx.NewPresencePublisher(nc, cfg.Nats.PresenceSubject))
		}
	case config.DriverKafka:
		p, err := kafka.Open(kafka.Config{Brokers: cfg.Kafka.Brokers, ClientID: cfg.Kafka.ClientID, Topic: cfg.Kafka.Topic}, log.Named("kafka"))
		if err != nil {
			return err
		}
		comps.onClose(func(context.Context) error { return p.Close() })
		comps.Publishers = append(comps.Publishers, p)
	}
	return nil
}
