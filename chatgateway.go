package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"PPChat/global"
	"PPChat/global/config"
	"PPChat/logger"
	mid "PPChat/middleware"
	midsec "PPChat/middleware/security"
	chatapi "PPChat/module/chat"
	"PPChat/service/chat"
	"PPChat/service/nacos"
	"PPChat/tools/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	cfgPath := flag.String("config", "", "yaml config file (falls back to $CHAT_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	config.Global = cfg
	logger.SetLevel(cfg.Log.Level)
	defer logger.Sync()
	log := logger.L()

	if err := run(cfg, log); err != nil {
		log.Error("gateway exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) 外部依赖
	comps, err := global.ConfigAll(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := comps.Close(cctx); err != nil {
			log.Warn("close components", zap.Error(err))
		}
	}()

	// 配置中心只热更日志级别，其余改动需重启
	stopWatch, err := config.Watch(cfg, func(next config.AppConfig) {
		logger.SetLevel(next.Log.Level)
		log.Info("remote config changed", zap.String("log.level", next.Log.Level))
	}, func(err error) {
		log.Warn("remote config rejected", zap.Error(err))
	})
	if err != nil {
		return err
	}
	defer stopWatch()

	// 2) 核心：registry / broadcaster / router / gateway / service
	reg := chat.NewRegistry()
	bc := chat.NewBroadcaster(reg, log.Named("presence"), cfg.Gateway.ObserverTimeout, comps.Observers...)
	router := chat.NewRouter(reg, log.Named("router"))
	gw := chat.NewGateway(reg, bc, comps.Resolver, log.Named("gateway"))
	svc := chat.NewService(reg, router, comps.Resolver, comps.Store, chat.ServiceOptions{
		MaxContentRunes: cfg.Gateway.MaxContentRunes,
		Publishers:      comps.Publishers,
		LastSeen:        comps.LastSeen,
		Directory:       comps.Directory,
		NodeID:          cfg.Node.NodeId,
		Log:             log.Named("service"),
	})

	jwtOpts := security.Options{Secret: []byte(cfg.Jwt.Secret), Alg: cfg.Jwt.Alg, TTL: cfg.Jwt.TTL}
	ws := chat.NewWsServer(gw, svc, chat.WsServerOptions{
		Conn: chat.ConnOptions{
			SendQueueSize:   cfg.Gateway.SendQueueSize,
			WriteWait:       cfg.Gateway.WriteWait,
			PongWait:        cfg.Gateway.PongWait,
			PingInterval:    cfg.Gateway.PingInterval,
			MaxMessageBytes: cfg.Gateway.MaxMessageBytes,
		},
		Jwt:                jwtOpts,
		AllowQueryIdentity: cfg.Gateway.AllowQueryIdentity,
		HandshakeTimeout:   cfg.Gateway.HandshakeTimeout,
	}, log.Named("ws"))

	// 3) gRPC 健康检查
	var gs *grpc.Server
	if cfg.Grpc.Addr != "" {
		lis, err := net.Listen("tcp", cfg.Grpc.Addr)
		if err != nil {
			return err
		}
		gs = grpc.NewServer()
		healthServer := health.NewServer()
		healthpb.RegisterHealthServer(gs, healthServer)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus("chat.Gateway", healthpb.HealthCheckResponse_SERVING)
		go func() {
			log.Info("[gRPC] listening", zap.String("addr", cfg.Grpc.Addr))
			if err := gs.Serve(lis); err != nil {
				log.Error("gRPC server failed", zap.Error(err))
			}
		}()
		defer func() {
			healthServer.Shutdown()
			gs.GracefulStop()
		}()
	}

	// 4) HTTP + WebSocket
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(mid.Recovery(log), mid.AccessLog(log.Named("http")), mid.NewManager(mid.Origin(cfg.HTTP.AllowedOrigins)).Use())
	r.GET("/ws", ws.HandleWS) // ws://host:8080/ws?token=xxx
	rt := mid.NewRouter(r, midsec.Middleware(&midsec.Options{Jwt: jwtOpts}))
	chatapi.NewHandler(svc).Register(rt)

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		log.Info("[HTTP] listening", zap.String("addr", cfg.HTTP.Addr), zap.String("node", cfg.Node.NodeId))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	inst, rerr := registerInstance(cfg, log)
	if rerr != nil {
		log.Warn("nacos register", zap.Error(rerr))
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
	}
	// 先摘流量再关连接
	if inst != nil {
		if derr := inst.Deregister(); derr != nil {
			log.Warn("nacos deregister", zap.Error(derr))
		}
	}
	if err != nil {
		return err
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	// hijacked websocket 连接不受 srv.Shutdown 管理，单独关闭
	if err := ws.Shutdown(sctx); err != nil {
		log.Warn("ws shutdown", zap.Error(err))
	}
	// 下线事件全部交给 observers 之后再关 publisher
	if err := bc.Close(sctx); err != nil {
		log.Warn("presence observers", zap.Error(err))
	}
	return nil
}

// registerInstance 配置了 nacos.service_name 才注册
func registerInstance(cfg config.AppConfig, log *zap.Logger) (*nacos.Registry, error) {
	n := cfg.Nacos
	if n.Addr == "" || n.ServiceName == "" {
		return nil, nil
	}
	port, err := nacos.PortOf(cfg.HTTP.Addr)
	if err != nil {
		return nil, err
	}
	nc := nacos.Config{Addr: n.Addr, Namespace: n.Namespace, Username: n.Username, Password: n.Password, Group: n.Group, ServiceName: n.ServiceName}
	client, err := nacos.NewNamingClient(nc)
	if err != nil {
		return nil, err
	}
	ip := n.AdvertiseIP
	if ip == "" {
		ip = "127.0.0.1"
	}
	reg := nacos.NewRegistry(client, nc, nacos.Instance{
		IP:   ip,
		Port: port,
		Metadata: map[string]string{
			"nodeId":   cfg.Node.NodeId,
			"nodeType": cfg.Node.NodeType,
			"protocol": "ws",
			"grpc":     cfg.Grpc.Addr,
		},
	}, log.Named("nacos"))
	if err := reg.Register(); err != nil {
		return nil, err
	}
	return reg, nil
}
