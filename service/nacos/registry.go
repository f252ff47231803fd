package nacos

import (
	"fmt"
	"net"
	"strconv"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"
)

type Config struct {
	Addr        string // nacos host:port
	Namespace   string
	Username    string
	Password    string
	Group       string
	ServiceName string
}

// Instance 本网关节点对外暴露的地址
type Instance struct {
	IP       string
	Port     uint64
	Metadata map[string]string
}

type NamingClient interface {
	RegisterInstance(param vo.RegisterInstanceParam) (bool, error)
	DeregisterInstance(param vo.DeregisterInstanceParam) (bool, error)
}

// Registry 把网关实例注册到 nacos，供前置负载均衡发现。
type Registry struct {
	client NamingClient
	cfg    Config
	inst   Instance
	log    *zap.Logger
}

func NewNamingClient(cfg Config) (NamingClient, error) {
	host, portStr, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("nacos addr %q: %w", cfg.Addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("nacos port %q: %w", portStr, err)
	}
	serverConfigs := []constant.ServerConfig{
		*constant.NewServerConfig(host, port),
	}
	clientConfig := *constant.NewClientConfig(
		constant.WithNamespaceId(cfg.Namespace),
		constant.WithTimeoutMs(5000),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithUsername(cfg.Username),
		constant.WithPassword(cfg.Password),
		constant.WithLogLevel("warn"),
	)
	return clients.NewNamingClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
}

func NewRegistry(client NamingClient, cfg Config, inst Instance, log *zap.Logger) *Registry {
	if cfg.Group == "" {
		cfg.Group = "DEFAULT_GROUP"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{client: client, cfg: cfg, inst: inst, log: log}
}

// Register 注册临时实例，进程退出后 nacos 按心跳自动摘除
func (r *Registry) Register() error {
	ok, err := r.client.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          r.inst.IP,
		Port:        r.inst.Port,
		ServiceName: r.cfg.ServiceName,
		GroupName:   r.cfg.Group,
		ClusterName: "DEFAULT",
		Weight:      1,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    r.inst.Metadata,
	})
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("register failed: returned false")
	}
	r.log.Info("registered in nacos", zap.String("service", r.cfg.ServiceName), zap.String("ip", r.inst.IP), zap.Uint64("port", r.inst.Port))
	return nil
}

// Deregister 主动摘除，停机时先于关闭连接调用
func (r *Registry) Deregister() error {
	ok, err := r.client.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          r.inst.IP,
		Port:        r.inst.Port,
		ServiceName: r.cfg.ServiceName,
		GroupName:   r.cfg.Group,
		Cluster:     "DEFAULT",
		Ephemeral:   true,
	})
	if err != nil {
		return fmt.Errorf("deregister failed: %w", err)
	}
	if !ok {
		r.log.Warn("instance not found or already gone", zap.String("service", r.cfg.ServiceName))
	}
	return nil
}

// PortOf 从 ":8080" / "0.0.0.0:8080" 这类监听地址取端口
func PortOf(addr string) (uint64, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(p, 10, 64)
}
