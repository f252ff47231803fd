package config

import (
	"net"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// remoteConfigClient 是 nacos config_client.IConfigClient 用到的子集
type remoteConfigClient interface {
	GetConfig(param vo.ConfigParam) (string, error)
	ListenConfig(param vo.ConfigParam) error
	CancelListenConfig(param vo.ConfigParam) error
}

func dialNacos(n NacosConfig) (remoteConfigClient, error) {
	host, portStr, err := net.SplitHostPort(n.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "nacos addr %q", n.Addr)
	}
	port, err := strconv.ParseUint(portStr, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "nacos port %q", portStr)
	}
	serverConfigs := []constant.ServerConfig{
		*constant.NewServerConfig(host, port),
	}
	clientConfig := *constant.NewClientConfig(
		constant.WithTimeoutMs(5000),
		constant.WithNamespaceId(n.Namespace),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithUsername(n.Username),
		constant.WithPassword(n.Password),
		constant.WithLogLevel("warn"),
	)
	cli, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, errors.Wrap(err, "nacos config client")
	}
	return cli, nil
}

func (n NacosConfig) param() vo.ConfigParam {
	return vo.ConfigParam{DataId: n.DataID, Group: n.Group}
}

// overlayRemote 把 nacos 上的 yaml 叠加到 cfg 上；远端为空时原样返回。
func overlayRemote(cfg AppConfig, cli remoteConfigClient) (AppConfig, error) {
	content, err := cli.GetConfig(cfg.Nacos.param())
	if err != nil {
		return cfg, errors.Wrapf(err, "nacos get %s/%s", cfg.Nacos.Group, cfg.Nacos.DataID)
	}
	return parseOver(cfg, content)
}

func parseOver(base AppConfig, content string) (AppConfig, error) {
	if strings.TrimSpace(content) == "" {
		return base, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return base, errors.Wrap(err, "parse remote config")
	}
	if len(doc.Content) == 0 {
		return base, nil
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return base, errors.Errorf("remote config must be a yaml mapping, line %d", doc.Content[0].Line)
	}

	next := base
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&next); err != nil {
		return base, errors.Wrap(err, "parse remote config")
	}
	next.Nacos = base.Nacos
	return next, nil
}

// Watch 监听 nacos 配置变化。每次变化都在 base 上重新叠加远端内容，校验通过才回调；
// 连接类参数改了需要重启，回调方只应用可热更的部分（如日志级别）。
func Watch(base AppConfig, onChange func(AppConfig), onError func(error)) (stop func(), err error) {
	if base.Nacos.Addr == "" {
		return func() {}, nil
	}
	cli, err := dialNacos(base.Nacos)
	if err != nil {
		return nil, err
	}
	return watchWith(cli, base, onChange, onError)
}

func watchWith(cli remoteConfigClient, base AppConfig, onChange func(AppConfig), onError func(error)) (func(), error) {
	p := base.Nacos.param()
	p.OnChange = func(_, _, _, data string) {
		next, err := parseOver(base, data)
		if err == nil {
			applyEnv(&next)
			err = next.Validate()
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(next)
	}
	if err := cli.ListenConfig(p); err != nil {
		return nil, errors.Wrap(err, "nacos listen")
	}
	return func() { _ = cli.CancelListenConfig(base.Nacos.param()) }, nil
}
