package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/stretchr/testify/require"
)

func withSecret(t *testing.T) {
	t.Helper()
	t.Setenv("CHAT_JWT_SECRET", "test-secret")
}

func TestDefault_NeedsJwtSecret(t *testing.T) {
	req := require.New(t)

	err := Default().Validate()
	req.Error(err)
	req.Contains(err.Error(), "jwt.secret")

	cfg := Default()
	cfg.Jwt.Secret = "s"
	req.NoError(cfg.Validate())

	cfg = Default()
	cfg.Gateway.AllowQueryIdentity = true
	req.NoError(cfg.Validate())
}

func TestLoad_WithoutSecretFails(t *testing.T) {
	t.Setenv("CHAT_JWT_SECRET", "")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_FileThenEnv(t *testing.T) {
	req := require.New(t)
	withSecret(t)

	// Given a yaml file overriding a few values
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.yaml")
	req.NoError(os.WriteFile(path, []byte(`
http:
  addr: ":9000"
gateway:
  send_queue_size: 8
  pong_wait: 30s
  ping_interval: 20s
log:
  level: debug
`), 0o600))

	// And env pointing the message store at mongo
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("CHAT_HTTP_ADDR", ":9100")

	// When
	cfg, err := Load(path)

	// Then
	req.NoError(err)
	req.Equal(":9100", cfg.HTTP.Addr)
	req.Equal(8, cfg.Gateway.SendQueueSize)
	req.Equal(30*time.Second, cfg.Gateway.PongWait)
	req.Equal("debug", cfg.Log.Level)
	req.Equal(DriverMongo, cfg.Storage.Driver)
	req.Equal("mongodb://db:27017", cfg.Mongo.Uri)
	req.Equal(DriverMemory, cfg.Identity.Driver)
}

func TestLoad_KafkaBrokersFromEnv(t *testing.T) {
	req := require.New(t)
	withSecret(t)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load("")
	req.NoError(err)
	req.Equal(DriverKafka, cfg.Events.Driver)
	req.Equal([]string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate_Rejects(t *testing.T) {
	req := require.New(t)

	cfg := Default()
	cfg.Gateway.PingInterval = cfg.Gateway.PongWait
	cfg.Identity.Driver = DriverPostgres
	cfg.Events.Driver = "rabbit"

	err := cfg.Validate()
	req.Error(err)
	req.Contains(err.Error(), "ping_interval")
	req.Contains(err.Error(), "postgres.dsn")
	req.Contains(err.Error(), "rabbit")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

type fakeNacos struct {
	content  string
	onChange func(namespace, group, dataId, data string)
	canceled bool
}

func (f *fakeNacos) GetConfig(vo.ConfigParam) (string, error) { return f.content, nil }

func (f *fakeNacos) ListenConfig(p vo.ConfigParam) error {
	f.onChange = p.OnChange
	return nil
}

func (f *fakeNacos) CancelListenConfig(vo.ConfigParam) error {
	f.canceled = true
	return nil
}

func TestLoad_NacosOverlay(t *testing.T) {
	req := require.New(t)
	withSecret(t)
	t.Setenv("CHAT_NACOS_ADDR", "nacos:8848")
	t.Setenv("CHAT_HTTP_ADDR", ":9200")

	remote := &fakeNacos{content: `
http:
  addr: ":7000"
log:
  level: warn
`}
	var dialed NacosConfig
	cfg, err := load("", func(n NacosConfig) (remoteConfigClient, error) {
		dialed = n
		return remote, nil
	})

	req.NoError(err)
	req.Equal("nacos:8848", dialed.Addr)
	req.Equal("warn", cfg.Log.Level)
	// env still wins over remote
	req.Equal(":9200", cfg.HTTP.Addr)
}

func TestWatch_AppliesValidChangesOnly(t *testing.T) {
	req := require.New(t)
	withSecret(t)
	base := Default()
	base.Nacos.Addr = "nacos:8848"
	remote := &fakeNacos{}

	var got []AppConfig
	var errs []error
	stop, err := watchWith(remote, base, func(c AppConfig) { got = append(got, c) }, func(e error) { errs = append(errs, e) })
	req.NoError(err)
	req.NotNil(remote.onChange)

	remote.onChange("", base.Nacos.Group, base.Nacos.DataID, "log:\n  level: debug\n")
	remote.onChange("", base.Nacos.Group, base.Nacos.DataID, "gateway:\n  send_queue_size: -1\n")
	remote.onChange("", base.Nacos.Group, base.Nacos.DataID, "log: [unclosed\n")
	remote.onChange("", base.Nacos.Group, base.Nacos.DataID, "::: not yaml")
	remote.onChange("", base.Nacos.Group, base.Nacos.DataID, "log:\n  levle: info\n")

	req.Len(got, 1)
	req.Equal("debug", got[0].Log.Level)
	req.Equal("nacos:8848", got[0].Nacos.Addr)
	req.Len(errs, 4)

	stop()
	req.True(remote.canceled)
}

func TestParseOver_Strict(t *testing.T) {
	req := require.New(t)
	base := Default()

	// Given content that is not a mapping, is malformed, or has unknown keys
	for _, content := range []string{"just a string", "- a\n- b\n", "http: {addr: \":1\"\n", "htp:\n  addr: \":1\"\n"} {
		// When it is parsed over base
		got, err := parseOver(base, content)

		// Then it is rejected and base is returned unchanged
		req.Error(err, content)
		req.Equal(base, got)
	}

	// comment-only content is treated as empty
	got, err := parseOver(base, "# nothing yet\n")
	req.NoError(err)
	req.Equal(base, got)
}
