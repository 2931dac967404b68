package config

import (
	"time"

	"github.com/spf13/viper"
	pkgconfig "github.com/weiawesome/classroom-signal/pkg/config"
	pkglog "github.com/weiawesome/classroom-signal/pkg/log"
	"github.com/weiawesome/classroom-signal/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Classroom ClassroomConfig
	Events    EventsConfig
	WebRTC    WebRTCConfig
	Log       pkglog.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	Path           string        `mapstructure:"path"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBufferSize int           `mapstructure:"send_buffer_size"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type ClassroomConfig struct {
	// EnforceHostControls restricts mute-all and toggle-mute to sessions
	// that joined with is_host set.
	EnforceHostControls bool `mapstructure:"enforce_host_controls"`
}

type EventsConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BufferSize int           `mapstructure:"buffer_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PubSub     pubsub.Config `mapstructure:"pubsub"`
}

type WebRTCConfig struct {
	ICEServers []ICEServerConfig `mapstructure:"ice_servers"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

// DefaultWebSocket returns the websocket settings used when nothing is configured.
func DefaultWebSocket() WebSocketConfig {
	return WebSocketConfig{
		Path:           "/ws",
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 65536,
		SendBufferSize: 256,
	}
}

// Load reads config.yaml from configPath, then the environment.
func Load(configPath string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, "config")
	if err != nil {
		return nil, err
	}

	setDefaults(v)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("classroom.enforce_host_controls", "ENFORCE_HOST_CONTROLS")
	v.BindEnv("events.enabled", "EVENTS_ENABLED")
	v.BindEnv("events.pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("events.pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("events.pubsub.redis.password", "REDIS_PASSWORD")
	v.BindEnv("events.pubsub.kafka.brokers", "KAFKA_BROKERS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Events.Timeout = parseDuration(v, "events.timeout", 3*time.Second)
	cfg.Events.PubSub.Redis.ReadTimeout = parseDuration(v, "events.pubsub.redis.read_timeout", 3*time.Second)
	cfg.Events.PubSub.Redis.WriteTimeout = parseDuration(v, "events.pubsub.redis.write_timeout", 3*time.Second)

	// The write pump pings on every interval and must do so before the
	// peer's read deadline lapses.
	if cfg.WebSocket.PingInterval >= cfg.WebSocket.PongWait {
		cfg.WebSocket.PingInterval = cfg.WebSocket.PongWait * 9 / 10
	}

	if cfg.Log.ServiceName == "" {
		cfg.Log.ServiceName = "classroom-signal"
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	ws := DefaultWebSocket()
	ps := pubsub.DefaultConfig()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8085)
	v.SetDefault("websocket.path", ws.Path)
	v.SetDefault("websocket.ping_interval", ws.PingInterval.String())
	v.SetDefault("websocket.pong_wait", ws.PongWait.String())
	v.SetDefault("websocket.write_wait", ws.WriteWait.String())
	v.SetDefault("websocket.max_message_size", ws.MaxMessageSize)
	v.SetDefault("websocket.send_buffer_size", ws.SendBufferSize)
	v.SetDefault("classroom.enforce_host_controls", false)
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("events.timeout", "3s")
	v.SetDefault("events.pubsub.driver", ps.Driver)
	v.SetDefault("events.pubsub.redis.address", ps.Redis.Address)
	v.SetDefault("events.pubsub.redis.password", "")
	v.SetDefault("events.pubsub.redis.db", 0)
	v.SetDefault("events.pubsub.redis.pool_size", ps.Redis.PoolSize)
	v.SetDefault("events.pubsub.kafka.brokers", ps.Kafka.Brokers)
	v.SetDefault("events.pubsub.kafka.partitions", ps.Kafka.Partitions)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
