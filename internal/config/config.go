package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
	// StdoutTraces prints spans when no OTLP endpoint is set.
	StdoutTraces bool `yaml:"stdout_traces"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Node        NodeConfig       `yaml:"node"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	TTS         TTSConfig        `yaml:"tts"`
	Tables      TablesConfig     `yaml:"tables"`
	Voice       VoiceConfig      `yaml:"voice"`
	Playback    PlaybackConfig   `yaml:"playback"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type NodeConfig struct {
	ID                string           `yaml:"id"`
	Role              string           `yaml:"role"`
	HeartbeatInterval int              `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  int              `yaml:"heartbeat_timeout_ms"`
	Capabilities      []NodeCapability `yaml:"capabilities"`
}

type NodeCapability struct {
	Name       string            `yaml:"name"`
	Tier       string            `yaml:"tier"`
	Attributes map[string]string `yaml:"attributes"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type TTSConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Mode             string `yaml:"mode"` // sam, mock
	SampleRate       int    `yaml:"sample_rate"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
	MaxTextBytes     int    `yaml:"max_text_bytes"`
}

// TablesConfig points at an external table set. An empty path selects the
// built-in English tables.
type TablesConfig struct {
	Path string `yaml:"path"`
}

// VoicePreset holds the voice controls. Each value must fit in a byte.
type VoicePreset struct {
	Pitch  int  `yaml:"pitch"`
	Speed  int  `yaml:"speed"`
	Mouth  int  `yaml:"mouth"`
	Throat int  `yaml:"throat"`
	Sing   bool `yaml:"sing"`
}

type VoiceConfig struct {
	Default  string                 `yaml:"default"`
	Timing   string                 `yaml:"timing"` // historical, aggregate
	Phonetic bool                   `yaml:"phonetic"`
	Presets  map[string]VoicePreset `yaml:"presets"`
}

// Preset looks up a preset by name; the empty name selects the default.
func (v VoiceConfig) Preset(name string) (VoicePreset, bool) {
	if name == "" {
		name = v.Default
	}
	p, ok := v.Presets[name]
	return p, ok
}

// Names returns the preset names in sorted order.
func (v VoiceConfig) Names() []string {
	names := make([]string, 0, len(v.Presets))
	for name := range v.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type PlaybackConfig struct {
	Command string `yaml:"command"`
}

func DefaultPresets() map[string]VoicePreset {
	return map[string]VoicePreset{
		"sam":               {Pitch: 64, Speed: 72, Mouth: 128, Throat: 128},
		"elf":               {Pitch: 64, Speed: 72, Mouth: 110, Throat: 160},
		"little-robot":      {Pitch: 60, Speed: 92, Mouth: 190, Throat: 190},
		"stuffy-guy":        {Pitch: 72, Speed: 82, Mouth: 110, Throat: 105},
		"little-old-lady":   {Pitch: 32, Speed: 82, Mouth: 145, Throat: 145},
		"extra-terrestrial": {Pitch: 64, Speed: 100, Mouth: 150, Throat: 200},
	}
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-sam",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Node: NodeConfig{
			ID:                "loqa-sam-1",
			Role:              "tts",
			HeartbeatInterval: 2000,
			HeartbeatTimeout:  6000,
			Capabilities: []NodeCapability{
				{Name: "tts.sam", Tier: "fast"},
			},
		},
		EventStore: EventStoreConfig{
			Path:          "./data/loqa-sam.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		TTS: TTSConfig{
			Enabled:          true,
			Mode:             "sam",
			SampleRate:       22050,
			RequestTimeoutMS: 10000,
			MaxTextBytes:     4096,
		},
		Voice: VoiceConfig{
			Default: "sam",
			Timing:  "historical",
			Presets: DefaultPresets(),
		},
		Playback: PlaybackConfig{
			Command: "aplay -q -t raw -f U8 -r {rate} -c 1",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LOQA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LOQA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "LOQA_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Telemetry.StdoutTraces, "LOQA_TELEMETRY_STDOUT_TRACES")
	overrideBool(&cfg.Bus.Embedded, "LOQA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQA_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "LOQA_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Node.ID, "LOQA_NODE_ID")
	overrideString(&cfg.Node.Role, "LOQA_NODE_ROLE")
	overrideInt(&cfg.Node.HeartbeatInterval, "LOQA_NODE_HEARTBEAT_INTERVAL_MS")
	overrideInt(&cfg.Node.HeartbeatTimeout, "LOQA_NODE_HEARTBEAT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "LOQA_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "LOQA_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "LOQA_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "LOQA_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "LOQA_EVENT_STORE_VACUUM_ON_START")
	overrideBool(&cfg.TTS.Enabled, "LOQA_TTS_ENABLED")
	overrideString(&cfg.TTS.Mode, "LOQA_TTS_MODE")
	overrideInt(&cfg.TTS.SampleRate, "LOQA_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.RequestTimeoutMS, "LOQA_TTS_REQUEST_TIMEOUT_MS")
	overrideInt(&cfg.TTS.MaxTextBytes, "LOQA_TTS_MAX_TEXT_BYTES")
	overrideString(&cfg.Tables.Path, "LOQA_TABLES_PATH")
	overrideString(&cfg.Voice.Default, "LOQA_VOICE_DEFAULT")
	overrideString(&cfg.Voice.Timing, "LOQA_VOICE_TIMING")
	overrideBool(&cfg.Voice.Phonetic, "LOQA_VOICE_PHONETIC")
	overrideString(&cfg.Playback.Command, "LOQA_PLAYBACK_COMMAND")

	// The per-control overrides adjust whichever preset is the default.
	if preset, ok := cfg.Voice.Presets[cfg.Voice.Default]; ok {
		overrideInt(&preset.Pitch, "LOQA_VOICE_PITCH")
		overrideInt(&preset.Speed, "LOQA_VOICE_SPEED")
		overrideInt(&preset.Mouth, "LOQA_VOICE_MOUTH")
		overrideInt(&preset.Throat, "LOQA_VOICE_THROAT")
		overrideBool(&preset.Sing, "LOQA_VOICE_SING")
		cfg.Voice.Presets[cfg.Voice.Default] = preset
	}
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Node.ID == "" {
		return errors.New("node.id must not be empty")
	}
	if cfg.Node.HeartbeatInterval <= 0 {
		return errors.New("node.heartbeat_interval_ms must be positive")
	}
	if cfg.Node.HeartbeatTimeout <= cfg.Node.HeartbeatInterval {
		return errors.New("node.heartbeat_timeout_ms must be greater than heartbeat interval")
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.TTS.Enabled {
		switch cfg.TTS.Mode {
		case "sam", "mock":
		default:
			return errors.New("tts.mode must be one of sam|mock")
		}
		if cfg.TTS.SampleRate <= 0 {
			return errors.New("tts.sample_rate must be positive")
		}
		if cfg.TTS.RequestTimeoutMS <= 0 {
			return errors.New("tts.request_timeout_ms must be positive")
		}
	}
	if cfg.TTS.MaxTextBytes < 0 {
		return errors.New("tts.max_text_bytes must be >= 0")
	}
	return validateVoice(cfg.Voice)
}

func validateVoice(v VoiceConfig) error {
	switch v.Timing {
	case "historical", "aggregate":
	default:
		return errors.New("voice.timing must be one of historical|aggregate")
	}
	if len(v.Presets) == 0 {
		return errors.New("voice.presets must not be empty")
	}
	if _, ok := v.Presets[v.Default]; !ok {
		return fmt.Errorf("voice.default %q does not name a preset", v.Default)
	}
	for _, name := range v.Names() {
		p := v.Presets[name]
		for _, field := range []struct {
			key   string
			value int
		}{
			{"pitch", p.Pitch},
			{"speed", p.Speed},
			{"mouth", p.Mouth},
			{"throat", p.Throat},
		} {
			if field.value < 0 || field.value > 255 {
				return fmt.Errorf("voice.presets.%s.%s must be between 0 and 255", name, field.key)
			}
		}
		if p.Speed == 0 {
			return fmt.Errorf("voice.presets.%s.speed must be positive", name)
		}
	}
	return nil
}
