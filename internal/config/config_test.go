package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Voice.Default != "sam" || cfg.Voice.Timing != "historical" {
		t.Fatalf("unexpected voice defaults %+v", cfg.Voice)
	}
	if len(cfg.Voice.Presets) != 6 {
		t.Fatalf("expected 6 presets, got %v", cfg.Voice.Names())
	}
	p, ok := cfg.Voice.Preset("")
	if !ok || p.Speed != 72 || p.Pitch != 64 || p.Mouth != 128 || p.Throat != 128 {
		t.Fatalf("unexpected default preset %+v", p)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOQA_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("LOQA_BUS_USERNAME", "alice")
	t.Setenv("LOQA_BUS_PASSWORD", "secret")
	t.Setenv("LOQA_BUS_TLS_INSECURE", "true")
	t.Setenv("LOQA_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("LOQA_BUS_STORE_DIR", "/var/lib/nats")
	t.Setenv("LOQA_NODE_ID", "test-node")
	t.Setenv("LOQA_NODE_HEARTBEAT_INTERVAL_MS", "1500")
	t.Setenv("LOQA_NODE_HEARTBEAT_TIMEOUT_MS", "5000")
	t.Setenv("LOQA_EVENT_STORE_PATH", "./tmp.db")
	t.Setenv("LOQA_EVENT_STORE_RETENTION_MODE", "persistent")
	t.Setenv("LOQA_EVENT_STORE_RETENTION_DAYS", "7")
	t.Setenv("LOQA_EVENT_STORE_MAX_SESSIONS", "123")
	t.Setenv("LOQA_EVENT_STORE_VACUUM_ON_START", "true")
	t.Setenv("LOQA_TABLES_PATH", "/etc/loqa/tables.yaml")
	t.Setenv("LOQA_PLAYBACK_COMMAND", "paplay --raw")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.Bus.StoreDir != "/var/lib/nats" {
		t.Fatalf("expected store dir override, got %q", cfg.Bus.StoreDir)
	}
	if cfg.Node.ID != "test-node" {
		t.Fatalf("expected node id override")
	}
	if cfg.Node.HeartbeatInterval != 1500 || cfg.Node.HeartbeatTimeout != 5000 {
		t.Fatalf("expected heartbeat overrides")
	}
	if cfg.EventStore.Path != "./tmp.db" || cfg.EventStore.RetentionMode != "persistent" {
		t.Fatalf("expected event store overrides")
	}
	if cfg.EventStore.RetentionDays != 7 || cfg.EventStore.MaxSessions != 123 {
		t.Fatalf("expected event store retention overrides")
	}
	if !cfg.EventStore.VacuumOnStart {
		t.Fatalf("expected event store vacuum flag override")
	}
	if cfg.Tables.Path != "/etc/loqa/tables.yaml" {
		t.Fatalf("expected tables path override")
	}
	if cfg.Playback.Command != "paplay --raw" {
		t.Fatalf("expected playback command override")
	}
}

func TestVoiceEnvOverrides(t *testing.T) {
	t.Setenv("LOQA_VOICE_DEFAULT", "elf")
	t.Setenv("LOQA_VOICE_TIMING", "aggregate")
	t.Setenv("LOQA_VOICE_PHONETIC", "true")
	t.Setenv("LOQA_VOICE_PITCH", "90")
	t.Setenv("LOQA_VOICE_SING", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Voice.Timing != "aggregate" || !cfg.Voice.Phonetic {
		t.Fatalf("expected timing and phonetic overrides, got %+v", cfg.Voice)
	}
	elf, _ := cfg.Voice.Preset("")
	if elf.Pitch != 90 || !elf.Sing || elf.Throat != 160 {
		t.Fatalf("expected elf preset adjusted, got %+v", elf)
	}
	if sam, _ := cfg.Voice.Preset("sam"); sam.Pitch != 64 {
		t.Fatalf("non-default preset changed: %+v", sam)
	}
}

func TestLoadFileMergesPresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loqa.yaml")
	data := `
runtime_name: test-runtime
voice:
  default: deep
  presets:
    deep: {pitch: 100, speed: 80, mouth: 120, throat: 100}
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RuntimeName != "test-runtime" {
		t.Fatalf("runtime name not loaded")
	}
	if _, ok := cfg.Voice.Preset("little-robot"); !ok {
		t.Fatalf("built-in presets lost: %v", cfg.Voice.Names())
	}
	deep, ok := cfg.Voice.Preset("")
	if !ok || deep.Pitch != 100 {
		t.Fatalf("expected deep preset as default, got %+v", deep)
	}
}

func TestValidateVoice(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"timing", func(c *Config) { c.Voice.Timing = "fast" }, "voice.timing"},
		{"default", func(c *Config) { c.Voice.Default = "nobody" }, "voice.default"},
		{"range", func(c *Config) { c.Voice.Presets["sam"] = VoicePreset{Pitch: 300, Speed: 72} }, "voice.presets.sam.pitch"},
		{"speed", func(c *Config) { c.Voice.Presets["elf"] = VoicePreset{Pitch: 64} }, "voice.presets.elf.speed"},
		{"tts mode", func(c *Config) { c.TTS.Mode = "exec" }, "tts.mode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "loqa.yaml"))
	if err != nil {
		t.Fatalf("load example config: %v", err)
	}
	if cfg.RuntimeName != "loqa-sam" || cfg.TTS.Mode != "sam" {
		t.Fatalf("unexpected example config: %+v", cfg)
	}
	if got, want := cfg.Voice.Names(), Default().Voice.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("example presets %v, want %v", got, want)
	}
}
