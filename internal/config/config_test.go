package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
activation:
  endpoint: https://activation.example.com/api/activate
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "bolt", cfg.Storage.Type)
	require.Equal(t, "/var/lib/warranty-activator/state.db", cfg.Storage.Path)
	require.Equal(t, "warranty", cfg.Storage.Namespace)
	require.Equal(t, "drm", cfg.Display.Source)
	require.Equal(t, time.Second, cfg.Display.DRM.PollInterval)
	require.Equal(t, 17, cfg.Display.GPIO.Line)
	require.Equal(t, 5*time.Minute, cfg.Activation.Threshold)
	require.Equal(t, 10*time.Second, cfg.Activation.EvaluateInterval)
	require.Equal(t, 15*time.Second, cfg.Activation.ConnectTimeout)
	require.Equal(t, 20*time.Second, cfg.Activation.ReadTimeout)
	require.Equal(t, "Asia/Dhaka", cfg.Activation.Timezone)
	ts := time.Date(2025, 10, 29, 12, 34, 56, 0, time.UTC).In(cfg.Location())
	require.Equal(t, "2025-10-29T18:34:56+06:00", ts.Format("2006-01-02T15:04:05-07:00"))
	require.Equal(t, "", cfg.MQTT.Broker)
	require.Equal(t, "device/warranty", cfg.MQTT.TopicPrefix)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "/var/lib/warranty-activator/warranty-activator.lock", cfg.LockPath())
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  type: redis
  redis:
    addr: 10.0.0.5:6379
    db: 2
display:
  source: gpio
  gpio:
    chip: gpiochip1
    line: 23
    active_low: true
    debounce: 20ms
activation:
  endpoint: http://10.0.0.1:9000/activate
  threshold: 90s
  timezone: Europe/London
  brand: Acme
mqtt:
  broker: tcp://10.0.0.2:1883
logging:
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "redis", cfg.Storage.Type)
	require.Equal(t, "10.0.0.5:6379", cfg.Storage.Redis.Addr)
	require.Equal(t, 2, cfg.Storage.Redis.DB)
	require.Equal(t, "gpio", cfg.Display.Source)
	require.Equal(t, "gpiochip1", cfg.Display.GPIO.Chip)
	require.Equal(t, 23, cfg.Display.GPIO.Line)
	require.True(t, cfg.Display.GPIO.ActiveLow)
	require.Equal(t, 20*time.Millisecond, cfg.Display.GPIO.Debounce)
	require.Equal(t, 90*time.Second, cfg.Activation.Threshold)
	require.Equal(t, "Acme", cfg.Activation.Brand)
	require.Equal(t, "Europe/London", cfg.Location().String())
	require.Equal(t, "tcp://10.0.0.2:1883", cfg.MQTT.Broker)
	require.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
activation:
  endpoint: https://activation.example.com/api/activate
`)
	t.Setenv("WARRANTY_ACTIVATION_ENDPOINT", "https://override.example.com/a")
	t.Setenv("WARRANTY_ACTIVATION_THRESHOLD", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://override.example.com/a", cfg.Activation.Endpoint)
	require.Equal(t, 2*time.Minute, cfg.Activation.Threshold)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing endpoint", `activation: {}`},
		{"relative endpoint", `activation: {endpoint: /activate}`},
		{"ftp endpoint", `activation: {endpoint: "ftp://example.com/a"}`},
		{"zero threshold", `activation: {endpoint: "https://e.example.com", threshold: 0s}`},
		{"zero interval", `activation: {endpoint: "https://e.example.com", evaluate_interval: 0s}`},
		{"bad timezone", `activation: {endpoint: "https://e.example.com", timezone: Mars/Olympus}`},
		{"bad storage", "storage: {type: sqlite}\nactivation: {endpoint: \"https://e.example.com\"}"},
		{"bad display", "display: {source: hdmi}\nactivation: {endpoint: \"https://e.example.com\"}"},
		{"bad log level", "logging: {level: loud}\nactivation: {endpoint: \"https://e.example.com\"}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}
