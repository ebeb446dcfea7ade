// Package config loads the engine configuration from a YAML file.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Defaults used by the fleet's managed MQTT bridge.
const (
	DefaultBroker     = "ssl://mqtt.googleapis.com:8883"
	DefaultProjectID  = "auto-fleet-mgnt"
	DefaultRegion     = "europe-west1"
	DefaultRegistryID = "fleet-registry"
	DefaultAlgorithm  = "RS256"
	DefaultPrivateKey = "/enclave/rsa_private.pem"
)

type Config struct {
	DeviceID   string           `yaml:"device_id"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	NATS       NATSConfig       `yaml:"nats"`
	Storage    StorageConfig    `yaml:"storage"`
	Mavlink    MavlinkConfig    `yaml:"mavlink"`
	Activation ActivationConfig `yaml:"activation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	PrivateKeyPath string        `yaml:"private_key"`
	Algorithm      string        `yaml:"algorithm"`
	ProjectID      string        `yaml:"project_id"`
	Region         string        `yaml:"region"`
	RegistryID     string        `yaml:"registry_id"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	TokenLifetime  time.Duration `yaml:"token_lifetime"`
}

type NATSConfig struct {
	// URL is optional; state is not fanned out to NATS when empty.
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type StorageConfig struct {
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cache_size"`
}

type MavlinkConfig struct {
	Dir           string        `yaml:"dir"`
	UploadTimeout time.Duration `yaml:"upload_timeout"`
}

type ActivationConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	Interval time.Duration `yaml:"interval"`
}

type TelemetryConfig struct {
	// ProgressRate caps run progress events per second.
	ProgressRate float64 `yaml:"progress_rate"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

func Default() Config {
	return Config{
		MQTT: MQTTConfig{
			Broker:         DefaultBroker,
			PrivateKeyPath: DefaultPrivateKey,
			Algorithm:      DefaultAlgorithm,
			ProjectID:      DefaultProjectID,
			Region:         DefaultRegion,
			RegistryID:     DefaultRegistryID,
			QoS:            1, // QoS 2 isn't supported in GCP
			ConnectTimeout: 5 * time.Second,
			TokenLifetime:  24 * time.Hour,
		},
		NATS: NATSConfig{
			SubjectPrefix: "flightplan",
		},
		Storage: StorageConfig{
			Path:      "flightplans.db",
			CacheSize: 128,
		},
		Mavlink: MavlinkConfig{
			Dir:           os.TempDir(),
			UploadTimeout: 30 * time.Second,
		},
		Activation: ActivationConfig{
			Timeout:  10 * time.Second,
			Interval: time.Second,
		},
		Telemetry: TelemetryConfig{
			ProgressRate: 2,
		},
		Metrics: MetricsConfig{
			Listen: ":9102",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return c, errors.WithMessage(err, "read config")
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, errors.WithMessagef(err, "parse config %s", path)
	}
	return c, nil
}

func (c Config) Validate() error {
	switch {
	case c.DeviceID == "":
		return errors.New("device_id is required")
	case c.MQTT.Broker == "":
		return errors.New("mqtt.broker is required")
	case c.MQTT.Algorithm != "RS256" && c.MQTT.Algorithm != "ES256":
		return errors.Errorf("unknown mqtt.algorithm %q", c.MQTT.Algorithm)
	case c.MQTT.QoS > 1:
		return errors.Errorf("mqtt.qos %d is not supported", c.MQTT.QoS)
	case c.Storage.Path == "":
		return errors.New("storage.path is required")
	case c.Storage.CacheSize <= 0:
		return errors.New("storage.cache_size must be positive")
	case c.Activation.Interval <= 0 || c.Activation.Timeout < c.Activation.Interval:
		return errors.Errorf("activation interval %s and timeout %s are inconsistent",
			c.Activation.Interval, c.Activation.Timeout)
	case c.Telemetry.ProgressRate <= 0:
		return errors.New("telemetry.progress_rate must be positive")
	}
	return nil
}

// ClientID is the MQTT client id the managed broker expects.
func (c Config) ClientID() string {
	return "projects/" + c.MQTT.ProjectID +
		"/locations/" + c.MQTT.Region +
		"/registries/" + c.MQTT.RegistryID +
		"/devices/" + c.DeviceID
}
