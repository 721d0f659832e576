package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"meshdiag/internal/tlv"
)

const (
	DefaultListen          = ":8081"
	DefaultDataDir         = "/var/lib/meshdiag"
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMeshListen      = ":19788"
	DefaultMulticastGroup  = "ff03::2"
	DefaultReplyWindow     = 5 * time.Second
	DefaultCollectTimeout  = 2 * time.Second
	DefaultRetention       = 3 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// Config holds the border router service and simulated node settings.
type Config struct {
	Server *ServerConfig `yaml:"server,omitempty"`
	Node   *NodeConfig   `yaml:"node,omitempty"`
	Log    LogConfig     `yaml:"log"`
}

// ServerConfig is used by the diagnostics service.
type ServerConfig struct {
	Listen          string            `yaml:"listen" validate:"required,hostport"`
	DataDir         string            `yaml:"data_dir" validate:"required"`
	PollInterval    time.Duration     `yaml:"poll_interval" validate:"gt=0"`
	ShutdownTimeout time.Duration     `yaml:"shutdown_timeout" validate:"gt=0"`
	NodeTTL         time.Duration     `yaml:"node_ttl,omitempty" validate:"gte=0"`
	Mesh            MeshConfig        `yaml:"mesh"`
	Diagnostics     DiagnosticsConfig `yaml:"diagnostics"`
}

// MeshConfig describes how mesh addresses reach UDP endpoints.
// MulticastGroup is parsed when a collection is issued, not here.
type MeshConfig struct {
	Listen         string        `yaml:"listen" validate:"required,hostport"`
	RLOC           string        `yaml:"rloc" validate:"required,ip"`
	MulticastGroup string        `yaml:"multicast_group"`
	ReplyWindow    time.Duration `yaml:"reply_window" validate:"gt=0"`
	Routes         []RouteConfig `yaml:"routes" validate:"dive"`
}

type RouteConfig struct {
	Address   string   `yaml:"address" validate:"required,ip"`
	Endpoints []string `yaml:"endpoints" validate:"min=1,dive,addrport"`
}

// DiagnosticsConfig holds the collection deadline and the retention
// horizon of the aggregation store.
type DiagnosticsConfig struct {
	CollectTimeout time.Duration `yaml:"collect_timeout" validate:"gt=0"`
	Retention      time.Duration `yaml:"retention" validate:"gtfield=CollectTimeout"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// NodeConfig describes a simulated mesh node and the diagnostics it
// reports.
type NodeConfig struct {
	Listen          string   `yaml:"listen" validate:"required,hostport"`
	RLOC            string   `yaml:"rloc" validate:"required,ip"`
	Groups          []string `yaml:"groups" validate:"dive,ip"`
	ExtAddress      string   `yaml:"ext_address" validate:"required,len=16,hexadecimal"`
	ShortAddress    uint16   `yaml:"short_address"`
	OmitShort       bool     `yaml:"omit_short_address"`
	Mode            tlv.Mode `yaml:"mode"`
	Timeout         uint32   `yaml:"timeout"`
	BatteryLevel    uint8    `yaml:"battery_level" validate:"lte=100"`
	SupplyVoltage   uint16   `yaml:"supply_voltage"`
	Addresses       []string `yaml:"addresses" validate:"dive,ip"`
	ChannelPages    []uint8  `yaml:"channel_pages"`
	MaxChildTimeout uint32   `yaml:"max_child_timeout"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hostport", func(fl validator.FieldLevel) bool {
		_, _, err := net.SplitHostPort(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("addrport", func(fl validator.FieldLevel) bool {
		_, err := netip.ParseAddrPort(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks required fields and value ranges. Call it after
// ApplyDefaults.
func Validate(cfg Config) error {
	if cfg.Server == nil && cfg.Node == nil {
		return fmt.Errorf("config must contain server or node section")
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Server != nil {
		s := cfg.Server
		if s.Listen == "" {
			s.Listen = DefaultListen
		}
		if s.DataDir == "" {
			s.DataDir = DefaultDataDir
		}
		if s.PollInterval == 0 {
			s.PollInterval = DefaultPollInterval
		}
		if s.ShutdownTimeout == 0 {
			s.ShutdownTimeout = DefaultShutdownTimeout
		}
		if s.Mesh.Listen == "" {
			s.Mesh.Listen = DefaultMeshListen
		}
		if s.Mesh.MulticastGroup == "" {
			s.Mesh.MulticastGroup = DefaultMulticastGroup
		}
		if s.Mesh.ReplyWindow == 0 {
			s.Mesh.ReplyWindow = DefaultReplyWindow
		}
		if s.Diagnostics.CollectTimeout == 0 {
			s.Diagnostics.CollectTimeout = DefaultCollectTimeout
		}
		if s.Diagnostics.Retention == 0 {
			s.Diagnostics.Retention = DefaultRetention
		}
	}

	if cfg.Node != nil && len(cfg.Node.Groups) == 0 {
		cfg.Node.Groups = []string{DefaultMulticastGroup}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
