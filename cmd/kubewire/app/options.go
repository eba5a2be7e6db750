package app

import (
	"fmt"
	"os"
	"time"

	"github.com/jinzhu/configor"

	"github.com/kubewire/kubewire/pkg/transport"
)

// FileConfig is the on-disk connection configuration. Fields can be
// overridden through KUBEWIRE_* environment variables.
type FileConfig struct {
	Server string `yaml:"server" required:"true"`

	Token string `yaml:"token"`

	CAFile   string `yaml:"caFile"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
	Insecure bool   `yaml:"insecure"`

	UserAgent      string `yaml:"userAgent" default:"kubewire-cli"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" default:"30"`
}

// loadTransportConfig reads the config file and resolves the referenced
// credential files into a transport configuration.
func loadTransportConfig(path string) (transport.Config, error) {
	fc := FileConfig{}
	loader := configor.New(&configor.Config{ENVPrefix: "KUBEWIRE", Silent: true})
	if err := loader.Load(&fc, path); err != nil {
		return transport.Config{}, fmt.Errorf("loading config %s: %w", path, err)
	}

	cfg := transport.Config{
		Server:      fc.Server,
		BearerToken: fc.Token,
		UserAgent:   fc.UserAgent,
		Timeout:     time.Duration(fc.TimeoutSeconds) * time.Second,
	}
	cfg.TLS.Insecure = fc.Insecure

	var err error
	if fc.CAFile != "" {
		if cfg.TLS.CAData, err = os.ReadFile(fc.CAFile); err != nil {
			return transport.Config{}, fmt.Errorf("reading CA file: %w", err)
		}
	}
	if fc.CertFile != "" {
		if cfg.TLS.CertData, err = os.ReadFile(fc.CertFile); err != nil {
			return transport.Config{}, fmt.Errorf("reading client cert: %w", err)
		}
		if cfg.TLS.KeyData, err = os.ReadFile(fc.KeyFile); err != nil {
			return transport.Config{}, fmt.Errorf("reading client key: %w", err)
		}
	}
	return cfg, nil
}
