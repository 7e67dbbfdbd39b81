// Package rpcconfig holds the yaml-loadable configuration for an
// rpcsrv.Server, mirroring the teacher's pkg/config convention of a small
// struct plus a Validate method rather than validating at use sites.
package rpcconfig

import (
	"fmt"
	"time"
)

// Config is an RPC server's configuration.
type Config struct {
	BasicService `yaml:",inline"`

	// TLSConfig, if Enabled, requires CertFile and KeyFile (checked by
	// Validate). rpcsrv.Server does not read it; a transport constructor
	// given no TLS configuration for a TLS endpoint returns
	// rpcsrv.ErrTLSConfigRequired.
	TLSConfig TLS `yaml:"TLSConfig"`

	// SubscriptionBufferCapacity overrides rpcsrv.SubscriptionBufferCapacity
	// per server instance. Zero means use the package default.
	SubscriptionBufferCapacity int `yaml:"SubscriptionBufferCapacity"`

	// AcceptErrorLogInterval throttles repeated "accept failed, continuing"
	// log lines for a listener under sustained transient failure.
	AcceptErrorLogInterval time.Duration `yaml:"AcceptErrorLogInterval"`

	// ShutdownTimeout bounds how long Server.Shutdown waits for
	// in-flight connections to drain. Once it expires, the task group's
	// Cancel stops waiting and drops the remaining handlers from its list;
	// their tasks are not waited for and finish, if at all, on their own.
	// Zero means wait without a bound.
	ShutdownTimeout time.Duration `yaml:"ShutdownTimeout"`
}

// BasicService is the common base for any bindable service, mirroring the
// teacher's pkg/config.BasicService.
type BasicService struct {
	Enabled bool `yaml:"Enabled"`
	// Addresses holds the list of bind addresses in the form "address:port".
	Addresses []string `yaml:"Addresses"`
}

// TLS describes TLS configuration for a transport endpoint.
type TLS struct {
	Enabled  bool   `yaml:"Enabled"`
	CertFile string `yaml:"CertFile"`
	KeyFile  string `yaml:"KeyFile"`
}

// Validate checks Config for internal consistency.
func (cfg *Config) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.Addresses) == 0 {
		return fmt.Errorf("rpcconfig: Enabled requires at least one address")
	}
	if cfg.TLSConfig.Enabled && (cfg.TLSConfig.CertFile == "" || cfg.TLSConfig.KeyFile == "") {
		return fmt.Errorf("rpcconfig: TLSConfig.Enabled requires CertFile and KeyFile")
	}
	if cfg.SubscriptionBufferCapacity < 0 {
		return fmt.Errorf("rpcconfig: SubscriptionBufferCapacity must not be negative")
	}
	return nil
}
