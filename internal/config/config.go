// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config decodes the coordinator's HCL daemon configuration:
// listen addresses, optional TLS credentials, the sqlite database path,
// log level and the metrics listener.
package config

// CurrentSchemaVersion is the schema version this build decodes.
const CurrentSchemaVersion = "1.0"

// Config is the top-level structure decoded from the coordinator's HCL
// config file.
type Config struct {
	// @default: "1.0"
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty"`

	// Listen is the gRPC listen address, e.g. ":50051".
	Listen string `hcl:"listen,optional" json:"listen,omitempty"`

	// TLS configures the gRPC server's transport credentials. Nil means
	// grpc.Creds is never set and insecure.NewCredentials() is used instead.
	TLS *TLSConfig `hcl:"tls,block" json:"tls,omitempty"`

	// DBPath is the sqlite database file (or ":memory:").
	// @default: "peeringcoord.db"
	DBPath string `hcl:"db_path,optional" json:"db_path,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	// @default: "info"
	LogLevel string `hcl:"log_level,optional" json:"log_level,omitempty"`

	Metrics *MetricsConfig `hcl:"metrics,block" json:"metrics,omitempty"`

	// BootstrapAdminToken, when set, is strength-checked and bcrypt-hashed
	// at startup (see cmd/peeringcoordd); a token that fails the check stops
	// the daemon. The hash is not stored and nothing is seeded into the
	// database. Empty skips the check.
	BootstrapAdminToken SecureString `hcl:"bootstrap_admin_token,optional" json:"bootstrap_admin_token,omitempty"`
}

// TLSConfig holds the gRPC server's certificate and key paths.
type TLSConfig struct {
	CertFile string `hcl:"cert_file" json:"cert_file,omitempty"`
	KeyFile  string `hcl:"key_file" json:"key_file,omitempty"`
}

// MetricsConfig configures the Prometheus /metrics HTTP listener.
type MetricsConfig struct {
	Listen string `hcl:"listen,optional" json:"listen,omitempty"`

	// PollInterval is parsed with time.ParseDuration; empty uses the
	// collector's built-in default.
	PollInterval string `hcl:"poll_interval,optional" json:"poll_interval,omitempty"`
}

// Defaults applies the zero-value defaults documented on Config's fields.
// HCL's "optional" tag leaves an absent field at its Go zero value, so this
// runs once after decode rather than threading defaults through every call
// site.
func (c *Config) Defaults() {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}
	if c.Listen == "" {
		c.Listen = ":50051"
	}
	if c.DBPath == "" {
		c.DBPath = "peeringcoord.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9090"
	}
}
