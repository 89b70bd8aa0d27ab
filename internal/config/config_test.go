// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytesAppliesDefaults(t *testing.T) {
	cfg, err := LoadBytes("test.hcl", []byte(``))
	require.NoError(t, err)
	assert.Equal(t, ":50051", cfg.Listen)
	assert.Equal(t, "peeringcoord.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
}

func TestLoadBytesDecodesFields(t *testing.T) {
	doc := `
listen = ":9999"
log_level = "debug"
db_path = "/var/lib/peeringcoord/data.db"
bootstrap_admin_token = "s3cr3t"

tls {
  cert_file = "/etc/peeringcoord/tls.crt"
  key_file  = "/etc/peeringcoord/tls.key"
}

metrics {
  listen = ":9091"
}
`
	cfg, err := LoadBytes("test.hcl", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/peeringcoord/data.db", cfg.DBPath)
	require.NotNil(t, cfg.TLS)
	assert.Equal(t, "/etc/peeringcoord/tls.crt", cfg.TLS.CertFile)
	assert.Equal(t, ":9091", cfg.Metrics.Listen)
	assert.Equal(t, "s3cr3t", string(cfg.BootstrapAdminToken))
}

func TestSecureStringMasksInStringAndJSON(t *testing.T) {
	s := SecureString("s3cr3t")
	assert.Equal(t, "(hidden)", s.String())
	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"(hidden)"`, string(b))

	empty := SecureString("")
	assert.Equal(t, "", empty.String())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := &Config{Listen: ":1", DBPath: "x.db", LogLevel: "verbose"}
	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidateRejectsIncompleteTLS(t *testing.T) {
	cfg := &Config{Listen: ":1", DBPath: "x.db", LogLevel: "info", TLS: &TLSConfig{CertFile: "only.crt"}}
	err := Validate(cfg)
	require.Error(t, err)
}
