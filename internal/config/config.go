// Package config resolves the record a relay is built from, accumulated
// from three layered sources: a JSON file, a config URL, and individual
// flags, each overriding the last.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"lightsocks/internal/key"
	"lightsocks/internal/lserr"
)

// Config is the resolved record a relay is built from.
type Config struct {
	ServerAddr string
	ServerPort int
	LocalAddr  string
	LocalPort  int
	Key        key.Key
}

// wireConfig is the JSON shape of a config file.
type wireConfig struct {
	ServerAddr string `json:"serverAddr"`
	ServerPort int    `json:"serverPort"`
	LocalAddr  string `json:"localAddr"`
	LocalPort  int    `json:"localPort"`
	Password   string `json:"password"`
}

// Draft accumulates config fields from layered sources before Resolve
// applies defaults and validates. A nil pointer field means "unset by
// this layer" so a later layer's explicit value always wins, and an
// earlier layer's value survives if a later one is silent.
type Draft struct {
	ServerAddr *string
	ServerPort *int
	LocalAddr  *string
	LocalPort  *int
	Key        key.Key
}

// MergeFile loads a JSON config file and overlays its fields onto d.
func (d *Draft) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, lserr.ErrInvalidConfigFile)
	}

	var w wireConfig
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, lserr.ErrInvalidConfigFile)
	}

	if w.Password != "" {
		k, err := key.Decode(w.Password)
		if err != nil {
			return fmt.Errorf("config file %q: %w", path, lserr.ErrInvalidConfigFile)
		}
		d.Key = k
	}
	if w.ServerAddr != "" {
		d.ServerAddr = &w.ServerAddr
	}
	if w.ServerPort != 0 {
		d.ServerPort = &w.ServerPort
	}
	if w.LocalAddr != "" {
		d.LocalAddr = &w.LocalAddr
	}
	if w.LocalPort != 0 {
		d.LocalPort = &w.LocalPort
	}
	return nil
}

// MergeURL parses a config URL of the form
// http://<serverAddr>:<serverPort>/#<base64url-key> and overlays its
// fields onto d.
func (d *Draft) MergeURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse config url: %w", lserr.ErrInvalidConfigURL)
	}
	host := u.Hostname()
	if host == "" || u.Fragment == "" {
		return fmt.Errorf("config url missing host or key fragment: %w", lserr.ErrInvalidConfigURL)
	}

	k, err := key.Decode(u.Fragment)
	if err != nil {
		return fmt.Errorf("config url: %w", lserr.ErrInvalidConfigURL)
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("config url: bad port %q: %w", p, lserr.ErrInvalidConfigURL)
		}
	}

	d.ServerAddr = &host
	if port != 0 {
		d.ServerPort = &port
	}
	d.Key = k
	return nil
}

// SetServerAddr overlays an explicit flag value, ignoring the zero value.
func (d *Draft) SetServerAddr(v string) {
	if v != "" {
		d.ServerAddr = &v
	}
}

// SetServerPort overlays an explicit flag value, ignoring the zero value.
func (d *Draft) SetServerPort(v int) {
	if v != 0 {
		d.ServerPort = &v
	}
}

// SetLocalAddr overlays an explicit flag value, ignoring the zero value.
func (d *Draft) SetLocalAddr(v string) {
	if v != "" {
		d.LocalAddr = &v
	}
}

// SetLocalPort overlays an explicit flag value, ignoring the zero value.
func (d *Draft) SetLocalPort(v int) {
	if v != 0 {
		d.LocalPort = &v
	}
}

// SetKey decodes and overlays an explicit -k flag value.
func (d *Draft) SetKey(b64 string) error {
	if b64 == "" {
		return nil
	}
	k, err := key.Decode(b64)
	if err != nil {
		return err
	}
	d.Key = k
	return nil
}

// Role distinguishes the two binaries' default sets.
type Role int

const (
	// RoleLocal applies the local relay's defaults (localAddr, localPort,
	// serverPort) — serverAddr has no default and must come from a
	// source.
	RoleLocal Role = iota
	// RoleServer applies the server relay's defaults (serverAddr,
	// serverPort).
	RoleServer
)

// Resolve applies role-specific defaults and validates the result. The
// key has no default; a draft with no key fails with lserr.ErrMissingKey.
func (d *Draft) Resolve(role Role) (*Config, error) {
	cfg := &Config{Key: d.Key}

	if d.ServerAddr != nil {
		cfg.ServerAddr = *d.ServerAddr
	} else if role == RoleServer {
		cfg.ServerAddr = "0.0.0.0"
	}

	if d.ServerPort != nil {
		cfg.ServerPort = *d.ServerPort
	} else {
		cfg.ServerPort = 8388
	}

	if d.LocalAddr != nil {
		cfg.LocalAddr = *d.LocalAddr
	} else {
		cfg.LocalAddr = "127.0.0.1"
	}

	if d.LocalPort != nil {
		cfg.LocalPort = *d.LocalPort
	} else {
		cfg.LocalPort = 1080
	}

	if cfg.Key == nil {
		return nil, lserr.ErrMissingKey
	}
	if role == RoleLocal && cfg.ServerAddr == "" {
		return nil, fmt.Errorf("%w: need server address, use -s or -u", lserr.ErrInvalidConfigFile)
	}

	return cfg, nil
}

// Save writes cfg to path as 2-space-indented JSON.
func Save(path string, cfg *Config) error {
	w := wireConfig{
		ServerAddr: cfg.ServerAddr,
		ServerPort: cfg.ServerPort,
		LocalAddr:  cfg.LocalAddr,
		LocalPort:  cfg.LocalPort,
		Password:   key.Encode(cfg.Key),
	}
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DumpURL formats cfg as the config URL a peer's -u flag consumes.
func DumpURL(cfg *Config) string {
	return fmt.Sprintf("http://%s:%d/#%s", cfg.ServerAddr, cfg.ServerPort, key.Encode(cfg.Key))
}
