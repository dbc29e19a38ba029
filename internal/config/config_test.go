package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lightsocks/internal/key"
	"lightsocks/internal/lserr"
)

func mustKey(t *testing.T) key.Key {
	t.Helper()
	k, err := key.Generate()
	if err != nil {
		t.Fatalf("key.Generate: %v", err)
	}
	return k
}

func TestResolveDefaultsLocal(t *testing.T) {
	d := &Draft{Key: mustKey(t)}
	d.SetServerAddr("example.com")
	cfg, err := d.Resolve(RoleLocal)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.LocalAddr != "127.0.0.1" || cfg.LocalPort != 1080 || cfg.ServerPort != 8388 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestResolveDefaultsServer(t *testing.T) {
	d := &Draft{Key: mustKey(t)}
	cfg, err := d.Resolve(RoleServer)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.ServerAddr != "0.0.0.0" || cfg.ServerPort != 8388 {
		t.Fatalf("unexpected server defaults: %+v", cfg)
	}
}

func TestResolveMissingKeyIsFatal(t *testing.T) {
	d := &Draft{}
	d.SetServerAddr("example.com")
	_, err := d.Resolve(RoleLocal)
	if !errors.Is(err, lserr.ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestResolveLocalMissingServerAddr(t *testing.T) {
	d := &Draft{Key: mustKey(t)}
	_, err := d.Resolve(RoleLocal)
	if err == nil {
		t.Fatal("expected error for missing server address")
	}
}

func TestMergeFileThenFlagsPrecedence(t *testing.T) {
	k := mustKey(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	fileCfg := &Config{ServerAddr: "file-host", ServerPort: 9000, LocalAddr: "127.0.0.1", LocalPort: 1080, Key: k}
	if err := Save(path, fileCfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	d := &Draft{}
	if err := d.MergeFile(path); err != nil {
		t.Fatalf("MergeFile: %v", err)
	}
	// A later flag overrides the file's value.
	d.SetServerAddr("flag-host")

	cfg, err := d.Resolve(RoleLocal)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.ServerAddr != "flag-host" {
		t.Fatalf("flag should override file: got %q", cfg.ServerAddr)
	}
	if cfg.ServerPort != 9000 {
		t.Fatalf("file value should survive when flag is silent: got %d", cfg.ServerPort)
	}
}

func TestMergeURL(t *testing.T) {
	k := mustKey(t)
	u := DumpURL(&Config{ServerAddr: "example.com", ServerPort: 1234, Key: k})

	d := &Draft{}
	if err := d.MergeURL(u); err != nil {
		t.Fatalf("MergeURL: %v", err)
	}
	cfg, err := d.Resolve(RoleLocal)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.ServerAddr != "example.com" || cfg.ServerPort != 1234 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if string(cfg.Key) != string(k) {
		t.Fatal("key mismatch after URL round trip")
	}
}

func TestMergeURLRejectsInvalidKey(t *testing.T) {
	d := &Draft{}
	err := d.MergeURL("http://example.com:1234/#not-a-valid-key")
	if !errors.Is(err, lserr.ErrInvalidConfigURL) {
		t.Fatalf("expected ErrInvalidConfigURL, got %v", err)
	}
}

func TestMergeFileRejectsMissingFile(t *testing.T) {
	d := &Draft{}
	err := d.MergeFile(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if !errors.Is(err, lserr.ErrInvalidConfigFile) {
		t.Fatalf("expected ErrInvalidConfigFile, got %v", err)
	}
}

func TestSaveDumpsJSONFields(t *testing.T) {
	k := mustKey(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	cfg := &Config{ServerAddr: "h", ServerPort: 1, LocalAddr: "127.0.0.1", LocalPort: 2, Key: k}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, field := range []string{`"serverAddr"`, `"serverPort"`, `"localAddr"`, `"localPort"`, `"password"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("saved config missing field %s: %s", field, data)
		}
	}
}
