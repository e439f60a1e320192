package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.Port)
	}
	if cfg.EnableSSL {
		t.Error("expected EnableSSL=false by default")
	}
	if cfg.MoveDeadlineMS != 10500 {
		t.Errorf("expected MoveDeadlineMS=10500, got %d", cfg.MoveDeadlineMS)
	}
	if cfg.LiveCheckDeadlineMS != 10000 {
		t.Errorf("expected LiveCheckDeadlineMS=10000, got %d", cfg.LiveCheckDeadlineMS)
	}
	if cfg.MaxNameBytes != 16 {
		t.Errorf("expected MaxNameBytes=16, got %d", cfg.MaxNameBytes)
	}
	if cfg.CommandQueueDepth != 8 {
		t.Errorf("expected CommandQueueDepth=8, got %d", cfg.CommandQueueDepth)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	if cfg.Port != 8080 {
		t.Errorf("expected default Port=8080 with no conf.ini, got %d", cfg.Port)
	}
}

func TestLoadParsesINISections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.ini")
	contents := "[ssl]\nenable_ssl = true\ncertfile = cert.pem\nkeyfile = key.pem\n\n[server]\nport = 9443\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test conf.ini: %v", err)
	}

	cfg := Load(path)
	if !cfg.EnableSSL {
		t.Error("expected EnableSSL=true from conf.ini")
	}
	if cfg.CertFile != "cert.pem" || cfg.KeyFile != "key.pem" {
		t.Errorf("expected cert/key from conf.ini, got %q/%q", cfg.CertFile, cfg.KeyFile)
	}
	if cfg.Port != 9443 {
		t.Errorf("expected Port=9443 from conf.ini, got %d", cfg.Port)
	}
}

func TestLoadSSLEnabledDefaultsPortTo8443(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.ini")
	contents := "[ssl]\nenable_ssl = true\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test conf.ini: %v", err)
	}

	cfg := Load(path)
	if cfg.Port != 8443 {
		t.Errorf("expected Port=8443 when SSL is enabled with no explicit port, got %d", cfg.Port)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("MOVE_DEADLINE_MS", "5000")
	defer func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("MOVE_DEADLINE_MS")
	}()

	cfg := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	if cfg.Port != 9090 {
		t.Errorf("expected Port=9090 after env override, got %d", cfg.Port)
	}
	if cfg.MoveDeadlineMS != 5000 {
		t.Errorf("expected MoveDeadlineMS=5000 after env override, got %d", cfg.MoveDeadlineMS)
	}
	// Non-overridden fields should remain default.
	if cfg.LiveCheckDeadlineMS != 10000 {
		t.Errorf("expected LiveCheckDeadlineMS=10000 (default), got %d", cfg.LiveCheckDeadlineMS)
	}
}

func TestLoadWithInvalidEnv(t *testing.T) {
	os.Setenv("SERVER_PORT", "not-a-number")
	defer os.Unsetenv("SERVER_PORT")

	cfg := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	if cfg.Port != 8080 {
		t.Errorf("expected Port=8080 (default) with invalid env, got %d", cfg.Port)
	}
}
