package logger

import "testing"

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level info, got %s", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format console, got %s", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected output stdout, got %s", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamp enabled by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Level: "info", Format: "json"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	cfg = Config{Level: "verbose", Format: "json"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid level")
	}

	cfg = Config{Level: "debug", Format: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestFields(t *testing.T) {
	m := Fields(FieldProvider, "primary", FieldLatency, int64(42))

	if m[FieldProvider] != "primary" {
		t.Errorf("expected provider=primary, got %v", m[FieldProvider])
	}
	if m[FieldLatency] != int64(42) {
		t.Errorf("expected latency_ms=42, got %v", m[FieldLatency])
	}
}

func TestFields_IgnoresNonStringKeys(t *testing.T) {
	m := Fields(42, "value", FieldKey, "u1")

	if len(m) != 1 {
		t.Errorf("expected 1 field, got %d", len(m))
	}
	if m[FieldKey] != "u1" {
		t.Errorf("expected key=u1, got %v", m[FieldKey])
	}
}

func TestGet_TagsComponent(t *testing.T) {
	l := Get("health")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNop_DiscardsOutput(t *testing.T) {
	l := Nop()
	l.Info("dropped", Fields(FieldProvider, "primary"))
	l.Error("dropped too")
}
