package serial

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	if cfg.Device != "/dev/ttyACM0" {
		t.Errorf("Device = %q", cfg.Device)
	}
	if cfg.Baud != 115200 {
		t.Errorf("Baud = %d, want 115200", cfg.Baud)
	}
	if cfg.ReadTimeout != 100*time.Millisecond {
		t.Errorf("ReadTimeout = %v, want 100ms", cfg.ReadTimeout)
	}
}

func TestOpenNilConfig(t *testing.T) {
	if _, err := Open(nil); err != ErrNoConfig {
		t.Errorf("Expected ErrNoConfig, got %v", err)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if _, err := Open(DefaultConfig("/dev/timer4-does-not-exist")); err == nil {
		t.Error("opening a missing device should fail")
	}
}
