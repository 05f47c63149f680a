package dualmode

import (
	"strings"
	"testing"
	"time"
)

func TestInstanceName(t *testing.T) {
	tests := []struct {
		info DeviceInfo
		want string
	}{
		{DeviceInfo{DeviceID: "a4c138fffe2b1c3d"}, "THS-a4c138fffe2b1c3d"},
		{DeviceInfo{Name: "kitchen"}, "THS-kitchen"},
	}
	for _, tt := range tests {
		if got := InstanceName(tt.info); got != tt.want {
			t.Errorf("InstanceName(%+v) = %q, want %q", tt.info, got, tt.want)
		}
	}

	long := InstanceName(DeviceInfo{DeviceID: strings.Repeat("f", 80)})
	if len(long) != MaxInstanceNameLen {
		t.Errorf("len(InstanceName) = %d, want %d", len(long), MaxInstanceNameLen)
	}
}

func TestTXTRecords(t *testing.T) {
	got := TXTRecords(DeviceInfo{DeviceID: "01", Firmware: "1.2.0"})
	want := []string{"mode=fallback", "id=01", "fw=1.2.0"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("TXTRecords() = %v, want %v", got, want)
	}
}

func TestMDNSAdvertiserStartStop(t *testing.T) {
	adv := NewMDNSAdvertiser(MDNSConfig{TTL: 120 * time.Second})

	if err := adv.Start(DeviceInfo{DeviceID: "a4c138fffe2b1c3d"}); err != nil {
		t.Skipf("mDNS not available: %v", err)
	}
	if !adv.Running() {
		t.Error("Running() = false after Start")
	}

	// Restart replaces the registration.
	if err := adv.Start(DeviceInfo{DeviceID: "a4c138fffe2b1c3d", Firmware: "1.0"}); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	if err := adv.Stop(); err != nil {
		t.Errorf("Stop() = %v", err)
	}
	if adv.Running() {
		t.Error("Running() = true after Stop")
	}
	if err := adv.Stop(); err != nil {
		t.Errorf("second Stop() = %v", err)
	}
}
