package zeroconf_test

import (
	"context"
	"testing"
	"time"

	"github.com/micro-nova/modcfg/internal/zeroconf"
)

func TestTXT(t *testing.T) {
	got := zeroconf.TXT(8, 16, 30*time.Second)
	want := []string{"base=8", "size=16", "timeout_ms=30000"}
	if len(got) != len(want) {
		t.Fatalf("TXT() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TXT()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRecordsCopy(t *testing.T) {
	txt := []string{"size=4"}
	svc := zeroconf.New("modcfg-test", 8080, txt)
	r := svc.Records()
	r[0] = "size=99"
	if svc.Records()[0] != "size=4" {
		t.Error("Records() exposes the service's own slice")
	}
}

// TestStart_Cancel verifies that Start returns once its context ends.
func TestStart_Cancel(t *testing.T) {
	svc := zeroconf.New("modcfg-test", 18080, zeroconf.TXT(0, 4, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()

	select {
	case err := <-done:
		// mDNS may be unavailable in a sandbox; returning is what matters.
		if err != nil {
			t.Logf("Start returned error (may be expected in CI): %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return within 3 seconds after context cancellation")
	}
}
