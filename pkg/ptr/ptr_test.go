package ptr

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

func Test_normalizePTR(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"example.com.", "example.com"},
		{"example.com", "example.com"},
		{"", ""},
		{".", ""},
	}

	for _, tt := range tests {
		if got := normalizePTR(tt.input); got != tt.want {
			t.Errorf("normalizePTR(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewPtrManager(t *testing.T) {
	pm := NewPtrManager()

	if pm == nil || pm.cache == nil || pm.lookupFunc == nil {
		t.Fatal("NewPtrManager() returned invalid manager")
	}

	if pm.retries != 3 || pm.retryDelay != 100*time.Millisecond {
		t.Errorf("NewPtrManager() retries=%d delay=%v, want 3 and 100ms", pm.retries, pm.retryDelay)
	}
}

func TestPtrManager_RequestPTR(t *testing.T) {
	t.Run("successful lookup and cache", func(t *testing.T) {
		pm := newPtrManager(func(ip string) ([]string, error) {
			return []string{"upf1.example.com."}, nil
		}, 1, 0)

		pm.RequestPTR("192.0.2.1")

		if ptr, found := pm.GetPTR("192.0.2.1"); !found || ptr != "upf1.example.com" {
			t.Errorf("GetPTR() = (%q, %v), want (\"upf1.example.com\", true)", ptr, found)
		}
	})

	t.Run("already cached skips lookup", func(t *testing.T) {
		pm := newPtrManager(func(ip string) ([]string, error) {
			t.Fatal("lookupFunc should not be called for cached IP")
			return nil, nil
		}, 1, 0)
		pm.cache.Set("192.0.2.1", "cached.com", ttlcache.DefaultTTL)

		pm.RequestPTR("192.0.2.1")

		if ptr, _ := pm.GetPTR("192.0.2.1"); ptr != "cached.com" {
			t.Errorf("GetPTR() = %q, want \"cached.com\"", ptr)
		}
	})

	t.Run("failed lookup is cached", func(t *testing.T) {
		pm := newPtrManager(func(ip string) ([]string, error) {
			return nil, errors.New("lookup failed")
		}, 1, 0)

		pm.RequestPTR("192.0.2.1")

		if ptr, found := pm.GetPTR("192.0.2.1"); found {
			t.Errorf("GetPTR() = (%q, %v), want empty and not found", ptr, found)
		}
		if !pm.cache.Has("192.0.2.1") {
			t.Error("failed lookup should stay cached to avoid repeated lookups")
		}
	})

	t.Run("retries until success", func(t *testing.T) {
		var calls atomic.Int32
		pm := newPtrManager(func(ip string) ([]string, error) {
			if calls.Add(1) < 3 {
				return nil, errors.New("temporary failure")
			}
			return []string{"sgw.example.net."}, nil
		}, 3, 0)

		pm.RequestPTR("198.51.100.7")

		if got := calls.Load(); got != 3 {
			t.Errorf("lookup calls = %d, want 3", got)
		}
		if ptr, found := pm.GetPTR("198.51.100.7"); !found || ptr != "sgw.example.net" {
			t.Errorf("GetPTR() = (%q, %v), want (\"sgw.example.net\", true)", ptr, found)
		}
	})
}

func TestPtrManager_GetPTR(t *testing.T) {
	tests := []struct {
		name      string
		cache     map[string]string
		ip        string
		wantPTR   string
		wantFound bool
	}{
		{"found", map[string]string{"192.0.2.1": "example.com"}, "192.0.2.1", "example.com", true},
		{"not found", map[string]string{}, "192.0.2.1", "", false},
		{"failed lookup", map[string]string{"192.0.2.1": ""}, "192.0.2.1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := newPtrManager(nil, 1, 0)
			for ip, name := range tt.cache {
				pm.cache.Set(ip, name, ttlcache.DefaultTTL)
			}
			ptr, found := pm.GetPTR(tt.ip)

			if ptr != tt.wantPTR || found != tt.wantFound {
				t.Errorf("GetPTR() = (%q, %v), want (%q, %v)", ptr, found, tt.wantPTR, tt.wantFound)
			}
		})
	}
}

func TestPtrManager_Expiry(t *testing.T) {
	pm := newPtrManager(nil, 1, 0)
	pm.cache.Set("192.0.2.1", "short.example.com", 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	if ptr, found := pm.GetPTR("192.0.2.1"); found {
		t.Errorf("GetPTR() = (%q, %v) after expiry, want not found", ptr, found)
	}
}

func TestPtrManager_Concurrency(t *testing.T) {
	pm := newPtrManager(func(ip string) ([]string, error) {
		time.Sleep(time.Millisecond)
		return []string{ip + ".example.com."}, nil
	}, 1, 0)

	var wg sync.WaitGroup
	ips := []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"}

	// Concurrent requests for same IPs
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, ip := range ips {
				pm.RequestPTR(ip)
				pm.GetPTR(ip)
			}
		}()
	}

	wg.Wait()

	// Verify all lookups completed
	for _, ip := range ips {
		if ptr, found := pm.GetPTR(ip); !found || ptr != ip+".example.com" {
			t.Errorf("IP %s: GetPTR() = (%q, %v), want (%q, true)", ip, ptr, found, ip+".example.com")
		}
	}
}

func TestPtrManager_SharedLookup(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	pm := newPtrManager(func(ip string) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"upf1.example.com."}, nil
	}, 1, 0)

	// Two targets on the same IP, different ports
	var wg sync.WaitGroup
	results := make([]string, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pm.RequestPTR("192.0.2.1")
			results[i], _ = pm.GetPTR("192.0.2.1")
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, ptr := range results {
		if ptr != "upf1.example.com" {
			t.Errorf("caller %d: GetPTR() = %q, want \"upf1.example.com\"", i, ptr)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("lookup calls = %d, want 1", got)
	}
}
