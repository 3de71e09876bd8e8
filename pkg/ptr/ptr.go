package ptr

import (
	"net"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a PTR answer (or a failed lookup) stays cached
const DefaultTTL = 10 * time.Minute

// PtrManager handles PTR lookups with expiring caching
type PtrManager struct {
	cache      *ttlcache.Cache[string, string]
	inflight   singleflight.Group
	lookupFunc func(ip string) ([]string, error)
	retries    int
	retryDelay time.Duration
}

// NewPtrManager creates a new PtrManager
func NewPtrManager() *PtrManager {
	return newPtrManager(net.LookupAddr, 3, 100*time.Millisecond)
}

func newPtrManager(lookup func(ip string) ([]string, error), retries int, retryDelay time.Duration) *PtrManager {
	return &PtrManager{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, string](DefaultTTL),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
		lookupFunc: lookup,
		retries:    retries,
		retryDelay: retryDelay,
	}
}

// RequestPTR looks up the PTR record for ip unless it is already cached. It
// blocks until the record is cached; concurrent callers for the same ip share
// one lookup. A failed lookup is cached as an empty name.
func (pm *PtrManager) RequestPTR(ip string) {
	if pm.cache.Has(ip) {
		return
	}
	pm.inflight.Do(ip, func() (any, error) {
		if !pm.cache.Has(ip) {
			pm.cache.Set(ip, pm.lookup(ip), ttlcache.DefaultTTL)
		}
		return nil, nil
	})
}

// lookup returns the normalized first PTR name of ip, or "" when every
// attempt fails
func (pm *PtrManager) lookup(ip string) string {
	for attempt := range pm.retries {
		if attempt > 0 {
			time.Sleep(pm.retryDelay)
		}
		names, err := pm.lookupFunc(ip)
		if err == nil && len(names) > 0 {
			return normalizePTR(names[0])
		}
	}
	return ""
}

// GetPTR retrieves the cached PTR result for the given IP address
// Returns the PTR and a boolean indicating if it was found
func (pm *PtrManager) GetPTR(ip string) (string, bool) {
	item := pm.cache.Get(ip)
	if item == nil || item.Value() == "" { // unknown or failed
		return "", false
	}
	return item.Value(), true
}

// normalizePTR strips the trailing dot of a fully qualified name
func normalizePTR(name string) string {
	return strings.TrimSuffix(name, ".")
}
