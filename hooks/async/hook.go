// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/collcache"
//	asynchook "github.com/unkn0wn-root/collcache/hooks/async"
//	"github.com/unkn0wn-root/collcache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery:   10, // sample logs: ~every 10th self-heal
//	    BatchFetchEvery: 1,  // log every batched fetch
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	cache, _ := collcache.New[string, Item](collcache.Options[string, Item]{
//	    Operation: op,
//	    Provider:  provider,
//	    Codec:     codec.JSON[Item]{},
//	    Source:    src,
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/collcache"
)

type Hooks struct {
	inner collcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ collcache.Hooks = (*Hooks)(nil)

func New(inner collcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SelfHeal(k, r string)        { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) BatchFetch(rg string, n int) { h.try(func() { h.inner.BatchFetch(rg, n) }) }
func (h *Hooks) FlightJoined(k string)       { h.try(func() { h.inner.FlightJoined(k) }) }
func (h *Hooks) ProviderSetRejected(k string) {
	h.try(func() { h.inner.ProviderSetRejected(k) })
}
func (h *Hooks) EpochSnapshotError(rg string, err error) {
	h.try(func() { h.inner.EpochSnapshotError(rg, err) })
}
func (h *Hooks) EpochBumpError(rg string, err error) {
	h.try(func() { h.inner.EpochBumpError(rg, err) })
}
