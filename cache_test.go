package collcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	c "github.com/unkn0wn-root/collcache/codec"
	"github.com/unkn0wn-root/collcache/operation"
	pr "github.com/unkn0wn-root/collcache/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu sync.Mutex
	m  map[string]memEntry
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = memEntry{v: value, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// fakeSource is a concurrency-safe backing source that counts invocations and
// can block inside fetches until released via gate.
type fakeSource struct {
	mu          sync.Mutex
	data        map[string]item
	oneCalls    map[string]int
	manyCalls   int
	manyBatches [][]string
	allCalls    int
	err         error

	gate    chan struct{} // fetches block on this when non-nil
	started chan struct{} // one signal per fetch entry
}

func newFakeSource(data map[string]item) *fakeSource {
	return &fakeSource{
		data:     data,
		oneCalls: make(map[string]int),
		started:  make(chan struct{}, 32),
	}
}

func (s *fakeSource) enter() {
	s.started <- struct{}{}
	if s.gate != nil {
		<-s.gate
	}
}

func (s *fakeSource) FetchOne(_ context.Context, key string) (item, bool, error) {
	s.enter()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oneCalls[key]++
	if s.err != nil {
		return item{}, false, s.err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeSource) FetchMany(_ context.Context, keys []string) (map[string]item, error) {
	s.enter()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manyCalls++
	s.manyBatches = append(s.manyBatches, append([]string(nil), keys...))
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]item, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *fakeSource) FetchAll(_ context.Context) (map[string]item, error) {
	s.enter()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allCalls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]item, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

func (s *fakeSource) totalOneCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.oneCalls {
		n += c
	}
	return n
}

func (s *fakeSource) oneCallsFor(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oneCalls[key]
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func testOp(syncMode bool, regions ...string) operation.Operation {
	if len(regions) == 0 {
		regions = []string{"items"}
	}
	return operation.Operation{
		Name:       "ItemRepository.FindByID",
		CacheNames: regions,
		Sync:       syncMode,
	}
}

func newTestCache(t *testing.T, op operation.Operation, src *fakeSource, optsOpt func(*Options[string, item])) Cache[string, item] {
	t.Helper()
	opts := Options[string, item]{
		Operation: op,
		Provider:  newMemProvider(),
		Codec:     c.JSON[item]{},
		Source:    src,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New[string, item](opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(context.Background()) })
	return cc
}

func seed() map[string]item {
	return map[string]item{
		"i:1": {ID: "i:1", Name: "one"},
		"i:2": {ID: "i:2", Name: "two"},
		"i:3": {ID: "i:3", Name: "three"},
	}
}

// ==============================
// GetOne
// ==============================

func TestGetOneCachesPerKey(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	for i := 0; i < 2; i++ {
		v, ok, err := cc.GetOne(ctx, "i:1")
		if err != nil || !ok {
			t.Fatalf("GetOne #%d: ok=%v err=%v", i, ok, err)
		}
		if v.Name != "one" {
			t.Fatalf("GetOne #%d: v=%+v", i, v)
		}
	}
	if n := src.oneCallsFor("i:1"); n != 1 {
		t.Fatalf("FetchOne calls = %d, want 1", n)
	}
}

func TestGetOneAbsenceIsNotCached(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	for i := 0; i < 2; i++ {
		if _, ok, err := cc.GetOne(ctx, "nope"); err != nil || ok {
			t.Fatalf("GetOne #%d: ok=%v err=%v", i, ok, err)
		}
	}
	// absence must not become a negative entry
	if n := src.oneCallsFor("nope"); n != 2 {
		t.Fatalf("FetchOne calls = %d, want 2", n)
	}
}

func TestGetOneSourceErrorDoesNotPoisonCache(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	boom := errors.New("db down")
	src.setErr(boom)
	if _, _, err := cc.GetOne(ctx, "i:1"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	src.setErr(nil)
	v, ok, err := cc.GetOne(ctx, "i:1")
	if err != nil || !ok || v.Name != "one" {
		t.Fatalf("after recovery: ok=%v err=%v v=%+v", ok, err, v)
	}
	if n := src.oneCallsFor("i:1"); n != 2 {
		t.Fatalf("FetchOne calls = %d, want 2", n)
	}
}

func TestCorruptEntrySelfHeals(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	mp := newMemProvider()
	cc := newTestCache(t, testOp(false), src, func(o *Options[string, item]) { o.Provider = mp })

	if _, err := mp.Set(ctx, "entry:items:i:1", []byte("garbage"), 0); err != nil {
		t.Fatal(err)
	}

	v, ok, err := cc.GetOne(ctx, "i:1")
	if err != nil || !ok || v.Name != "one" {
		t.Fatalf("GetOne: ok=%v err=%v v=%+v", ok, err, v)
	}
	if n := src.oneCallsFor("i:1"); n != 1 {
		t.Fatalf("FetchOne calls = %d, want 1", n)
	}
	// healed entry now serves hits
	if _, ok, _ := cc.GetOne(ctx, "i:1"); !ok {
		t.Fatal("expected hit after heal")
	}
	if n := src.oneCallsFor("i:1"); n != 1 {
		t.Fatalf("FetchOne calls after heal = %d, want 1", n)
	}
}

// ==============================
// GetMany
// ==============================

func TestGetManyAllCachedSkipsSource(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	mustGetOne(t, cc, "i:1")
	mustGetOne(t, cc, "i:2")

	got, err := cc.GetMany(ctx, []string{"i:1", "i:2"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 2 || got["i:1"].Name != "one" || got["i:2"].Name != "two" {
		t.Fatalf("got = %v", got)
	}
	if src.manyCalls != 0 {
		t.Fatalf("FetchMany calls = %d, want 0", src.manyCalls)
	}
}

func TestGetManyFetchesOnlyMissingSubsetInOneBatch(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	mustGetOne(t, cc, "i:1")

	got, err := cc.GetMany(ctx, []string{"i:1", "i:2", "i:3"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got = %v", got)
	}
	if src.manyCalls != 1 {
		t.Fatalf("FetchMany calls = %d, want 1", src.manyCalls)
	}
	batch := src.manyBatches[0]
	if len(batch) != 2 || batch[0] != "i:2" || batch[1] != "i:3" {
		t.Fatalf("batch = %v, want [i:2 i:3]", batch)
	}

	// batch-fetched keys are now individually cached
	mustGetOne(t, cc, "i:2")
	if n := src.oneCallsFor("i:2"); n != 0 {
		t.Fatalf("FetchOne(i:2) calls = %d, want 0", n)
	}
}

func TestGetManyEmptyKeySet(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	got, err := cc.GetMany(ctx, nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("got=%v err=%v", got, err)
	}
	if src.manyCalls != 0 || src.totalOneCalls() != 0 || src.allCalls != 0 {
		t.Fatal("empty key set must not touch the source")
	}
}

func TestGetManyOmitsUnsatisfiedKeys(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	got, err := cc.GetMany(ctx, []string{"i:1", "ghost"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 1 || got["i:1"].Name != "one" {
		t.Fatalf("got = %v", got)
	}
	if _, ok := got["ghost"]; ok {
		t.Fatal("unsatisfied key must be omitted, not present")
	}
}

func TestGetManyCollapsesDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	got, err := cc.GetMany(ctx, []string{"i:1", "i:1", "i:1"})
	if err != nil || len(got) != 1 {
		t.Fatalf("got=%v err=%v", got, err)
	}
	if len(src.manyBatches[0]) != 1 {
		t.Fatalf("batch = %v, want single key", src.manyBatches[0])
	}
}

func TestGetManySourceErrorPropagates(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	boom := errors.New("db down")
	src.setErr(boom)
	if _, err := cc.GetMany(ctx, []string{"i:1"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	src.setErr(nil)
	got, err := cc.GetMany(ctx, []string{"i:1"})
	if err != nil || got["i:1"].Name != "one" {
		t.Fatalf("after recovery: got=%v err=%v", got, err)
	}
}

// ==============================
// GetAll
// ==============================

func TestGetAllSeedsPerKeyCache(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	all, err := cc.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %v", all)
	}

	// every returned key must now be an individual hit
	mustGetOne(t, cc, "i:1")
	if _, err := cc.GetMany(ctx, []string{"i:2", "i:3"}); err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if src.totalOneCalls() != 0 || src.manyCalls != 0 {
		t.Fatalf("source consulted after GetAll: one=%d many=%d", src.totalOneCalls(), src.manyCalls)
	}
	if src.allCalls != 1 {
		t.Fatalf("FetchAll calls = %d, want 1", src.allCalls)
	}
}

func TestGetAllAlwaysFetches(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	if _, err := cc.GetAll(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := cc.GetAll(ctx); err != nil {
		t.Fatal(err)
	}
	// a full scan is authoritative; it never short-circuits on cached state
	if src.allCalls != 2 {
		t.Fatalf("FetchAll calls = %d, want 2", src.allCalls)
	}
}

// ==============================
// Invalidate / regions
// ==============================

func TestInvalidateForcesRefetch(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, nil)

	mustGetOne(t, cc, "i:1")
	if err := cc.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	mustGetOne(t, cc, "i:1")
	if n := src.oneCallsFor("i:1"); n != 2 {
		t.Fatalf("FetchOne calls = %d, want 2", n)
	}
}

func TestInvalidationDuringFetchWins(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	src.gate = make(chan struct{})
	cc := newTestCache(t, testOp(false), src, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ok, err := cc.GetOne(ctx, "i:1"); err != nil || !ok {
			t.Errorf("GetOne during invalidate: ok=%v err=%v", ok, err)
		}
	}()

	<-src.started // fetch in progress, epoch already observed
	if err := cc.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	close(src.gate)
	<-done

	// the stale write must have been skipped: next read misses and refetches
	mustGetOne(t, cc, "i:1")
	if n := src.oneCallsFor("i:1"); n != 2 {
		t.Fatalf("FetchOne calls = %d, want 2", n)
	}
}

func TestMultiRegionReadsFallThroughInOrder(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	mp := newMemProvider()
	cc := newTestCache(t, testOp(false, "hot", "items"), src, func(o *Options[string, item]) { o.Provider = mp })

	mustGetOne(t, cc, "i:1") // populates both regions

	// drop the first region's copy; the second still serves the hit
	if err := mp.Del(ctx, "entry:hot:i:1"); err != nil {
		t.Fatal(err)
	}
	mustGetOne(t, cc, "i:1")
	if n := src.oneCallsFor("i:1"); n != 1 {
		t.Fatalf("FetchOne calls = %d, want 1", n)
	}
}

// ==============================
// Disabled / pass-through
// ==============================

func TestDisabledCachePassesThrough(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	cc := newTestCache(t, testOp(false), src, func(o *Options[string, item]) { o.Disabled = true })

	if cc.Enabled() {
		t.Fatal("Enabled() should be false")
	}
	mustGetOne(t, cc, "i:1")
	mustGetOne(t, cc, "i:1")
	if n := src.oneCallsFor("i:1"); n != 2 {
		t.Fatalf("FetchOne calls = %d, want 2 (no caching when disabled)", n)
	}
	if _, err := cc.GetMany(ctx, []string{"i:1", "i:2"}); err != nil {
		t.Fatal(err)
	}
	if src.manyCalls != 1 {
		t.Fatalf("FetchMany calls = %d, want 1", src.manyCalls)
	}
}

// ==============================
// sync single-flight
// ==============================

func TestSyncConcurrentGetOneSingleFetch(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	src.gate = make(chan struct{})
	cc := newTestCache(t, testOp(true), src, nil)

	const n = 8
	var wg sync.WaitGroup
	results := make([]item, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, ok, err := cc.GetOne(ctx, "i:1")
			if err != nil || !ok {
				t.Errorf("GetOne[%d]: ok=%v err=%v", i, ok, err)
				return
			}
			results[i] = v
		}(i)
	}

	<-src.started // exactly one goroutine reached the source
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	if n := src.oneCallsFor("i:1"); n != 1 {
		t.Fatalf("FetchOne calls = %d, want 1", n)
	}
	for i, v := range results {
		if v.Name != "one" {
			t.Fatalf("result[%d] = %+v", i, v)
		}
	}
}

func TestSyncGetOneJoinsInFlightBatch(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	src.gate = make(chan struct{})
	cc := newTestCache(t, testOp(true), src, nil)

	manyDone := make(chan map[string]item, 1)
	go func() {
		got, err := cc.GetMany(ctx, []string{"i:1", "i:2"})
		if err != nil {
			t.Errorf("GetMany: %v", err)
		}
		manyDone <- got
	}()

	<-src.started // batch claimed its keys and reached the source

	oneDone := make(chan item, 1)
	go func() {
		v, ok, err := cc.GetOne(ctx, "i:1")
		if err != nil || !ok {
			t.Errorf("GetOne: ok=%v err=%v", ok, err)
		}
		oneDone <- v
	}()

	time.Sleep(50 * time.Millisecond) // let GetOne join the flight
	close(src.gate)

	got := <-manyDone
	one := <-oneDone
	if len(got) != 2 || got["i:1"].Name != "one" || got["i:2"].Name != "two" {
		t.Fatalf("GetMany = %v", got)
	}
	if one.Name != "one" {
		t.Fatalf("GetOne = %+v", one)
	}
	if src.manyCalls != 1 {
		t.Fatalf("FetchMany calls = %d, want 1", src.manyCalls)
	}
	if src.totalOneCalls() != 0 {
		t.Fatalf("FetchOne calls = %d, want 0 (joined the batch)", src.totalOneCalls())
	}
}

func TestSyncFlightErrorReachesWaiters(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(seed())
	src.gate = make(chan struct{})
	boom := errors.New("db down")
	cc := newTestCache(t, testOp(true), src, nil)

	src.setErr(boom)

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = cc.GetOne(ctx, "i:1")
		}(i)
	}

	<-src.started
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, boom) {
			t.Fatalf("errs[%d] = %v, want boom", i, err)
		}
	}
	if n := src.oneCallsFor("i:1"); n != 1 {
		t.Fatalf("FetchOne calls = %d, want 1", n)
	}
}

// ==============================
// construction
// ==============================

func TestNewRejectsMissingPieces(t *testing.T) {
	src := newFakeSource(seed())
	base := Options[string, item]{
		Operation: testOp(false),
		Provider:  newMemProvider(),
		Codec:     c.JSON[item]{},
		Source:    src,
	}

	cases := map[string]func(*Options[string, item]){
		"provider": func(o *Options[string, item]) { o.Provider = nil },
		"codec":    func(o *Options[string, item]) { o.Codec = nil },
		"source":   func(o *Options[string, item]) { o.Source = nil },
		"regions":  func(o *Options[string, item]) { o.Operation.CacheNames = nil },
	}
	for name, mutate := range cases {
		opts := base
		mutate(&opts)
		if _, err := New[string, item](opts); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func mustGetOne(t *testing.T, cc Cache[string, item], key string) item {
	t.Helper()
	v, ok, err := cc.GetOne(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("GetOne(%s): ok=%v err=%v", key, ok, err)
	}
	return v
}
