package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skillsenselab/loaderkit/errors"
)

// countingFactory returns a factory that counts invocations and yields a
// fixed instance.
func countingFactory(count *atomic.Int32, instance any) Factory {
	return func(ctx context.Context) (any, error) {
		count.Add(1)
		return instance, nil
	}
}

func failingFactory(msg string) Factory {
	return func(ctx context.Context) (any, error) {
		return nil, fmt.Errorf("%s", msg)
	}
}

func instanceFactory(instance any) Factory {
	return func(ctx context.Context) (any, error) {
		return instance, nil
	}
}

func TestRegisterAndStatus(t *testing.T) {
	r := New()
	r.Register("csrf", instanceFactory("guard"))

	status, ok := r.StatusOf("csrf")
	if !ok {
		t.Fatal("expected component to be known")
	}
	if status != StatusPending {
		t.Errorf("expected pending, got %s", status)
	}
}

func TestRegisterDuplicateIsNoOp(t *testing.T) {
	r := New()
	var first, second atomic.Int32
	r.Register("csrf", countingFactory(&first, "one"))
	r.Register("csrf", countingFactory(&second, "two"))

	instance, err := r.Load(context.Background(), "csrf")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if instance != "one" {
		t.Errorf("expected original factory to win, got %v", instance)
	}
	if second.Load() != 0 {
		t.Error("duplicate registration must never replace the factory")
	}
}

func TestLoadUnknownComponent(t *testing.T) {
	r := New()
	_, err := r.Load(context.Background(), "ghost")
	if !errors.IsCode(err, errors.ErrCodeUnknownComponent) {
		t.Errorf("expected UNKNOWN_COMPONENT, got %v", err)
	}
}

func TestLoadCachesInstance(t *testing.T) {
	r := New()
	var count atomic.Int32
	r.Register("csrf", countingFactory(&count, "guard"))

	for i := 0; i < 3; i++ {
		instance, err := r.Load(context.Background(), "csrf")
		if err != nil {
			t.Fatalf("Load %d failed: %v", i, err)
		}
		if instance != "guard" {
			t.Errorf("expected cached instance, got %v", instance)
		}
	}
	if count.Load() != 1 {
		t.Errorf("expected exactly one factory invocation, got %d", count.Load())
	}
}

func TestLoadForceReinvokesFactory(t *testing.T) {
	r := New()
	var count atomic.Int32
	r.Register("csrf", countingFactory(&count, "guard"))

	if _, err := r.Load(context.Background(), "csrf"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := r.Load(context.Background(), "csrf", Force()); err != nil {
		t.Fatalf("forced Load failed: %v", err)
	}
	if count.Load() != 2 {
		t.Errorf("expected two invocations with Force, got %d", count.Load())
	}
}

func TestSingleflight(t *testing.T) {
	r := New()
	var count atomic.Int32
	release := make(chan struct{})
	r.Register("slow", func(ctx context.Context) (any, error) {
		count.Add(1)
		<-release
		return "done", nil
	})

	const callers = 8
	results := make([]any, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Load(context.Background(), "slow")
		}(i)
	}

	// Let the callers pile up on the single flight before releasing it.
	deadline := time.Now().Add(2 * time.Second)
	for count.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("factory never started")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i] != "done" {
			t.Errorf("caller %d got %v", i, results[i])
		}
	}
	if count.Load() != 1 {
		t.Errorf("expected exactly one factory invocation across concurrent loads, got %d", count.Load())
	}
}

func TestDependencyOrdering(t *testing.T) {
	r := New()
	var order []string
	var mu sync.Mutex
	track := func(name string) Factory {
		return func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
	}

	r.Register("store", track("store"))
	r.Register("cache", track("cache"))
	r.Register("api", track("api"), WithDependencies("store", "cache"))

	if _, err := r.Load(context.Background(), "api"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(order) != 3 {
		t.Fatalf("expected 3 factory invocations, got %v", order)
	}
	if order[0] != "store" || order[1] != "cache" || order[2] != "api" {
		t.Errorf("expected declaration-order resolution [store cache api], got %v", order)
	}
	if !r.IsLoaded("store") || !r.IsLoaded("cache") {
		t.Error("expected dependencies to be loaded")
	}
}

func TestDependencyFailureSkipsDependentFactory(t *testing.T) {
	r := New()
	var dependentRan atomic.Int32
	r.Register("broken", failingFactory("boom"))
	r.Register("api", countingFactory(&dependentRan, "api"), WithDependencies("broken"))

	_, err := r.Load(context.Background(), "api")
	if err == nil {
		t.Fatal("expected dependency failure to propagate")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected cause in error, got %v", err)
	}
	if dependentRan.Load() != 0 {
		t.Error("dependent factory must not run when a dependency fails")
	}
	if status, _ := r.StatusOf("broken"); status != StatusError {
		t.Errorf("expected dependency in error status, got %s", status)
	}
}

func TestUnknownDependency(t *testing.T) {
	r := New()
	var ran atomic.Int32
	r.Register("api", countingFactory(&ran, "api"), WithDependencies("missing"))

	_, err := r.Load(context.Background(), "api")
	if !errors.IsCode(err, errors.ErrCodeUnknownDependency) {
		t.Errorf("expected UNKNOWN_DEPENDENCY, got %v", err)
	}
	if ran.Load() != 0 {
		t.Error("factory must not run with an unknown dependency")
	}
}

func TestDependencyCycle(t *testing.T) {
	r := New()
	r.Register("a", instanceFactory("a"), WithDependencies("b"))
	r.Register("b", instanceFactory("b"), WithDependencies("a"))

	_, err := r.Load(context.Background(), "a")
	if !errors.IsCode(err, errors.ErrCodeDependencyCycle) {
		t.Errorf("expected DEPENDENCY_CYCLE, got %v", err)
	}
}

// Concurrent top-level loads of two mutually dependent components must not
// wait on each other's in-flight load forever; both callers get a cycle
// error.
func TestConcurrentLoadsOnMutualCycle(t *testing.T) {
	r := New()
	r.Register("a", instanceFactory("a"), WithDependencies("b"))
	r.Register("b", instanceFactory("b"), WithDependencies("a"))

	results := make(chan error, 2)
	for _, name := range []string{"a", "b"} {
		go func() {
			_, err := r.Load(context.Background(), name)
			results <- err
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if !errors.IsCode(err, errors.ErrCodeDependencyCycle) {
				t.Errorf("expected DEPENDENCY_CYCLE, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("loads deadlocked on a mutual cycle")
		}
	}
}

func TestFactoryFailureSetsErrorStatus(t *testing.T) {
	r := New()
	r.Register("z", failingFactory("boom"))

	_, err := r.Load(context.Background(), "z")
	if err == nil {
		t.Fatal("expected load to fail")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected message to contain 'boom', got %q", err.Error())
	}
	if !errors.IsCode(err, errors.ErrCodeLoaderFailure) {
		t.Errorf("expected LOADER_FAILURE, got %v", err)
	}
	if status, _ := r.StatusOf("z"); status != StatusError {
		t.Errorf("expected error status, got %s", status)
	}
}

func TestErrorStatusAllowsRetry(t *testing.T) {
	r := New()
	var attempts atomic.Int32
	r.Register("flaky", func(ctx context.Context) (any, error) {
		if attempts.Add(1) == 1 {
			return nil, fmt.Errorf("cold start")
		}
		return "warm", nil
	})

	if _, err := r.Load(context.Background(), "flaky"); err == nil {
		t.Fatal("expected first load to fail")
	}
	instance, err := r.Load(context.Background(), "flaky")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if instance != "warm" {
		t.Errorf("expected retried instance, got %v", instance)
	}
	if status, _ := r.StatusOf("flaky"); status != StatusLoaded {
		t.Errorf("expected loaded after retry, got %s", status)
	}
}

func TestLoadTimeout(t *testing.T) {
	r := New()
	r.Register("stuck", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		time.Sleep(5 * time.Second) // settle long after the deadline
		return "late", nil
	})

	start := time.Now()
	_, err := r.Load(context.Background(), "stuck", WithTimeout(50*time.Millisecond))
	elapsed := time.Since(start)

	if !errors.IsCode(err, errors.ErrCodeLoadTimeout) {
		t.Fatalf("expected LOAD_TIMEOUT, got %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("expected rejection near the timeout, took %s", elapsed)
	}
	if status, _ := r.StatusOf("stuck"); status != StatusError {
		t.Errorf("expected error status after timeout, got %s", status)
	}
}

func TestLateFactoryResultDoesNotOverwriteTimeout(t *testing.T) {
	r := New()
	release := make(chan struct{})
	r.Register("slow", func(ctx context.Context) (any, error) {
		<-release
		return "late", nil
	})

	_, err := r.Load(context.Background(), "slow", WithTimeout(30*time.Millisecond))
	if !errors.IsCode(err, errors.ErrCodeLoadTimeout) {
		t.Fatalf("expected LOAD_TIMEOUT, got %v", err)
	}

	close(release)
	time.Sleep(30 * time.Millisecond)

	if status, _ := r.StatusOf("slow"); status != StatusError {
		t.Errorf("late factory result must be discarded, got status %s", status)
	}
	if _, ok := r.Get("slow"); ok {
		t.Error("late instance must not be stored")
	}
}

func TestGetNeverLoads(t *testing.T) {
	r := New()
	var count atomic.Int32
	r.Register("csrf", countingFactory(&count, "guard"))

	if _, ok := r.Get("csrf"); ok {
		t.Error("Get must not return an instance before load")
	}
	if count.Load() != 0 {
		t.Error("Get must never trigger a load")
	}

	if _, err := r.Load(context.Background(), "csrf"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	instance, ok := r.Get("csrf")
	if !ok || instance != "guard" {
		t.Errorf("expected loaded instance from Get, got %v (%v)", instance, ok)
	}
}

func TestUnloadRequiredRefused(t *testing.T) {
	r := New()
	r.Register("auth", instanceFactory("auth"), Required())
	if _, err := r.Load(context.Background(), "auth"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ok, err := r.Unload("auth")
	if err != nil {
		t.Fatalf("Unload errored: %v", err)
	}
	if ok {
		t.Error("required component must never unload")
	}
	if !r.IsLoaded("auth") {
		t.Error("required component must stay loaded")
	}
}

func TestUnloadWithLoadedDependentRefused(t *testing.T) {
	r := New()
	r.Register("a", instanceFactory("a"))
	r.Register("b", instanceFactory("b"), WithDependencies("a"))
	if _, err := r.Load(context.Background(), "b"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ok, err := r.Unload("a")
	if err != nil {
		t.Fatalf("Unload errored: %v", err)
	}
	if ok {
		t.Error("unload must be refused while a loaded component depends on it")
	}
	if !r.IsLoaded("a") {
		t.Error("refused unload must leave the component loaded")
	}

	deps := r.Dependents("a")
	if len(deps) != 1 || deps[0].Name != "b" {
		t.Errorf("expected [b] as dependents, got %v", deps)
	}
}

func TestUnloadAfterDependentUnloaded(t *testing.T) {
	r := New()
	r.Register("a", instanceFactory("a"))
	r.Register("b", instanceFactory("b"), WithDependencies("a"))
	if _, err := r.Load(context.Background(), "b"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if ok, _ := r.Unload("b"); !ok {
		t.Fatal("expected b to unload")
	}
	if ok, _ := r.Unload("a"); !ok {
		t.Error("expected a to unload once its dependent is gone")
	}
}

func TestUnloadThenReload(t *testing.T) {
	r := New()
	var count atomic.Int32
	r.Register("c", countingFactory(&count, "c"))

	if _, err := r.Load(context.Background(), "c"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	ok, err := r.Unload("c")
	if err != nil || !ok {
		t.Fatalf("Unload failed: ok=%v err=%v", ok, err)
	}
	if status, _ := r.StatusOf("c"); status != StatusUnloaded {
		t.Errorf("expected unloaded, got %s", status)
	}

	if _, err := r.Load(context.Background(), "c"); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if count.Load() != 2 {
		t.Errorf("expected reload to re-invoke the factory, got %d calls", count.Load())
	}
}

func TestUnloadUnknownComponent(t *testing.T) {
	r := New()
	_, err := r.Unload("ghost")
	if !errors.IsCode(err, errors.ErrCodeUnknownComponent) {
		t.Errorf("expected UNKNOWN_COMPONENT, got %v", err)
	}
}

func TestUnloadNotLoadedRefused(t *testing.T) {
	r := New()
	r.Register("c", instanceFactory("c"))
	ok, err := r.Unload("c")
	if err != nil {
		t.Fatalf("Unload errored: %v", err)
	}
	if ok {
		t.Error("unload of a pending component must be refused")
	}
}

func TestLoadRequiredPriorityOrder(t *testing.T) {
	r := New()
	var order []string
	var mu sync.Mutex
	track := func(name string) Factory {
		return func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
	}

	r.Register("third", track("third"), Required(), WithPriority(30))
	r.Register("first", track("first"), Required(), WithPriority(10))
	r.Register("second-a", track("second-a"), Required(), WithPriority(20))
	r.Register("second-b", track("second-b"), Required(), WithPriority(20))
	r.Register("optional", track("optional"), WithPriority(1))

	if err := r.LoadRequired(context.Background()); err != nil {
		t.Fatalf("LoadRequired failed: %v", err)
	}

	want := []string{"first", "second-a", "second-b", "third"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
	if r.IsLoaded("optional") {
		t.Error("LoadRequired must not touch optional components")
	}
}

func TestLoadRequiredFailFast(t *testing.T) {
	r := New()
	var lateRan atomic.Int32
	r.Register("ok", instanceFactory("ok"), Required(), WithPriority(10))
	r.Register("bad", failingFactory("boom"), Required(), WithPriority(20))
	r.Register("late", countingFactory(&lateRan, "late"), Required(), WithPriority(30))

	err := r.LoadRequired(context.Background())
	if err == nil {
		t.Fatal("expected LoadRequired to fail")
	}
	if lateRan.Load() != 0 {
		t.Error("a required failure must abort the remaining batch")
	}
	if !r.IsLoaded("ok") {
		t.Error("components loaded before the failure stay loaded")
	}
}

func TestRequiredWithDependency(t *testing.T) {
	r := New()
	var order []string
	var mu sync.Mutex
	track := func(name string) Factory {
		return func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
	}

	r.Register("x", track("x"), Required(), WithPriority(10))
	r.Register("y", track("y"), Required(), WithPriority(20), WithDependencies("x"))

	if err := r.LoadRequired(context.Background()); err != nil {
		t.Fatalf("LoadRequired failed: %v", err)
	}
	if len(order) != 2 || order[0] != "x" || order[1] != "y" {
		t.Errorf("expected x before y, got %v", order)
	}
	if !r.IsLoaded("x") || !r.IsLoaded("y") {
		t.Error("expected both components loaded")
	}
}

func TestInitializeImmediateLoadsRequired(t *testing.T) {
	r := New()
	r.Register("auth", instanceFactory("auth"), Required())
	r.Register("extra", instanceFactory("extra"))

	if err := r.Initialize(context.Background(), ModeImmediate); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !r.IsLoaded("auth") {
		t.Error("immediate mode must load required components")
	}
	if r.IsLoaded("extra") {
		t.Error("immediate mode must not load optional components")
	}
}

func TestInitializeDeferredLoadsNothing(t *testing.T) {
	r := New()
	var count atomic.Int32
	r.Register("auth", countingFactory(&count, "auth"), Required())

	if err := r.Initialize(context.Background(), ModeDeferred); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if count.Load() != 0 {
		t.Error("deferred mode must not load anything")
	}
}

func TestRegisterRequiredAfterImmediateInitialize(t *testing.T) {
	r := New()
	if err := r.Initialize(context.Background(), ModeImmediate); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	r.Register("late-auth", instanceFactory("auth"), Required())

	deadline := time.Now().Add(2 * time.Second)
	for !r.IsLoaded("late-auth") {
		if time.Now().After(deadline) {
			t.Fatal("expected background load of required component after immediate initialize")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStats(t *testing.T) {
	r := New()
	r.Register("a", instanceFactory("a"))
	r.Register("b", instanceFactory("b"))
	r.Register("bad", failingFactory("boom"))
	r.Register("idle", instanceFactory("idle"))

	if _, err := r.Load(context.Background(), "a"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := r.Load(context.Background(), "b"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := r.Load(context.Background(), "bad"); err == nil {
		t.Fatal("expected bad to fail")
	}

	s := r.Stats()
	if s.Total != 4 {
		t.Errorf("expected total 4, got %d", s.Total)
	}
	if s.Loaded != 2 {
		t.Errorf("expected 2 loaded, got %d", s.Loaded)
	}
	if s.Error != 1 {
		t.Errorf("expected 1 error, got %d", s.Error)
	}
	if s.Pending != 1 {
		t.Errorf("expected 1 pending, got %d", s.Pending)
	}
}

func TestStatsAvgLoadTimeSurvivesUnload(t *testing.T) {
	r := New()
	r.Register("c", func(ctx context.Context) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return "c", nil
	})
	if _, err := r.Load(context.Background(), "c"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok, _ := r.Unload("c"); !ok {
		t.Fatal("expected unload")
	}

	s := r.Stats()
	if s.AvgLoadTime <= 0 {
		t.Error("average load time must cover components that ever loaded")
	}
}

func TestSnapshots(t *testing.T) {
	r := New()
	r.Register("b", instanceFactory("b"))
	r.Register("a", instanceFactory("a"), WithDependencies("b"), WithPriority(5))

	snaps := r.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Name != "b" || snaps[1].Name != "a" {
		t.Errorf("expected registration order [b a], got %v", snaps)
	}
	if snaps[1].Priority != 5 || len(snaps[1].Dependencies) != 1 {
		t.Errorf("snapshot lost registration options: %+v", snaps[1])
	}
}
