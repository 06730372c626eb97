package effect_test

import (
	"testing"

	"github.com/RohanKheraCR/OpenRace/analysis/effect"
)

func TestClassifyKnownNames(t *testing.T) {
	cases := map[string]effect.Category{
		"pthread_create":           effect.CategoryPthreadCreate,
		"pthread_join":             effect.CategoryPthreadJoin,
		"pthread_mutex_lock":       effect.CategoryPthreadMutexLock,
		"pthread_mutex_unlock":     effect.CategoryPthreadMutexUnlock,
		"__kmpc_fork_call":         effect.CategoryOmpForkCall,
		"__kmpc_barrier":           effect.CategoryOmpBarrier,
		"__kmpc_push_num_threads":  effect.CategoryOmpPushNumThreads,
		"omp_get_thread_num":       effect.CategoryOmpGetThreadNum,
		"omp_set_num_threads":      effect.CategoryOmpSetNumThreads,
		"omp_get_thread_num_guard_start": effect.CategoryGuardStart,
		"omp_get_thread_num_guard_end":   effect.CategoryGuardEnd,
	}
	for name, want := range cases {
		if got := effect.Classify(name); got != want {
			t.Errorf("Classify(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestClassifyIsTotal(t *testing.T) {
	for _, name := range []string{"printf", "malloc", "some_user_function", ""} {
		if got := effect.Classify(name); got != effect.CategoryOpaqueCall {
			t.Errorf("Classify(%q) = %v, want CategoryOpaqueCall", name, got)
		}
	}
}

func TestClassifyNoEffectPrefixes(t *testing.T) {
	for _, name := range []string{"llvm.dbg.value", "llvm.lifetime.start", "llvm.memcpy.p0i8.p0i8.i64"} {
		if got := effect.Classify(name); got != effect.CategoryNoEffect {
			t.Errorf("Classify(%q) = %v, want CategoryNoEffect", name, got)
		}
	}
}

func TestIsKmpcFamily(t *testing.T) {
	if !effect.IsKmpcFamily("__kmpc_some_unmodeled_call") {
		t.Error("expected __kmpc_-prefixed name to be recognized as kmpc family")
	}
	if effect.IsKmpcFamily("omp_get_thread_num") {
		t.Error("did not expect omp_ name to be recognized as kmpc family")
	}
}

func TestIsOmpLibFamily(t *testing.T) {
	if !effect.IsOmpLibFamily("omp_get_num_threads") {
		t.Error("expected omp_-prefixed name to be recognized as omp lib family")
	}
	if effect.IsOmpLibFamily("__kmpc_barrier") {
		t.Error("did not expect __kmpc_ name to be recognized as omp lib family")
	}
}

func TestIsKnownNoEffectOmpCall(t *testing.T) {
	if !effect.IsKnownNoEffectOmpCall("__kmpc_global_thread_num") {
		t.Error("expected __kmpc_global_thread_num to be a known no-effect call")
	}
	if effect.IsKnownNoEffectOmpCall("__kmpc_fork_call") {
		t.Error("did not expect __kmpc_fork_call, which has modeled effects, to be a known no-effect call")
	}
}

func TestCategoryStringUnknown(t *testing.T) {
	if got := effect.Category(9999).String(); got != "Unknown" {
		t.Errorf("Category(9999).String() = %q, want %q", got, "Unknown")
	}
}
