package native

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	box2d "github.com/jbox2d/box2d"
)

type hostBody struct {
	name string
}

func (b *hostBody) String() string {
	return b.name
}

func TestBroadPhaseJNILifecycle(t *testing.T) {
	env := NewEnv()
	bp := NewBroadPhaseJNI(env)
	if bp.NativeAddress == 0 {
		t.Fatal("no native address after construction")
	}
	if err := bp.CreateNative(); !errors.Is(err, ErrHandleInUse) {
		t.Fatalf("CreateNative twice = %v, want ErrHandleInUse", err)
	}

	var ids []int32
	for i := 0; i < 3; i++ {
		x := float32(i * 5)
		id, err := bp.CreateProxy(x, 0, x+1, 1, &hostBody{fmt.Sprint(i)})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if env.LiveRefs() != 3 {
		t.Fatalf("live refs = %d, want 3", env.LiveRefs())
	}
	if n, _ := bp.GetProxyCount(); n != 3 {
		t.Fatalf("proxy count = %d", n)
	}

	if err := bp.DestroyProxy(ids[1]); err != nil {
		t.Fatal(err)
	}
	if env.LiveRefs() != 2 {
		t.Fatalf("live refs = %d after destroy, want 2", env.LiveRefs())
	}
	if err := bp.DestroyProxy(ids[1]); !errors.Is(err, box2d.ErrInvalidProxy) {
		t.Fatalf("double destroy = %v", err)
	}
	if env.LiveRefs() != 2 {
		t.Fatalf("double destroy released a reference: %d live", env.LiveRefs())
	}

	address := bp.NativeAddress
	if err := bp.FreeNative(); err != nil {
		t.Fatal(err)
	}
	if env.LiveRefs() != 0 {
		t.Fatalf("live refs = %d after FreeNative", env.LiveRefs())
	}
	if bp.NativeAddress != 0 {
		t.Fatalf("native address = %d after FreeNative", bp.NativeAddress)
	}
	if _, err := phases.get(address); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("freed handle still resolves: %v", err)
	}

	if _, err := bp.CreateProxy(0, 0, 1, 1, &hostBody{"late"}); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("CreateProxy after free = %v, want ErrInvalidHandle", err)
	}
	if env.LiveRefs() != 0 {
		t.Fatal("failed CreateProxy retained a reference")
	}
	if err := bp.FreeNative(); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("double free = %v, want ErrInvalidHandle", err)
	}

	if err := bp.CreateNative(); err != nil {
		t.Fatal(err)
	}
	if bp.NativeAddress == 0 || bp.NativeAddress == address {
		t.Fatalf("recreated address = %d", bp.NativeAddress)
	}
	if err := bp.FreeNative(); err != nil {
		t.Fatal(err)
	}
}

func TestBroadPhaseJNIRejectsDegenerateBounds(t *testing.T) {
	env := NewEnv()
	bp := NewBroadPhaseJNI(env)
	defer bp.FreeNative()

	if _, err := bp.CreateProxy(1, 0, 0, 1, &hostBody{"bad"}); !errors.Is(err, box2d.ErrDegenerateAABB) {
		t.Fatalf("CreateProxy = %v, want ErrDegenerateAABB", err)
	}
	if env.LiveRefs() != 0 {
		t.Fatalf("live refs = %d after a rejected proxy", env.LiveRefs())
	}

	err := bp.Query(TreeCallbackFunc(func(int32) bool { return true }), 1, 1, 0, 0)
	if !errors.Is(err, box2d.ErrDegenerateAABB) {
		t.Fatalf("Query = %v, want ErrDegenerateAABB", err)
	}
	err = bp.Raycast(RaycastFunc(func(p1x, p1y, p2x, p2y, maxFraction float32, nodeID int32) float32 {
		return 0
	}), 3, 3, 3, 3, 1)
	if !errors.Is(err, box2d.ErrDegenerateRay) {
		t.Fatalf("Raycast = %v, want ErrDegenerateRay", err)
	}
}

func TestBroadPhaseJNIUpdatePairs(t *testing.T) {
	env := NewEnv()
	bp := NewBroadPhaseJNI(env)
	defer bp.FreeNative()

	a, b, c := &hostBody{"a"}, &hostBody{"b"}, &hostBody{"c"}
	ida, _ := bp.CreateProxy(0, 0, 1, 1, a)
	bp.CreateProxy(0.5, 0.5, 1.5, 1.5, b)
	bp.CreateProxy(10, 10, 11, 11, c)

	// A nil callback keeps the pending moves.
	if err := bp.UpdatePairs(nil); err != nil {
		t.Fatal(err)
	}

	var pairs []string
	collect := PairCallbackFunc(func(userDataA, userDataB interface{}) {
		pairs = append(pairs, fmt.Sprintf("%v-%v", userDataA, userDataB))
	})
	if err := bp.UpdatePairs(collect); err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 || pairs[0] != "a-b" {
		t.Fatalf("pairs = %v, want [a-b]", pairs)
	}

	pairs = nil
	if err := bp.MoveProxy(ida, 10.5, 10.5, 11.5, 11.5, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := bp.UpdatePairs(collect); err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 || pairs[0] != "a-c" {
		t.Fatalf("pairs = %v, want [a-c]", pairs)
	}

	pairs = nil
	if err := bp.TouchProxy(ida); err != nil {
		t.Fatal(err)
	}
	if err := bp.UpdatePairs(collect); err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 || pairs[0] != "a-c" {
		t.Fatalf("pairs after touch = %v, want [a-c]", pairs)
	}

	obj, err := bp.GetUserData(ida)
	if err != nil {
		t.Fatal(err)
	}
	if obj != a {
		t.Fatalf("user data = %v, want %v", obj, a)
	}
}

func TestBroadPhaseJNIQueries(t *testing.T) {
	env := NewEnv()
	bp := NewBroadPhaseJNI(env)
	defer bp.FreeNative()

	var ids []int32
	for i := 0; i < 5; i++ {
		x := float32((i + 1) * 10)
		id, err := bp.CreateProxy(x-1, -1, x+1, 1, &hostBody{fmt.Sprint(i)})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	var found []int
	err := bp.Query(TreeCallbackFunc(func(proxyID int32) bool {
		found = append(found, int(proxyID))
		return true
	}), 15, -5, 35, 5)
	if err != nil {
		t.Fatal(err)
	}
	sort.Ints(found)
	if len(found) != 2 || found[0] != int(ids[1]) || found[1] != int(ids[2]) {
		t.Fatalf("query = %v, want [%d %d]", found, ids[1], ids[2])
	}

	calls := 0
	bp.Query(TreeCallbackFunc(func(int32) bool {
		calls++
		return false
	}), -100, -100, 100, 100)
	if calls != 1 {
		t.Fatalf("query continued after false: %d calls", calls)
	}

	var closest int32 = -1
	err = bp.Raycast(RaycastFunc(func(p1x, p1y, p2x, p2y, maxFraction float32, nodeID int32) float32 {
		if p1x != 0 || p1y != 0 || p2x != 100 || p2y != 0 {
			t.Fatalf("ray (%v, %v) -> (%v, %v)", p1x, p1y, p2x, p2y)
		}
		fat, err := bp.GetFat(nodeID)
		if err != nil {
			t.Fatal(err)
		}
		fraction := fat.Lx / 100
		if fraction < maxFraction {
			closest = nodeID
			return fraction
		}
		return maxFraction
	}), 0, 0, 100, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if closest != ids[0] {
		t.Fatalf("closest = %d, want %d", closest, ids[0])
	}

	fat, err := bp.GetFat(ids[0])
	if err != nil {
		t.Fatal(err)
	}
	want := AABB2{Lx: 8.9, Ly: -1.1, Ux: 11.1, Uy: 1.1}
	const eps = 1e-5
	if d := fat.Lx - want.Lx; d > eps || d < -eps {
		t.Fatalf("fat = %+v, want %+v", fat, want)
	}
	if d := fat.Uy - want.Uy; d > eps || d < -eps {
		t.Fatalf("fat = %+v, want %+v", fat, want)
	}

	if overlap, err := bp.TestOverlap(ids[0], ids[1]); err != nil || overlap {
		t.Fatalf("TestOverlap = %v, %v", overlap, err)
	}
	if h, _ := bp.GetTreeHeight(); h < 2 {
		t.Fatalf("tree height = %d", h)
	}
	if b, _ := bp.GetTreeBalance(); b > 1 {
		t.Fatalf("tree balance = %d", b)
	}
	if q, _ := bp.GetTreeQuality(); q < 1 {
		t.Fatalf("tree quality = %v", q)
	}
}

func TestBroadPhaseJNIIndependentInstances(t *testing.T) {
	env := NewEnv()
	before := phases.len()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			bp := NewBroadPhaseJNI(env)
			for i := 0; i < 100; i++ {
				x := float32(i)
				if _, err := bp.CreateProxy(x, 0, x+1.5, 1, &hostBody{fmt.Sprintf("%d/%d", w, i)}); err != nil {
					errs <- err
					return
				}
			}
			pairs := 0
			if err := bp.UpdatePairs(PairCallbackFunc(func(interface{}, interface{}) { pairs++ })); err != nil {
				errs <- err
				return
			}
			if pairs != 99 {
				errs <- fmt.Errorf("worker %d: %d pairs, want 99", w, pairs)
				return
			}
			if err := bp.FreeNative(); err != nil {
				errs <- err
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if env.LiveRefs() != 0 {
		t.Fatalf("live refs = %d", env.LiveRefs())
	}
	if phases.len() != before {
		t.Fatalf("handle table grew from %d to %d", before, phases.len())
	}
}
