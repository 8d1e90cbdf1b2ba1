package native

import (
	"errors"
	"testing"
)

func TestEnvGlobalRefs(t *testing.T) {
	env := NewEnv()
	obj := &struct{ name string }{"a"}

	ref := env.NewGlobalRef(obj)
	if env.LiveRefs() != 1 {
		t.Fatalf("live refs = %d", env.LiveRefs())
	}
	got, err := env.Resolve(ref)
	if err != nil {
		t.Fatal(err)
	}
	if got != obj {
		t.Fatalf("resolved %v, want %v", got, obj)
	}

	if other := env.NewGlobalRef(obj); other == ref {
		t.Fatal("two references share an id")
	}

	if err := env.DeleteGlobalRef(ref); err != nil {
		t.Fatal(err)
	}
	if err := env.DeleteGlobalRef(ref); !errors.Is(err, ErrStaleRef) {
		t.Fatalf("double delete = %v, want ErrStaleRef", err)
	}
	if _, err := env.Resolve(ref); !errors.Is(err, ErrStaleRef) {
		t.Fatalf("resolving a deleted ref = %v", err)
	}
	if env.LiveRefs() != 1 {
		t.Fatalf("live refs = %d", env.LiveRefs())
	}
}

func TestEnvReleaserToleratesForeignUserData(t *testing.T) {
	env := NewEnv()
	ref := env.NewGlobalRef("x")
	release := env.releaser("test", 1)

	release("not a ref")
	release(ref)
	release(ref)

	if env.LiveRefs() != 0 {
		t.Fatalf("live refs = %d", env.LiveRefs())
	}
}

func TestHandleTable(t *testing.T) {
	var table handleTable[int]
	a, b := 1, 2

	ha := table.put(&a)
	hb := table.put(&b)
	if ha == 0 || hb == 0 || ha == hb {
		t.Fatalf("handles %d and %d", ha, hb)
	}
	if p, err := table.get(hb); err != nil || *p != 2 {
		t.Fatalf("get = %v, %v", p, err)
	}
	if _, err := table.remove(ha); err != nil {
		t.Fatal(err)
	}
	if _, err := table.get(ha); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("get after remove = %v", err)
	}
	if _, err := table.remove(ha); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("double remove = %v", err)
	}
	if _, err := table.get(0); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("get(0) = %v", err)
	}
	if table.len() != 1 {
		t.Fatalf("len = %d", table.len())
	}
}
