// Package native exposes the broad-phase and the dynamic tree through a
// handle based boundary: host objects hold an int64 native address, user data
// crosses as global references owned by the host environment, and callbacks
// are host interfaces wrapped by per-call helpers.
package native

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Ref is an opaque global reference to a host object. The native side stores
// it as proxy user data and never looks inside.
type Ref uint64

// Env is the host side reference table. A proxy holds exactly one reference
// from CreateProxy until its destruction or the instance is freed.
// Env is safe for concurrent use so separate instances may share it.
type Env struct {
	mu   sync.Mutex
	next Ref
	refs map[Ref]interface{}
}

func NewEnv() *Env {
	return &Env{
		refs: make(map[Ref]interface{}),
	}
}

// NewGlobalRef retains obj and returns a reference to it.
func (env *Env) NewGlobalRef(obj interface{}) Ref {
	env.mu.Lock()
	defer env.mu.Unlock()

	env.next++
	env.refs[env.next] = obj
	return env.next
}

// DeleteGlobalRef releases a reference. Releasing twice is an error.
func (env *Env) DeleteGlobalRef(ref Ref) error {
	env.mu.Lock()
	defer env.mu.Unlock()

	if _, ok := env.refs[ref]; !ok {
		return fmt.Errorf("%w: %d", ErrStaleRef, ref)
	}
	delete(env.refs, ref)
	return nil
}

// Resolve returns the object behind ref.
func (env *Env) Resolve(ref Ref) (interface{}, error) {
	env.mu.Lock()
	defer env.mu.Unlock()

	obj, ok := env.refs[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrStaleRef, ref)
	}
	return obj, nil
}

// LiveRefs is the number of references not yet released.
func (env *Env) LiveRefs() int {
	env.mu.Lock()
	defer env.mu.Unlock()

	return len(env.refs)
}

// releaser builds the on-destroy hook installed in every native instance.
func (env *Env) releaser(kind string, handle int64) func(userData interface{}) {
	return func(userData interface{}) {
		ref, ok := userData.(Ref)
		if !ok {
			log.WithFields(log.Fields{
				"kind":   kind,
				"handle": handle,
			}).Errorf("proxy user data is %T, not a global reference", userData)
			return
		}
		if err := env.DeleteGlobalRef(ref); err != nil {
			log.WithFields(log.Fields{
				"kind":   kind,
				"handle": handle,
				"ref":    ref,
			}).WithError(err).Warn("releasing proxy user data")
		}
	}
}

func (env *Env) resolveUserData(userData interface{}) (interface{}, error) {
	ref, ok := userData.(Ref)
	if !ok {
		return nil, fmt.Errorf("%w: user data %T", ErrStaleRef, userData)
	}
	return env.Resolve(ref)
}

// handleTable maps native addresses to instances.
type handleTable[T any] struct {
	mu      sync.Mutex
	next    int64
	objects map[int64]*T
}

func (t *handleTable[T]) put(obj *T) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.objects == nil {
		t.objects = make(map[int64]*T)
	}
	t.next++
	t.objects[t.next] = obj
	return t.next
}

func (t *handleTable[T]) get(handle int64) (*T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	obj, ok := t.objects[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, handle)
	}
	return obj, nil
}

func (t *handleTable[T]) remove(handle int64) (*T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	obj, ok := t.objects[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, handle)
	}
	delete(t.objects, handle)
	return obj, nil
}

func (t *handleTable[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.objects)
}
