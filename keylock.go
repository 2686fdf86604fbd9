package contextcache

import "sync"

// keyLocks serializes all operations per key. A read interleaved with a
// write or a rule-triggered invalidation for the same key at an I/O
// boundary must not observe half-applied bookkeeping, so every public
// operation holds the key's lock for its full duration. Operations on
// different keys proceed independently.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

func (kl *keyLocks) lock(key string) {
	kl.mu.Lock()
	l, ok := kl.locks[key]
	if !ok {
		l = &keyLock{}
		kl.locks[key] = l
	}
	l.refs++
	kl.mu.Unlock()

	l.mu.Lock()
}

func (kl *keyLocks) unlock(key string) {
	kl.mu.Lock()
	l := kl.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(kl.locks, key)
	}
	kl.mu.Unlock()

	l.mu.Unlock()
}
