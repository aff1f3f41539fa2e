package inventory

import "sync"

// KeyLock serializes work per (user, item) key. Two concurrent deliveries for
// the same key would otherwise both read the record before either write and
// the later overwrite would drop a delta. Grant and subtract must share one
// instance, since both mutate the same records.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyLockEntry)}
}

func (k *KeyLock) lock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyLockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

func (k *KeyLock) unlock(key string) {
	k.mu.Lock()
	e := k.locks[key]
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}

func ledgerKey(userID, catalogItemID string) string {
	return userID + "/" + catalogItemID
}
