package mods

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
)

// keyedMutex serializes work per key. Entries are dropped once no
// goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// lockFilePath returns the cross-process lock file for fullName in the mod
// directory dir. Lock files live in $XDG_RUNTIME_DIR, or the temp dir when
// unset, so the mod directory only ever holds mods.
func lockFilePath(dir, fullName string, getenv func(string) string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	h := fnv.New64a()
	h.Write([]byte(dir))

	base := getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, fmt.Sprintf("thunderdockerman-%016x-%s.lock", h.Sum64(), fullName))
}

// lock serializes work on fullName within this process and, where flock
// is available, with other processes managing the same directory.
func (s *Store) lock(fullName string) (func(), error) {
	unlock := s.locks.Lock(fullName)

	fl, err := acquireFileLock(lockFilePath(s.dir, fullName, os.Getenv))
	if errors.Is(err, errFlockUnavailable) {
		return unlock, nil
	}
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		fl.Release()
		unlock()
	}, nil
}
