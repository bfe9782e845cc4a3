// Package store implements the credential-store backends the reactor uses
// to answer login and registration requests: an in-memory sharded-mutex
// map, and a SQL-backed store pooled with a counting semaphore.
package store

import (
	"errors"
	"hash/fnv"
	"sync"
)

// numShards mirrors the teacher in-memory backend's sharded-locking
// technique: instead of one mutex guarding the whole user table, each
// username hashes to one of a fixed number of shards, so concurrent
// logins for different users rarely contend.
const numShards = 64

// ErrUserExists is returned by Verify when isRegister is true and the
// username is already taken.
var ErrUserExists = errors.New("store: username already registered")

type shard struct {
	mu    sync.RWMutex
	users map[string]string // username -> password, plaintext per spec scope
}

// Memory is an in-memory CredentialStore. The zero value is not usable; use
// NewMemory.
type Memory struct {
	shards [numShards]*shard
}

// NewMemory returns an empty in-memory credential store.
func NewMemory() *Memory {
	m := &Memory{}
	for i := range m.shards {
		m.shards[i] = &shard{users: make(map[string]string)}
	}
	return m
}

func (m *Memory) shardFor(username string) *shard {
	h := fnv.New32a()
	h.Write([]byte(username))
	return m.shards[h.Sum32()%numShards]
}

// Verify checks username/password against the store. When isRegister is
// true it instead creates the account, succeeding unless the username is
// already taken (in which case it returns false, ErrUserExists).
func (m *Memory) Verify(username, password string, isRegister bool) (bool, error) {
	s := m.shardFor(username)

	if isRegister {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, exists := s.users[username]; exists {
			return false, ErrUserExists
		}
		s.users[username] = password
		return true, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.users[username]
	if !ok {
		return false, nil
	}
	return stored == password, nil
}

// Close is a no-op for the in-memory store; it exists to satisfy
// interfaces.CredentialStore.
func (m *Memory) Close() error { return nil }
