package store

import (
	"testing"
)

// sql.Open never dials the server; it only validates the DSN and prepares
// a lazily-connecting pool. That lets these tests exercise the semaphore
// sizing and acquire/release bookkeeping without a live MySQL instance.

func TestNewSQLDefaultsPoolSize(t *testing.T) {
	s, err := NewSQL(Config{Host: "localhost", Port: 3306, User: "u", Password: "p", DBName: "d"})
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}
	defer s.Close()

	if cap(s.sem) != 10 {
		t.Fatalf("expected default pool size 10, got %d", cap(s.sem))
	}
}

func TestNewSQLHonorsConfiguredPoolSize(t *testing.T) {
	s, err := NewSQL(Config{Host: "localhost", Port: 3306, User: "u", Password: "p", DBName: "d", PoolSize: 4})
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}
	defer s.Close()

	if cap(s.sem) != 4 {
		t.Fatalf("expected pool size 4, got %d", cap(s.sem))
	}
}

func TestAcquireReleaseBoundsConcurrency(t *testing.T) {
	s, err := NewSQL(Config{Host: "localhost", Port: 3306, User: "u", Password: "p", DBName: "d", PoolSize: 2})
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}
	defer s.Close()

	s.acquire()
	s.acquire()
	if len(s.sem) != 2 {
		t.Fatalf("expected semaphore full at 2, got %d", len(s.sem))
	}

	done := make(chan struct{})
	go func() {
		s.acquire() // should block until a release below
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("third acquire succeeded before any release")
	default:
	}

	s.release()
	<-done
	s.release()
	s.release()
}
