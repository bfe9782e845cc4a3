package store

import (
	"sync"
	"testing"
)

func TestMemoryRegisterThenVerify(t *testing.T) {
	m := NewMemory()

	ok, err := m.Verify("alice", "hunter2", true)
	if err != nil || !ok {
		t.Fatalf("register = %v, %v; want true, nil", ok, err)
	}

	ok, err = m.Verify("alice", "hunter2", false)
	if err != nil || !ok {
		t.Fatalf("verify correct password = %v, %v; want true, nil", ok, err)
	}

	ok, err = m.Verify("alice", "wrong", false)
	if err != nil || ok {
		t.Fatalf("verify wrong password = %v, %v; want false, nil", ok, err)
	}
}

func TestMemoryRegisterDuplicateFails(t *testing.T) {
	m := NewMemory()
	if ok, err := m.Verify("bob", "pw1", true); !ok || err != nil {
		t.Fatalf("first register = %v, %v; want true, nil", ok, err)
	}
	ok, err := m.Verify("bob", "pw2", true)
	if ok {
		t.Fatal("expected duplicate registration to fail")
	}
	if err != ErrUserExists {
		t.Fatalf("err = %v, want ErrUserExists", err)
	}
}

func TestMemoryVerifyUnknownUser(t *testing.T) {
	m := NewMemory()
	ok, err := m.Verify("nobody", "pw", false)
	if ok || err != nil {
		t.Fatalf("verify unknown user = %v, %v; want false, nil", ok, err)
	}
}

func TestMemoryConcurrentAccessAcrossShards(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			username := string(rune('a' + i%26))
			m.Verify(username, "pw", true)
			m.Verify(username, "pw", false)
		}(i)
	}
	wg.Wait()
}
