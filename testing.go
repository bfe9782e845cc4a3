package httpd

import (
	"sync"

	"github.com/behrlich/reactor-httpd/internal/interfaces"
)

// MockCredentialStore provides an in-memory, call-tracking implementation of
// interfaces.CredentialStore for testing code that exercises the login and
// register routes without a real store backend.
type MockCredentialStore struct {
	mu     sync.RWMutex
	users  map[string]string
	closed bool

	verifyCalls int
	forceErr    error
}

// NewMockCredentialStore creates an empty mock store.
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{users: make(map[string]string)}
}

// Verify implements interfaces.CredentialStore.
func (m *MockCredentialStore) Verify(username, password string, isRegister bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.verifyCalls++
	if m.forceErr != nil {
		return false, m.forceErr
	}

	if isRegister {
		if _, exists := m.users[username]; exists {
			return false, nil
		}
		m.users[username] = password
		return true, nil
	}

	stored, ok := m.users[username]
	return ok && stored == password, nil
}

// Close implements interfaces.CredentialStore.
func (m *MockCredentialStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SeedUser registers username/password directly, bypassing Verify's
// duplicate check, for tests that need a pre-existing account.
func (m *MockCredentialStore) SeedUser(username, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[username] = password
}

// ForceError makes every subsequent Verify call return err.
func (m *MockCredentialStore) ForceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forceErr = err
}

// VerifyCalls reports how many times Verify has been called.
func (m *MockCredentialStore) VerifyCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.verifyCalls
}

// IsClosed reports whether Close has been called.
func (m *MockCredentialStore) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

var _ interfaces.CredentialStore = (*MockCredentialStore)(nil)

// MockLogger is a call-recording implementation of interfaces.Logger for
// assertions on what a component logged, without a real io.Writer sink.
type MockLogger struct {
	mu     sync.Mutex
	lines  []string
	counts map[string]int
}

// NewMockLogger creates an empty mock logger.
func NewMockLogger() *MockLogger {
	return &MockLogger{counts: make(map[string]int)}
}

func (m *MockLogger) record(level, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[level]++
	m.lines = append(m.lines, level+": "+format)
	_ = args
}

func (m *MockLogger) Debugf(format string, args ...interface{}) { m.record("debug", format, args...) }
func (m *MockLogger) Infof(format string, args ...interface{})  { m.record("info", format, args...) }
func (m *MockLogger) Warnf(format string, args ...interface{})  { m.record("warn", format, args...) }
func (m *MockLogger) Errorf(format string, args ...interface{}) { m.record("error", format, args...) }

// Lines returns every recorded log line, in order.
func (m *MockLogger) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Count reports how many times a given level was logged.
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[level]
}

var _ interfaces.Logger = (*MockLogger)(nil)
