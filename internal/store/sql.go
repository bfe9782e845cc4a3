package store

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// SQL is a MySQL-backed CredentialStore. Connections are handed out through
// a buffered channel acting as a counting semaphore of size poolSize,
// mirroring the original connection pool's sem_wait/sem_post pair around a
// queue of live MYSQL* handles: database/sql already pools connections
// internally, but the explicit semaphore bounds how many queries this store
// will have in flight at once, independent of the driver's own pool sizing.
type SQL struct {
	db  *sql.DB
	sem chan struct{}
}

// Config names the connection parameters and pool size for a SQL store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	PoolSize int
}

// NewSQL opens a MySQL connection and sizes both the driver's pool and the
// semaphore bounding concurrent Verify calls to cfg.PoolSize.
func NewSQL(cfg Config) (*SQL, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	return &SQL{db: db, sem: make(chan struct{}, poolSize)}, nil
}

// acquire blocks until a pool slot is free, matching sem_wait.
func (s *SQL) acquire() { s.sem <- struct{}{} }

// release frees a pool slot, matching sem_post.
func (s *SQL) release() { <-s.sem }

// Verify checks username/password against the `user` table, or inserts a
// new row when isRegister is true. Returns false, ErrUserExists if
// registering a username that's already taken.
func (s *SQL) Verify(username, password string, isRegister bool) (bool, error) {
	s.acquire()
	defer s.release()

	if isRegister {
		var count int
		row := s.db.QueryRow("SELECT COUNT(*) FROM user WHERE username = ?", username)
		if err := row.Scan(&count); err != nil {
			return false, err
		}
		if count > 0 {
			return false, ErrUserExists
		}
		if _, err := s.db.Exec("INSERT INTO user(username, password) VALUES (?, ?)", username, password); err != nil {
			return false, err
		}
		return true, nil
	}

	var stored string
	row := s.db.QueryRow("SELECT password FROM user WHERE username = ?", username)
	if err := row.Scan(&stored); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return stored == password, nil
}

// Close releases the underlying *sql.DB's connections.
func (s *SQL) Close() error {
	return s.db.Close()
}
