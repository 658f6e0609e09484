// Package session keeps the database connections opened through the HTTP
// API, each with the plan it currently shows.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/present"
)

const DefaultConnectTimeout = 10 * time.Second

var ErrUnknownSession = errors.New("invalid or expired session ID")

var validate = validator.New()

type Connection struct {
	Host     string `json:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password"`
	Database string `json:"database" validate:"required"`
}

func (c Connection) Validate() error {
	return validate.Struct(c)
}

// DSN renders the connection as a postgres URL. Port defaults to 5432.
func (c Connection) DSN() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(port),
		Path:   "/" + c.Database,
	}
	return u.String()
}

type Session struct {
	ID        string
	DSN       string
	Version   string
	CreatedAt time.Time
	Tracker   *present.Tracker
}

// versionFunc reads the server version; tests replace it.
var versionFunc = serverVersion

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     graph.Options
	timeout  time.Duration
}

func NewStore(opts graph.Options, connectTimeout time.Duration) *Store {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Store{
		sessions: make(map[string]*Session),
		opts:     opts,
		timeout:  connectTimeout,
	}
}

// Connect checks that the database is reachable and registers a session for it.
func (s *Store) Connect(ctx context.Context, c Connection) (*Session, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	dsn := c.DSN()
	version, err := versionFunc(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return s.Register(dsn, version), nil
}

// Register stores a session for an already verified connection.
func (s *Store) Register(dsn, version string) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		DSN:       dsn,
		Version:   version,
		CreatedAt: time.Now().UTC(),
		Tracker:   present.NewTracker(s.opts),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return sess, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func serverVersion(ctx context.Context, dsn string) (string, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return "", fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close(ctx)

	var version string
	if err := conn.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("reading server version: %w", err)
	}
	return version, nil
}
