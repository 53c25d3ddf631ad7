package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/snowflakedb/gosnowflake"

	"healthpipe/pkg/errors"
)

// Service provides access to the backing warehouse through a single
// connection pool shared by the pipeline, audit, and catalog layers.
type Service struct {
	db             *sqlx.DB
	config         Config
	dialect        Dialect
	connected      bool
	circuitBreaker *errors.CircuitBreaker
}

// Config holds warehouse connection configuration
type Config struct {
	Backend    string
	Account    string
	Username   string
	Password   string
	Database   string
	Schema     string
	Warehouse  string
	Role       string
	SQLitePath string
	Timeout    time.Duration
}

// NewService creates a new warehouse service
func NewService(config Config) (*Service, error) {
	dialect, err := DialectFor(config.Backend)
	if err != nil {
		return nil, errors.ConfigError(err.Error(), "backend")
	}
	return &Service{
		config:         config,
		dialect:        dialect,
		circuitBreaker: errors.NewCircuitBreaker("warehouse", 5, 30*time.Second),
	}, nil
}

// NewServiceWithDB wraps an already-open connection. Used by tests with
// sqlmock and by the sqlite backend when the caller owns the handle.
func NewServiceWithDB(db *sql.DB, dialect Dialect) *Service {
	return &Service{
		db:             sqlx.NewDb(db, dialect.DriverName()),
		dialect:        dialect,
		connected:      true,
		circuitBreaker: errors.NewCircuitBreaker("warehouse", 5, 30*time.Second),
	}
}

// Dialect returns the active SQL dialect.
func (s *Service) Dialect() Dialect {
	return s.dialect
}

// Connect establishes a connection to the warehouse
func (s *Service) Connect() error {
	if s.connected {
		return nil
	}

	return s.circuitBreaker.Execute(context.Background(), func() error {
		return errors.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
			dsn, err := s.dsn()
			if err != nil {
				return err
			}

			db, err := sqlx.Open(s.dialect.DriverName(), dsn)
			if err != nil {
				return errors.ConnectionError("Failed to open warehouse connection", err).
					WithContext("backend", s.config.Backend)
			}

			db.SetMaxOpenConns(10)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(10 * time.Minute)

			connCtx, cancel := s.getContext()
			defer cancel()

			if err := db.PingContext(connCtx); err != nil {
				db.Close()

				if strings.Contains(err.Error(), "authentication") {
					return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
						WithContext("user", s.config.Username).
						WithSuggestions(
							"Verify your username and password",
							"Check if your account is locked",
						)
				}

				return errors.ConnectionError("Failed to connect to warehouse", err).
					WithContext("backend", s.config.Backend).
					AsRecoverable()
			}

			s.db = db
			s.connected = true
			return nil
		})
	})
}

func (s *Service) dsn() (string, error) {
	switch s.config.Backend {
	case BackendSnowflake:
		return fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s&role=%s",
			s.config.Username,
			s.config.Password,
			s.config.Account,
			s.config.Database,
			s.config.Schema,
			s.config.Warehouse,
			s.config.Role,
		), nil
	case BackendSQLite:
		// busy_timeout keeps concurrent stage runs from tripping on locks.
		return fmt.Sprintf("file:%s?_busy_timeout=5000", s.config.SQLitePath), nil
	default:
		return "", errors.ConfigError(fmt.Sprintf("unsupported backend %q", s.config.Backend), "backend")
	}
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	s.connected = false
	return nil
}

// DB returns the underlying connection for packages that run their own
// queries (audit, pipeline, server).
func (s *Service) DB() *sqlx.DB {
	return s.db
}

// ExecuteSQL executes one or more semicolon-separated statements inside a
// single transaction.
func (s *Service) ExecuteSQL(ctx context.Context, sqlText string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to warehouse").
			WithSuggestions("Call Connect() before executing SQL")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	statements := SplitStatements(sqlText)
	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.SQLError(
				fmt.Sprintf("Failed to execute statement %d", i+1),
				stmt,
				err,
			).WithContext("statement_index", i+1).
				WithContext("total_statements", len(statements))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit transaction")
	}

	return nil
}

// TestConnection tests the database connection
func (s *Service) TestConnection(ctx context.Context) error {
	if !s.connected {
		if err := s.Connect(); err != nil {
			return err
		}
	}
	return s.db.PingContext(ctx)
}

// Helper methods

func (s *Service) getContext() (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// SplitStatements splits SQL text on semicolons that are not inside quoted
// strings.
func SplitStatements(sqlText string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	stringChar := rune(0)

	for i, char := range sqlText {
		if !inString {
			if char == '\'' || char == '"' {
				inString = true
				stringChar = char
			} else if char == ';' {
				if i == 0 || sqlText[i-1] != '\\' {
					statements = append(statements, current.String())
					current.Reset()
					continue
				}
			}
		} else {
			if char == stringChar && (i == 0 || sqlText[i-1] != '\\') {
				inString = false
			}
		}
		current.WriteRune(char)
	}

	if current.Len() > 0 {
		statements = append(statements, current.String())
	}

	return statements
}

// ValidateConfig validates the warehouse configuration
func ValidateConfig(config Config) error {
	if config.Backend == BackendSQLite {
		if config.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
		return nil
	}
	if config.Account == "" {
		return fmt.Errorf("account is required")
	}
	if config.Username == "" {
		return fmt.Errorf("username is required")
	}
	if config.Password == "" {
		return fmt.Errorf("password is required")
	}
	if config.Warehouse == "" {
		return fmt.Errorf("warehouse is required")
	}
	if config.Role == "" {
		return fmt.Errorf("role is required")
	}
	return nil
}
