package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shrek82/jpersist/dialect"
	"github.com/shrek82/jpersist/logger"
	"github.com/shrek82/jpersist/pool"
)

// Options defines the configuration for the DB connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// WAL switches SQLite databases to write-ahead journaling on open.
	WAL bool
	// Logger receives SQL and transaction logs. Defaults to logger.NewStdLogger().
	Logger logger.Logger
}

// DB is a Store backed by database/sql.
type DB struct {
	pool        pool.Pool
	dialect     dialect.Dialect
	logger      logger.Logger
	middlewares []Middleware
}

var _ Store = (*DB)(nil)

// Open initializes a new DB instance with the given driver and DSN.
// The driver must be registered with database/sql by the caller's imports.
func Open(driver, dsn string, opts *Options) (*DB, error) {
	d, ok := dialect.Get(driver)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownDialect, driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, wrapErr(d, "open", "", err)
	}

	db, err := New(pool.NewStdPool(sqlDB), d, opts)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// New creates a DB over an existing pool.
func New(p pool.Pool, d dialect.Dialect, opts *Options) (*DB, error) {
	db := &DB{
		pool:    p,
		dialect: d,
		logger:  logger.NewStdLogger(),
	}
	if opts != nil {
		(&pool.Options{
			MaxOpenConns:    opts.MaxOpenConns,
			MaxIdleConns:    opts.MaxIdleConns,
			ConnMaxLifetime: opts.ConnMaxLifetime,
			ConnMaxIdleTime: opts.ConnMaxIdleTime,
		}).Apply(p)
		if opts.Logger != nil {
			db.logger = opts.Logger
		}
	}

	ctx := context.Background()
	if err := p.PingContext(ctx); err != nil {
		return nil, wrapErr(d, "ping", "", err)
	}
	if opts != nil && opts.WAL && strings.HasPrefix(d.Name(), "sqlite") {
		if err := db.enableWAL(ctx); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func (db *DB) enableWAL(ctx context.Context) error {
	const pragma = "PRAGMA journal_mode=WAL"
	start := time.Now()
	var mode string
	err := db.pool.QueryRowContext(ctx, pragma).Scan(&mode)
	db.logSQL(nil, pragma, time.Since(start))
	if err != nil {
		return wrapErr(db.dialect, "pragma", "", err)
	}
	if !strings.EqualFold(mode, "wal") {
		db.logger.Warn("journal mode is %s, not wal", mode)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.pool.Close()
}

// SetLogger sets a custom logger for the DB.
func (db *DB) SetLogger(l logger.Logger) {
	db.logger = l
}

// Logger returns the DB's logger.
func (db *DB) Logger() logger.Logger {
	return db.logger
}

// Dialect returns the SQL dialect of the DB.
func (db *DB) Dialect() dialect.Dialect {
	return db.dialect
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() pool.Pool {
	return db.pool
}

// Use appends statement middleware. It must be called before the DB is shared.
func (db *DB) Use(mws ...Middleware) {
	db.middlewares = append(db.middlewares, mws...)
}

// logSQL logs the SQL execution if a logger is set.
func (db *DB) logSQL(fields map[string]any, sql string, duration time.Duration, args ...any) {
	if db.logger == nil {
		return
	}
	l := db.logger
	if len(fields) > 0 {
		l = l.WithFields(fields)
	}
	l.SQL(sql, duration, args...)
}

// Begin starts a transaction.
func (db *DB) Begin(ctx context.Context) (Tx, error) {
	start := time.Now()
	sqlTx, err := db.pool.BeginTx(ctx, nil)
	db.logSQL(nil, "BEGIN", time.Since(start))
	if err != nil {
		return nil, wrapErr(db.dialect, "begin", "", err)
	}
	return &sqlTxn{db: db, tx: sqlTx}, nil
}

// Transaction executes fn within a transaction. The transaction is committed
// when fn returns nil and rolled back when it returns an error or panics.
func (db *DB) Transaction(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	return fn(tx)
}

// execer is satisfied by both the pool and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// run sends stmt through the middleware chain to q.
func (db *DB) run(ctx context.Context, q execer, stmt *Statement) (*Result, error) {
	res, err := chain(db.middlewares, db.terminal(q))(ctx, stmt)
	if err != nil {
		return res, wrapErr(db.dialect, stmt.Op, stmt.Table, err)
	}
	return res, nil
}

func (db *DB) terminal(q execer) ExecFunc {
	return func(ctx context.Context, stmt *Statement) (*Result, error) {
		start := time.Now()
		res := &Result{}
		var err error
		if stmt.query {
			err = q.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&res.Value)
		} else {
			var r sql.Result
			r, err = q.ExecContext(ctx, stmt.SQL, stmt.Args...)
			if err == nil {
				res.RowsAffected, _ = r.RowsAffected()
				if stmt.lastInsertID {
					res.LastInsertID, err = r.LastInsertId()
				}
			}
		}
		res.Duration = time.Since(start)
		db.logSQL(stmt.Fields, stmt.SQL, res.Duration, stmt.Args...)
		return res, err
	}
}
