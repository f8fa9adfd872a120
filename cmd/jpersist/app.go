package main

import (
	"errors"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shrek82/jpersist/dialect"
	"github.com/shrek82/jpersist/logger"
	"github.com/shrek82/jpersist/metrics"
	"github.com/shrek82/jpersist/middleware"
	"github.com/shrek82/jpersist/model"
	"github.com/shrek82/jpersist/persist"
	"github.com/shrek82/jpersist/store"
)

// app holds what one command needs: the store, the schema and the metrics.
type app struct {
	cfg      *Config
	log      logger.Logger
	db       *store.DB
	registry *model.Registry
	roots    []string
	metrics  *metrics.Metrics
	gatherer *prometheus.Registry
	closers  []io.Closer
}

func newApp(cfg *Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: cfg.newLogger(logOut)}

	reg, roots, err := loadRegistry(cfg.Schema)
	if err != nil {
		return nil, err
	}
	a.registry, a.roots = reg, roots

	db, err := store.Open(cfg.Driver, cfg.DSN, &store.Options{
		MaxOpenConns: cfg.MaxOpenConns,
		WAL:          cfg.WAL,
		Logger:       a.log,
	})
	if err != nil {
		return nil, err
	}
	a.db = db

	if err := a.useMiddleware(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// useMiddleware installs the statement middleware selected by the configuration.
func (a *app) useMiddleware() error {
	a.gatherer = prometheus.NewRegistry()
	a.gatherer.MustRegister(collectors.NewGoCollector())
	a.metrics = metrics.New(a.gatherer)
	metrics.RegisterPool(a.gatherer, a.db.Pool())

	mws := []store.Middleware{middleware.NewTracing(), a.metrics.Middleware()}

	switch {
	case a.cfg.SlowLog != "":
		slow, err := middleware.NewSlowLogFile(a.cfg.SlowThreshold, a.cfg.SlowLog)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, slow)
		mws = append(mws, slow)
	case a.cfg.SlowThreshold > 0:
		mws = append(mws, middleware.NewSlowLog(a.cfg.SlowThreshold, a.log))
	}

	if a.cfg.BreakerThreshold > 0 {
		cb := middleware.NewCircuitBreaker(a.cfg.BreakerThreshold, a.cfg.BreakerReset)
		d := a.db.Dialect()
		cb.Ignore = func(err error) bool {
			return d.Classify(err) != dialect.ConstraintNone
		}
		mws = append(mws, cb)
	}

	a.db.Use(mws...)
	return nil
}

func (a *app) engine() *persist.Engine {
	e := persist.New(a.db, a.registry, a.cfg.Options())
	e.SetLogger(a.log)
	e.AddObserver(a.metrics)
	return e
}

// Close writes the metrics file and releases the store.
func (a *app) Close() error {
	var errs []error
	if a.cfg.MetricsFile != "" && a.gatherer != nil {
		if err := prometheus.WriteToTextfile(a.cfg.MetricsFile, a.gatherer); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var logOutput io.Writer = os.Stderr
