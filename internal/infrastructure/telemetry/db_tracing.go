package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	SlowQueryThresh time.Duration
	DBSystem        string
	// LogFullSQL keeps bound variables in span statements. Recipient names
	// and addresses end up in traces when set.
	LogFullSQL bool
	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider
}

// DBTracingPlugin registers otelgorm plus slow query marking.
// otelgorm also reports the connection pool statistics as metrics.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh == 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Register installs the plugin on db. It is a no-op when disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if p.config.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(p.config.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

// registerCallbacks times every statement and marks slow ones on the span
// before otelgorm ends it.
func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("tms:before:create", markStart),
		cb.Query().Before("gorm:query").Register("tms:before:select", markStart),
		cb.Update().Before("gorm:update").Register("tms:before:update", markStart),
		cb.Delete().Before("gorm:delete").Register("tms:before:delete", markStart),
		cb.Row().Before("gorm:row").Register("tms:before:row", markStart),
		cb.Raw().Before("gorm:raw").Register("tms:before:raw", markStart),

		cb.Create().After("gorm:create").Before("otel:after:create").Register("tms:after:create", p.markSlow),
		cb.Query().After("gorm:query").Before("otel:after:select").Register("tms:after:select", p.markSlow),
		cb.Update().After("gorm:update").Before("otel:after:update").Register("tms:after:update", p.markSlow),
		cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("tms:after:delete", p.markSlow),
		cb.Row().After("gorm:row").Before("otel:after:row").Register("tms:after:row", p.markSlow),
		cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("tms:after:raw", p.markSlow),
	)
}

type queryStartKey struct{}

func markStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (p *DBTracingPlugin) markSlow(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
