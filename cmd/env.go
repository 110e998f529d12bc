package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filing-assistant/internal/aggregate"
	"github.com/sells-group/filing-assistant/internal/audit"
	"github.com/sells-group/filing-assistant/internal/cache"
	"github.com/sells-group/filing-assistant/internal/config"
	"github.com/sells-group/filing-assistant/internal/draft"
	"github.com/sells-group/filing-assistant/internal/formrule"
	"github.com/sells-group/filing-assistant/internal/ingest"
	"github.com/sells-group/filing-assistant/internal/remote"
	"github.com/sells-group/filing-assistant/internal/store"
	"github.com/sells-group/filing-assistant/internal/taxcalc"
)

// initStore opens the configured server-side draft repository.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		return store.NewSQLite(c.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.Pool.MaxConns,
			MinConns: c.Store.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// initCache opens the configured local draft cache.
func initCache(ctx context.Context, c *config.Config) (cache.Cache, error) {
	switch c.Cache.Driver {
	case "memory":
		return cache.NewMemory(c.Cache.MaxBytes), nil
	case "sqlite":
		return cache.NewSQLite(ctx, c.Cache.Path, c.Cache.MaxBytes)
	case "redis":
		r := cache.NewRedis(c.Cache.RedisAddr, c.Cache.RedisPassword, c.Cache.RedisDB, c.Cache.RedisPrefix)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, eris.Wrap(err, "redis cache ping")
		}
		return r, nil
	default:
		return nil, eris.Errorf("unsupported cache driver: %s", c.Cache.Driver)
	}
}

// initRemote builds the remote draft store client with its circuit breaker.
func initRemote(c *config.Config) *remote.Client {
	breaker := remote.NewBreaker(remote.BreakerConfig{
		FailureThreshold: c.Remote.Breaker.FailureThreshold,
		Cooldown:         time.Duration(c.Remote.Breaker.CooldownSecs) * time.Second,
	})
	opts := []remote.Option{
		remote.WithHTTPClient(&http.Client{Timeout: c.Remote.Timeout()}),
		remote.WithBreaker(breaker),
	}
	if c.Remote.Token != "" {
		opts = append(opts, remote.WithToken(c.Remote.Token))
	}
	return remote.NewClient(c.Remote.BaseURL, opts...)
}

// initEngine builds the calculator, form determiner and aggregation engine.
func initEngine(c *config.Config) (*aggregate.Engine, *taxcalc.Calculator, *formrule.Determiner, error) {
	regimes := taxcalc.DefaultRegimes()
	if c.Tax.RegimesPath != "" {
		r, err := taxcalc.LoadRegimes(c.Tax.RegimesPath)
		if err != nil {
			return nil, nil, nil, err
		}
		regimes = r
		zap.L().Info("loaded regime tables", zap.String("path", c.Tax.RegimesPath))
	}
	calc, err := taxcalc.NewCalculator(regimes)
	if err != nil {
		return nil, nil, nil, err
	}
	det := formrule.NewDeterminer(c.Tax.TurnoverLimit())
	return aggregate.New(calc, det), calc, det, nil
}

// initIngest builds the fact record reader.
func initIngest(c *config.Config) (*ingest.Validator, error) {
	return ingest.NewValidator(c.Ingest.SchemaConstraint)
}

// clientEnv holds everything the draft commands need. Callers should defer
// env.Close().
type clientEnv struct {
	Cache  cache.Cache
	Audit  *audit.Async
	Drafts *draft.Store
	Engine *aggregate.Engine
	Ingest *ingest.Validator
}

// Close flushes queued audit events and releases the cache.
func (e *clientEnv) Close() {
	if e.Audit != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Audit.Close(ctx); err != nil {
			zap.L().Warn("audit flush incomplete", zap.Error(err))
		}
	}
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
}

// initClient wires the local cache, remote client and audit pipeline into a
// draft store for the configured owner.
func initClient(ctx context.Context, c *config.Config) (*clientEnv, error) {
	if err := c.Validate("draft"); err != nil {
		return nil, err
	}

	engine, _, _, err := initEngine(c)
	if err != nil {
		return nil, err
	}
	validator, err := initIngest(c)
	if err != nil {
		return nil, err
	}

	local, err := initCache(ctx, c)
	if err != nil {
		return nil, err
	}

	sink := audit.NewAsync(audit.NewZapSink(zap.L()), c.Audit.BufferSize)
	drafts := draft.New(c.Draft.OwnerID, local, initRemote(c), draft.WithAudit(sink))

	return &clientEnv{
		Cache:  local,
		Audit:  sink,
		Drafts: drafts,
		Engine: engine,
		Ingest: validator,
	}, nil
}
