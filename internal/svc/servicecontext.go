package svc

import (
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "marketsync/internal/cache"
	"marketsync/internal/config"
	"marketsync/internal/model"
	"marketsync/internal/registry"
	"marketsync/internal/store"
	providerpkg "marketsync/pkg/provider"
	_ "marketsync/pkg/provider/yahoo" // registers the yahoo provider
)

type ServiceContext struct {
	Config config.Config

	DBConn           sqlx.SqlConn
	Redis            *redis.Redis
	TTL              cachekeys.TTLSet
	InstrumentsModel model.InstrumentsModel
	Registry         *registry.Registry
	History          *store.HistoryStore
	Intraday         *store.IntradayStore

	Providers       map[string]providerpkg.Provider
	DefaultProvider providerpkg.Provider
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config: c,
		TTL:    cachekeys.NewTTLSet(c.TTL),
	}

	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		svc.DBConn = conn
		svc.InstrumentsModel = model.NewInstrumentsModel(conn)
		svc.Registry = registry.New(svc.InstrumentsModel)
		svc.History = store.NewHistoryStore(conn)
	}

	if c.Redis.Host != "" {
		rds := redis.MustNewRedis(c.Redis)
		svc.Redis = rds
		opts := []store.IntradayOption{}
		if c.Poller.StreamMaxLen > 0 {
			opts = append(opts, store.WithStreamMaxLen(c.Poller.StreamMaxLen))
		}
		svc.Intraday = store.NewIntradayStore(rds, svc.TTL, opts...)
	}

	if c.Provider.Value != nil {
		providers, err := c.Provider.Value.BuildProviders()
		if err != nil {
			log.Fatalf("failed to build market data providers: %v", err)
		}
		svc.Providers = providers
		if def := c.Provider.Value.Default; def != "" {
			svc.DefaultProvider = providers[def]
		}
	}

	return svc
}
