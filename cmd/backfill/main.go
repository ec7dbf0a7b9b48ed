package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"marketsync/internal/cli"
	"marketsync/internal/config"
	"marketsync/internal/pipeline"
	"marketsync/internal/svc"
)

var configFile = flag.String("f", "etc/marketsync.yaml", "the config file")

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[backfill] starting daily history backfill...")

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[backfill] failed to load config: %v", err)
	}
	log.Printf("[backfill] configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(cfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(*cfg)
	if svcCtx.DBConn == nil {
		log.Fatalf("[backfill] postgres DSN is required")
	}
	if svcCtx.DefaultProvider == nil {
		log.Fatalf("[backfill] a default market data provider is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svcCtx.Registry.Refresh(ctx); err != nil {
		log.Fatalf("[backfill] failed to load instrument registry: %v", err)
	}

	precision := pipeline.PrecisionSingle
	if !cfg.Pipeline.SinglePrecision {
		precision = pipeline.PrecisionDouble
	}
	run := pipeline.New(svcCtx.Registry, svcCtx.DefaultProvider, svcCtx.History, pipeline.Config{
		HistoryTable: cfg.Pipeline.HistoryTable,
		ChunkSize:    cfg.Pipeline.ChunkSize,
		FetchPadDays: cfg.Pipeline.FetchPadDays,
		Precision:    precision,
	})
	run.RunOnce(ctx)
	log.Println("[backfill] done")
}
