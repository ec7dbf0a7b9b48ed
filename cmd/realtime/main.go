package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"marketsync/internal/cli"
	"marketsync/internal/config"
	"marketsync/internal/poller"
	"marketsync/internal/svc"
	"marketsync/pkg/journal"
)

var configFile = flag.String("f", "etc/marketsync.yaml", "the config file")

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[realtime] starting real-time orchestrator...")

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[realtime] failed to load config: %v", err)
	}
	log.Printf("[realtime] configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(cfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(*cfg)
	if svcCtx.DBConn == nil {
		log.Fatalf("[realtime] postgres DSN is required")
	}
	if svcCtx.Intraday == nil {
		log.Fatalf("[realtime] redis is required for the streaming store")
	}
	if svcCtx.DefaultProvider == nil {
		log.Fatalf("[realtime] a default market data provider is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pacer := poller.NewPacer(time.Duration(cfg.Poller.RelaxSeconds) * time.Second)
	poll := poller.New(svcCtx.Registry, svcCtx.DefaultProvider, svcCtx.Intraday, poller.WithPacer(pacer))

	var journalWriter *journal.Writer
	if cfg.Poller.JournalDir != "" {
		journalWriter = journal.NewWriter(cfg.Poller.JournalDir)
	}

	job := func(ctx context.Context) {
		// Registry failures are cycle-scoped: log and try again next trigger.
		if err := svcCtx.Registry.Refresh(ctx); err != nil {
			logx.WithContext(ctx).Errorf("realtime: refresh registry: %v", err)
			writeCycleJournal(journalWriter, nil, err)
			return
		}
		results := poll.Cycle(ctx)
		writeCycleJournal(journalWriter, results, nil)
	}

	sched := poller.NewScheduler(job, cfg.Poller.TriggerMinutes,
		poller.WithPollInterval(time.Duration(cfg.Poller.PollSeconds)*time.Second))
	sched.Run(ctx)

	log.Println("[realtime] shutdown complete")
}

func writeCycleJournal(w *journal.Writer, results []poller.Result, cycleErr error) {
	if w == nil {
		return
	}
	rec := &journal.CycleRecord{}
	if cycleErr != nil {
		rec.ErrorMessage = cycleErr.Error()
	}
	for _, result := range results {
		switch result.Status {
		case poller.StatusOK:
			rec.Updated = append(rec.Updated, result.Symbol)
		case poller.StatusSkippedClosed:
			rec.Closed = append(rec.Closed, result.Symbol)
		case poller.StatusSkippedSparse:
			rec.Sparse = append(rec.Sparse, result.Symbol)
		case poller.StatusFailed:
			rec.Failed = append(rec.Failed, result.Symbol)
		}
	}
	if _, err := w.WriteCycle(rec); err != nil {
		logx.Errorf("realtime: write cycle journal: %v", err)
	}
}
