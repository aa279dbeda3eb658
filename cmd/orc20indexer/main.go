// Command orc20indexer runs the ORC-20 indexer. --role selects which
// half of the pipeline this process drives: "producer" decodes
// confirmed blocks into the event log, "coordinator" replays that
// event log through the handler registry and owns canonical state, or
// "all" runs both in one process against the same Postgres database,
// which is sufficient for a single-box deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zhiying8710/orc20-indexer/internal/cache"
	"github.com/zhiying8710/orc20-indexer/internal/chainclient"
	"github.com/zhiying8710/orc20-indexer/internal/config"
	"github.com/zhiying8710/orc20-indexer/internal/coordinator"
	"github.com/zhiying8710/orc20-indexer/internal/producer"
	"github.com/zhiying8710/orc20-indexer/internal/store"
	"github.com/zhiying8710/orc20-indexer/internal/upstream"
	"github.com/zhiying8710/orc20-indexer/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	role := flag.String("role", "all", `process role to run: "producer", "coordinator", or "all"`)
	configFile := flag.String("config", "", "path to a YAML config file; overrides environment-variable configuration")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("orc20indexer %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "orc20indexer: load config:", err)
		os.Exit(1)
	}

	log := logging.New(&logging.Config{Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	// Once the first signal cancels ctx, stop restores default signal
	// handling, so a second signal terminates the process.
	go func() {
		<-ctx.Done()
		stop()
	}()

	s, err := store.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		log.Fatal("open state store", "err", err)
	}
	defer s.Close()
	if err := s.InitSchema(ctx); err != nil {
		log.Fatal("init schema", "err", err)
	}

	log.Info("starting orc20indexer", "role", *role, "version", version)

	var runErr error
	switch *role {
	case "producer":
		p := newProducer(ctx, cfg, s, log)
		runErr = p.Run(ctx, producerStartHeight(ctx, s, cfg, log))
	case "coordinator":
		c := coordinator.New(s, cfg, log)
		runErr = c.RunDispatchOnly(ctx)
	case "all":
		p := newProducer(ctx, cfg, s, log)
		c := coordinator.New(s, cfg, log)
		runErr = c.Run(ctx, p)
	default:
		log.Fatal("unknown role, want producer, coordinator, or all", "role", *role)
	}

	if runErr != nil && ctx.Err() == nil {
		log.Fatal("stopped", "role", *role, "err", runErr)
	}
	log.Info("shutdown complete")
}

// newProducer wires the Producer's external collaborators from cfg.
// It exits the process on any collaborator failure, since a Producer
// cannot run degraded.
func newProducer(ctx context.Context, cfg *config.Config, s *store.Store, log *logging.Logger) *producer.Producer {
	up, err := upstream.Open(cfg.MySQLDSN())
	if err != nil {
		log.Fatal("open upstream store", "err", err)
	}

	contentCache, err := cache.NewContentCache(cfg.RedisURL)
	if err != nil {
		log.Fatal("open content cache", "err", err)
	}

	bitcoin := chainclient.NewBitcoinClient(cfg.Bitcoind.Endpoint, cfg.Bitcoind.Username, cfg.Bitcoind.Password)
	electrs := chainclient.NewElectrsClient(cfg.ElectrsEndpoint)
	ord := chainclient.NewOrdClient(cfg.OrdEndpoint)

	return producer.New(bitcoin, electrs, ord, contentCache, up, s, log)
}

// producerStartHeight resumes past whatever the event log already
// covers, so a lone --role=producer process restarting does not
// re-fetch the entire chain from genesis.
func producerStartHeight(ctx context.Context, s *store.Store, cfg *config.Config, log *logging.Logger) int64 {
	start := cfg.CoreStartBlockHeight
	maxHeight, ok, err := s.MaxEventBlock(ctx)
	if err != nil {
		log.Fatal("read max event block", "err", err)
	}
	if ok && maxHeight+1 > start {
		start = maxHeight + 1
	}
	return start
}
