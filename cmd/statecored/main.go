// Command statecored runs the state engine as a CometBFT ABCI application:
// it wires the authenticated tree store, domain stores, and pipeline
// processor into an in-process CometBFT node, and serves proof-producing
// queries and Prometheus metrics alongside it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	cmtcfg "github.com/cometbft/cometbft/config"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meridianchain/drive/pkg/abci"
	"github.com/meridianchain/drive/pkg/config"
	"github.com/meridianchain/drive/pkg/domain/assetlock"
	"github.com/meridianchain/drive/pkg/domain/contract"
	"github.com/meridianchain/drive/pkg/domain/creditpool"
	"github.com/meridianchain/drive/pkg/domain/document"
	"github.com/meridianchain/drive/pkg/domain/identity"
	"github.com/meridianchain/drive/pkg/domain/token"
	"github.com/meridianchain/drive/pkg/domain/vote"
	"github.com/meridianchain/drive/pkg/domain/withdrawal"
	"github.com/meridianchain/drive/pkg/fees"
	"github.com/meridianchain/drive/pkg/metrics"
	"github.com/meridianchain/drive/pkg/pipeline"
	"github.com/meridianchain/drive/pkg/query"
	"github.com/meridianchain/drive/pkg/storage"
	"github.com/meridianchain/drive/pkg/tree"
	"github.com/meridianchain/drive/pkg/versioning"
)

// runID identifies this process instance in startup logs. It's a random
// UUID rather than a deterministic derivation, since no stable input
// (like a bundle id) exists yet at process start.
var runID = uuid.New().String()

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := log.New(log.Writer(), fmt.Sprintf("[statecored %s] ", runID[:8]), log.LstdFlags)
	logger.Printf("starting, chain_id=%s data_dir=%s", cfg.ChainID, cfg.DataDir)

	treeDB, err := storage.Open("statecore", filepath.Join(cfg.DataDir, "tree"))
	if err != nil {
		logger.Fatalf("open tree store: %v", err)
	}
	defer treeDB.Close()
	treeStore := tree.Open(treeDB)

	registry := versioning.Genesis()
	schedules, err := fees.LoadDefaultSchedules()
	if err != nil {
		logger.Fatalf("load fee schedules: %v", err)
	}

	contracts := contract.NewStore(treeStore)
	proc := pipeline.NewProcessor(
		registry, schedules,
		identity.NewStore(treeStore),
		contracts,
		document.NewStore(treeStore, contracts),
		token.NewStore(treeStore),
		vote.NewStore(treeStore),
		assetlock.NewStore(treeStore),
		withdrawal.NewStore(treeStore),
		creditpool.NewStore(treeStore),
	)

	metricsRegistry := metrics.NewRegistry(prometheus.DefaultRegisterer)
	proc.SetMetrics(metricsRegistry)

	var lastHeight uint64
	meta := func() query.Metadata {
		return query.Metadata{
			LastCommittedHeight: lastHeight,
			ChainID:             cfg.ChainID,
			ProtocolVersion:     cfg.GenesisProtocolVersion,
		}
	}

	app := abci.NewApplication(treeStore, proc, cfg.EpochLengthBlocks, cfg.ChainID, cfg.GenesisProtocolVersion, meta)

	queryServer := query.NewServer(treeStore, meta)
	queryServer.Metrics = metricsRegistry

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go serveMetrics(cfg.MetricsListenAddr, logger)
	go serveQueries(ctx, cfg.QueryListenAddr, queryServer, logger)

	cometNode, err := startCometNode(cfg, app, logger)
	if err != nil {
		logger.Fatalf("start cometbft node: %v", err)
	}
	defer cometNode.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Printf("shutdown signal received")
}

// startCometNode wires a single-validator CometBFT node rooted at
// cfg.DataDir/cometbft, generating a genesis document, private validator
// key, and node key on first run.
func startCometNode(cfg *config.Config, app *abci.Application, logger *log.Logger) (*node.Node, error) {
	cometCfg := cmtcfg.DefaultConfig()
	cometCfg.SetRoot(filepath.Join(cfg.DataDir, "cometbft"))
	cometCfg.ProxyApp = cfg.ABCIListenAddr
	if err := os.MkdirAll(filepath.Join(cometCfg.RootDir, "config"), 0o755); err != nil {
		return nil, fmt.Errorf("create cometbft config dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(cometCfg.RootDir, "data"), 0o755); err != nil {
		return nil, fmt.Errorf("create cometbft data dir: %w", err)
	}

	pv := privval.LoadOrGenFilePV(cometCfg.PrivValidatorKeyFile(), cometCfg.PrivValidatorStateFile())
	nodeKey, err := p2p.LoadOrGenNodeKey(cometCfg.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("load or generate node key: %w", err)
	}

	if err := writeGenesisIfNeeded(cometCfg, cfg, pv); err != nil {
		return nil, fmt.Errorf("write genesis: %w", err)
	}

	dbProvider := cmtcfg.DBProvider(func(dbCtx *cmtcfg.DBContext) (dbm.DB, error) {
		return dbm.NewDB(dbCtx.ID, dbm.BackendType(cometCfg.DBBackend), filepath.Join(cometCfg.RootDir, "data"))
	})

	tmLogger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)).With("module", "cometbft")

	n, err := node.NewNode(
		cometCfg,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(app),
		node.DefaultGenesisDocProviderFunc(cometCfg),
		dbProvider,
		node.DefaultMetricsProvider(cometCfg.Instrumentation),
		tmLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("create cometbft node: %w", err)
	}
	if err := n.Start(); err != nil {
		return nil, fmt.Errorf("start cometbft node: %w", err)
	}
	logger.Printf("cometbft node started, proxy_app=%s", cfg.ABCIListenAddr)
	return n, nil
}

func writeGenesisIfNeeded(cometCfg *cmtcfg.Config, cfg *config.Config, pv *privval.FilePV) error {
	genFile := cometCfg.GenesisFile()
	if _, err := os.Stat(genFile); err == nil {
		return nil
	}
	pubKey, err := pv.GetPubKey()
	if err != nil {
		return fmt.Errorf("get validator public key: %w", err)
	}
	genesisDoc := &cmttypes.GenesisDoc{
		ChainID:         cfg.ChainID,
		GenesisTime:     time.Now().UTC(),
		InitialHeight:   1,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		Validators: []cmttypes.GenesisValidator{
			{Address: pubKey.Address(), PubKey: pubKey, Power: 1, Name: "validator-0"},
		},
		AppState: json.RawMessage(`{}`),
	}
	return genesisDoc.SaveAs(genFile)
}

func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Printf("metrics server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Printf("metrics server error: %v", err)
	}
}

// serveQueries exposes a minimal HTTP front end over query.Server. Its only
// route is /healthz, which reports the current root digest as JSON; queries
// and proofs are served through the ABCI Query path, not over this server.
func serveQueries(ctx context.Context, addr string, s *query.Server, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		root, err := s.RootDigest()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"root_digest": fmt.Sprintf("%x", root)})
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	logger.Printf("query server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("query server error: %v", err)
	}
}
