// Command tracker runs the coordinator service for confidential period
// aggregation.
//
// The tracker owns the period lifecycle: it opens reporting windows,
// accepts signed encrypted observations from authorized reporters, folds
// them into homomorphic accumulators, and finalizes each period through a
// verified decrypt callback from the oracle. It never holds plaintext
// observations; only period aggregates are ever revealed.
//
// # Usage
//
//	go run ./cmd/tracker --oracle=http://localhost:8091 --admin-token=admin:secret
//
// Admin routes under /admin/* drive the lifecycle. Reporters submit to
// POST /api/observations; the oracle delivers decrypt results to
// POST /api/decrypt-callback.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/api/httpserver"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/cmd/common"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/crypto"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/metrics"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/oracle"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/protocol"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/services"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/store"
)

func main() {
	var (
		addr        = flag.String("addr", ":8090", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Prometheus listen address (empty disables)")
		oracleURL   = flag.String("oracle", "", "Confidential-compute oracle URL")
		adminToken  = flag.String("admin-token", "", "Admin basic-auth credentials (user:pass)")
		window      = flag.Duration("window", protocol.DefaultWindow, "Reporting window length")
		enablePprof = flag.Bool("pprof", false, "Enable pprof debugging API")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		logLevel    = flag.String("log-level", "info", "Log level")
		pgHost      = flag.String("pg-host", "", "PostgreSQL host (empty uses in-memory store)")
		pgPort      = flag.Int("pg-port", 5432, "PostgreSQL port")
		pgUser      = flag.String("pg-user", "tracker", "PostgreSQL user")
		pgPassword  = flag.String("pg-password", "", "PostgreSQL password")
		pgDatabase  = flag.String("pg-database", "tracker", "PostgreSQL database")
	)
	flag.Parse()

	log := common.SetupLogger(*logLevel, *logJSON)

	if *oracleURL == "" {
		fmt.Println("Error: --oracle is required")
		os.Exit(1)
	}
	if *adminToken == "" {
		log.Warn("No admin token configured, /admin/* routes are unprotected")
	}

	oracleSvc := services.NewHTTPOracle(*oracleURL)
	keyHex, err := oracleSvc.FetchVerifyingKey()
	if err != nil {
		log.Error("Fetching oracle verifying key failed", "err", err)
		os.Exit(1)
	}
	verifyingKey, err := crypto.NewPublicKeyFromString(keyHex)
	if err != nil {
		log.Error("Invalid oracle verifying key", "err", err)
		os.Exit(1)
	}

	var engineStore protocol.Store = store.NewMemoryStore()
	if *pgHost != "" {
		pgStore, err := store.NewPostgresStore(&store.PostgresConfig{
			Host:     *pgHost,
			Port:     *pgPort,
			User:     *pgUser,
			Password: *pgPassword,
			Database: *pgDatabase,
		})
		if err != nil {
			log.Error("PostgreSQL store setup failed", "err", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		engineStore = pgStore
		log.Info("Using PostgreSQL store", "host", *pgHost, "database", *pgDatabase)
	}

	oracleClient := oracle.NewClient(oracleSvc, verifyingKey)
	engine := protocol.NewEngine(
		protocol.EngineConfig{Window: *window, Principal: "tracker"},
		oracleSvc, oracleClient, protocol.NewRoster(), log,
		protocol.WithStore(engineStore),
	)

	tracker := services.NewTrackerService(
		&services.ServiceConfig{AdminToken: *adminToken},
		engine,
		metrics.New(prometheus.DefaultRegisterer),
		log,
	)

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               *addr,
		MetricsAddr:              *metricsAddr,
		EnablePprof:              *enablePprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	}, tracker)
	if err != nil {
		log.Error("Server setup failed", "err", err)
		os.Exit(1)
	}

	srv.RunInBackground()
	log.Info("Tracker started", "addr", *addr, "window", *window)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down")
	srv.Shutdown()
}
