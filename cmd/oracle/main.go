// Command oracle runs the confidential-compute service.
//
// The oracle holds the only encryption key in the system. It hands out
// opaque ciphertext handles, performs homomorphic addition and width casts,
// tracks per-ciphertext capability grants, and answers decrypt requests
// asynchronously: plaintexts plus an Ed25519 proof over the exact result
// encoding are POSTed to the tracker's callback endpoint.
//
// # Usage
//
//	go run ./cmd/oracle --callback=http://localhost:8090/api/decrypt-callback
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/api/httpserver"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/cmd/common"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/confidential"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/services"
)

func main() {
	var (
		addr        = flag.String("addr", ":8091", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Prometheus listen address (empty disables)")
		callbackURL = flag.String("callback", "", "Tracker decrypt-callback URL")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		logLevel    = flag.String("log-level", "info", "Log level")
	)
	flag.Parse()

	log := common.SetupLogger(*logLevel, *logJSON)

	if *callbackURL == "" {
		fmt.Println("Error: --callback is required")
		os.Exit(1)
	}

	svc, err := confidential.NewLocalService()
	if err != nil {
		log.Error("Confidential service setup failed", "err", err)
		os.Exit(1)
	}
	log.Info("Oracle proof key", "public_key", svc.VerifyingKey().String())

	oracleSvc := services.NewOracleService(svc, *callbackURL, log)

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               *addr,
		MetricsAddr:              *metricsAddr,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	}, oracleSvc)
	if err != nil {
		log.Error("Server setup failed", "err", err)
		os.Exit(1)
	}

	srv.RunInBackground()
	log.Info("Oracle started", "addr", *addr, "callback", *callbackURL)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down")
	srv.Shutdown()
}
