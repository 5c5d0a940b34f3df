package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pathplanner/internal/config"
	"pathplanner/internal/link"
	"pathplanner/internal/logging"
	"pathplanner/internal/observability"
	"pathplanner/internal/vehicle"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration YAML (vehicle section)")
	cueSchemaPath := flag.String("schema", "", "Path to CUE schema file (embedded schema when empty)")
	listen := flag.String("listen", "", "Address serving /link, /state, /toggle-chaos and /metrics")
	serialPort := flag.String("serial", "", "Serve a single planner on this serial port instead of HTTP")
	baud := flag.Int("baud", 57600, "Serial baud rate")
	loss := flag.Float64("loss", -1, "Probability an acknowledged update is lost")
	nack := flag.Float64("nack", -1, "Probability a delivered update is rejected")
	ackDelay := flag.Duration("ack-delay", -1, "Delay before an update is answered")
	seed := flag.Int64("seed", 0, "Random seed for chaos decisions (0 keeps the configured seed)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath, *cueSchemaPath)
		if err != nil {
			log.Fatalf("Config load failed: %v", err)
		}
		cfg = *c
	} else if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	vc := vehicle.Config{
		CommunicationLoss: cfg.Vehicle.CommunicationLoss,
		NackRate:          cfg.Vehicle.NackRate,
		AckDelay:          cfg.Vehicle.AckDelay.Std(),
		Seed:              cfg.Vehicle.Seed,
	}
	if *loss >= 0 {
		vc.CommunicationLoss = *loss
	}
	if *nack >= 0 {
		vc.NackRate = *nack
	}
	if *ackDelay >= 0 {
		vc.AckDelay = *ackDelay
	}
	if *seed != 0 {
		vc.Seed = *seed
	}
	addr := cfg.Vehicle.Listen
	if *listen != "" {
		addr = *listen
	}

	logger := logging.New(cfg.LogLevel).With("component", "vehicle")
	metrics, err := observability.NewVehicleCollector(nil)
	if err != nil {
		log.Fatalf("Metrics setup failed: %v", err)
	}
	v := vehicle.New(vc, metrics, logger)
	log.Printf("[Main] Vehicle chaos=%t loss=%.2f nack=%.2f ack_delay=%s", v.Chaos(), vc.CommunicationLoss, vc.NackRate, vc.AckDelay)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serialPort != "" {
		conn, err := link.OpenSerial(*serialPort, *baud)
		if err != nil {
			log.Fatalf("Failed to open serial port: %v", err)
		}
		log.Printf("[Main] Serving planner on %s", *serialPort)
		if err := v.ServeConn(ctx, conn); err != nil && ctx.Err() == nil {
			log.Fatalf("Serial link failed: %v", err)
		}
		log.Println("[Main] Vehicle simulation stopped.")
		return
	}

	srv := &http.Server{Addr: addr, Handler: v.Handler(ctx), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	log.Printf("[Main] Vehicle listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Vehicle server failed: %v", err)
	}
	log.Println("[Main] Vehicle simulation stopped.")
}
