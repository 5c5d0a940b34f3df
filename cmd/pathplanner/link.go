package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"pathplanner/internal/config"
	"pathplanner/internal/link"
	"pathplanner/internal/vehicle"
)

// dialLink connects to the vehicle over the configured transport and starts
// the client's frame loop. The memory transport runs a simulated vehicle in
// process.
func dialLink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*link.Client, func(), error) {
	var conn link.Conn
	var err error
	stop := func() {}
	switch cfg.Link.Transport {
	case "websocket", "":
		log.Printf("[Main] Connecting to vehicle at %s", cfg.Link.URL)
		conn, err = link.DialWebsocket(ctx, cfg.Link.URL)
	case "serial":
		log.Printf("[Main] Opening serial link %s at %d baud", cfg.Link.Port, cfg.Link.Baud)
		conn, err = link.OpenSerial(cfg.Link.Port, cfg.Link.Baud)
	case "memory":
		log.Println("[Main] Using in-process simulated vehicle")
		v := vehicle.New(vehicleConfig(cfg), nil, logger.With("component", "vehicle"))
		local, remote := link.Pipe()
		vctx, cancel := context.WithCancel(ctx)
		go v.ServeConn(vctx, remote)
		conn, stop = local, cancel
	default:
		return nil, nil, fmt.Errorf("unknown link transport %q", cfg.Link.Transport)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open link: %w", err)
	}

	client := link.NewClient(conn, logger.With("component", "link"))
	rctx, cancel := context.WithCancel(ctx)
	go func() {
		if err := client.Run(rctx); err != nil && rctx.Err() == nil {
			logger.Warn("link closed", "error", err)
		}
	}()
	return client, func() {
		cancel()
		client.Close()
		stop()
	}, nil
}

func vehicleConfig(cfg *config.Config) vehicle.Config {
	return vehicle.Config{
		CommunicationLoss: cfg.Vehicle.CommunicationLoss,
		NackRate:          cfg.Vehicle.NackRate,
		AckDelay:          cfg.Vehicle.AckDelay.Std(),
		Seed:              cfg.Vehicle.Seed,
	}
}
