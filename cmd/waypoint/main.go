/*
This command runs a small todo service built from waypoint endpoints.

For the list of command line options, run:

	waypoint -help

The service keeps the todos in memory. With -upstream-url, it also
forwards the requests under /proxy/ to the upstream service, with retries
and an optional circuit breaker.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/waypoint"
	"github.com/zalando/waypoint/config"
	"github.com/zalando/waypoint/endpoint"
	"github.com/zalando/waypoint/endpoints/ratelimit"
	"github.com/zalando/waypoint/endpoints/upstream"
)

var (
	version string
	commit  string
)

func newRoot(cfg *config.Config) (endpoint.Endpoint, error) {
	o := routeOptions{
		limiter:     ratelimit.NewLimiter(cfg.RatelimitRate, cfg.RatelimitBurst),
		maxBodySize: cfg.MaxBodySize,
	}

	if cfg.UpstreamURL != "" {
		c, err := upstream.New(cfg.UpstreamOptions())
		if err != nil {
			return nil, err
		}

		o.upstream = c
	}

	return routes(newStore(), o), nil
}

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		log.Fatalf("Error processing config: %s", err)
	}

	if cfg.PrintVersion {
		fmt.Printf("waypoint version %s (commit: %s)\n", version, commit)
		return
	}

	root, err := newRoot(cfg)
	if err != nil {
		log.Fatalf("Error creating the routes: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := waypoint.Run(ctx, root, cfg.ToOptions()); err != nil {
		log.Fatal(err)
	}
}
