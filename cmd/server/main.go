// server runs the matching engine behind a line-oriented TCP command
// port and a read-only HTTP query port.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"skoll/internal/api"
	"skoll/internal/engine"
	"skoll/internal/interp"
	"skoll/internal/net"
)

func main() {
	address := flag.String("address", "0.0.0.0", "bind address")
	tcpPort := flag.Int("tcp-port", 9001, "command port")
	httpPort := flag.Int("http-port", 9002, "query port")
	capacity := flag.Int("capacity", engine.DefaultSideCapacity, "max resting orders per book side")
	depth := flag.Int("depth", engine.DefaultQueryDepth, "query depth per side")
	flag.Parse()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Trade lines produced outside any session (there are none today)
	// would have nowhere to go; sessions receive theirs inline.
	it := interp.New(engine.Config{
		SideCapacity: *capacity,
		QueryDepth:   *depth,
	}, io.Discard)

	srv := net.New(*address, *tcpPort, it)
	go srv.Run(ctx)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", *address, *httpPort),
		Handler: api.NewServer(it).Router(),
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	if err := httpSrv.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
}
