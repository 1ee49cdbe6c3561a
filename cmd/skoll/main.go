// skoll reads a command script from stdin and writes the engine's
// output to stdout. Diagnostics go to stderr.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skoll/internal/engine"
	"skoll/internal/interp"
)

func main() {
	capacity := flag.Int("capacity", engine.DefaultSideCapacity, "max resting orders per book side")
	depth := flag.Int("depth", engine.DefaultQueryDepth, "query depth per side")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	it := interp.New(engine.Config{
		SideCapacity: *capacity,
		QueryDepth:   *depth,
	}, os.Stdout)

	if err := it.RunScript(os.Stdin, os.Stdout); err != nil {
		log.Debug().Err(err).Msg("script stopped")
		os.Exit(1)
	}
}
