package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"tmcroute/pkg/api"
	"tmcroute/pkg/graph"
	"tmcroute/pkg/grid"
	"tmcroute/pkg/routing"
	"tmcroute/pkg/tmc"
	"tmcroute/pkg/tmcingest"
)

func main() {
	statePath := flag.String("state", "state.bin", "Path to preprocessed routing snapshot")
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	decoderCmd := flag.String("tmc-decoder", "rdsquery", "TMC decoder subprocess command")
	decoderArgs := flag.String("tmc-decoder-args", "-s localhost -c 0 -t tmc", "Space-separated arguments for the TMC decoder subprocess")
	disableTMC := flag.Bool("no-tmc", false, "Disable the TMC ingest subprocess entirely")
	flag.Parse()

	start := time.Now()

	log.Printf("loading snapshot from %s...", *statePath)
	rd, err := graph.ReadSnapshot(*statePath)
	if err != nil {
		log.Fatalf("failed to load snapshot (run cmd/preprocess first): %v", err)
	}
	log.Printf("loaded: %d nodes, %d edges", rd.NumNodes(), rd.NumEdges())

	log.Println("building spatial index...")
	g := grid.Build(rd)

	tmcState := tmc.NewState()
	engine := routing.NewEngine(rd, tmcState)

	// Reclaim memory from init-time temporaries, matching the teacher's
	// post-load GC pass (Go's heap otherwise retains peak RSS from
	// snapshot decoding across several doubling GC cycles).
	runtime.GC()
	debug.FreeOSMemory()

	loadTime := time.Since(start)
	log.Printf("ready in %s", loadTime.Round(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !*disableTMC {
		driver := tmcingest.NewDriver(tmcingest.Config{
			Command: *decoderCmd,
			Args:    strings.Fields(*decoderArgs),
		}, tmcState, rd)
		go driver.Run(ctx)
		go expireLoop(ctx, tmcState)
	} else {
		log.Println("TMC ingest disabled by flag")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	cfg := api.DefaultConfig(addr)
	cfg.CORSOrigin = *corsOrigin

	handlers := api.NewHandlers(rd, g, engine, tmcState)
	srv := api.NewServer(cfg, handlers)

	if err := api.ListenAndServe(srv); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}

// expireLoop periodically evicts TMC events whose TTL has passed.
func expireLoop(ctx context.Context, state *tmc.State) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			state.Expire(now)
		}
	}
}
