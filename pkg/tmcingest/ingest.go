// Package tmcingest drives an external RDS-TMC decoder subprocess and
// folds its output into a live tmc.State. The decoder itself (rdsd /
// rdsquery, or any compatible RDS receiver frontend) is not part of this
// module — it is spawned and piped from, the way the original implementation
// drove its own rdsd/rdsquery pair.
package tmcingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"tmcroute/pkg/graph"
	"tmcroute/pkg/tmc"
)

// ErrSpawnFailed wraps a failure to start the decoder subprocess.
var ErrSpawnFailed = errors.New("tmcingest: failed to spawn decoder")

// DefaultTTL is the lifetime given to an applied event when the decoder
// does not supply its own expiry.
const DefaultTTL = 15 * time.Minute

// Config configures the decoder subprocess and its arguments.
type Config struct {
	Command string
	Args    []string
	TTL     time.Duration
}

// Driver runs the decoder subprocess, parses its line-oriented output,
// and applies decoded events to a tmc.State. On unexpected subprocess
// exit it respawns with exponential backoff.
type Driver struct {
	cfg   Config
	state *tmc.State
	graph *graph.RoutingData
}

// NewDriver creates a Driver that applies decoded events to state using
// graph's TMC topology to expand location chains into edges.
func NewDriver(cfg Config, state *tmc.State, rd *graph.RoutingData) *Driver {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	return &Driver{cfg: cfg, state: state, graph: rd}
}

// Run spawns the decoder and processes its output until ctx is
// cancelled, respawning on unexpected exit with exponential backoff
// capped at one minute. If the decoder cannot be started, Run logs the
// failure and returns; routing goes on without live TMC data.
func (d *Driver) Run(ctx context.Context) {
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		if err := d.runOnce(ctx); err != nil {
			if errors.Is(err, ErrSpawnFailed) {
				log.Printf("tmcingest: %v; TMC ingest stopped", err)
				return
			}
			log.Printf("tmcingest: decoder exited: %v, retrying in %s", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > time.Minute {
			backoff = time.Minute
		}
	}
}

func (d *Driver) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.cfg.Command, d.cfg.Args...)
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Join(ErrSpawnFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return errors.Join(ErrSpawnFailed, err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		d.dispatchLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		cmd.Wait()
		return err
	}

	return cmd.Wait()
}

// dispatchLine routes one line of decoder output by its RDS message-type
// prefix. GS (group silent), GF (group forecast), and S (sudden) group
// types all carry an ALERT-C location/event payload per spec §4.7, so
// all three are parsed and applied identically; only the prefix length
// differs between them.
func (d *Driver) dispatchLine(line string) {
	switch {
	case strings.HasPrefix(line, "GS "):
		d.applyEvent(line[3:])
	case strings.HasPrefix(line, "GF "):
		d.applyEvent(line[3:])
	case strings.HasPrefix(line, "S "):
		d.applyEvent(line[2:])
	}
}

// applyEvent parses a "location,direction,event_code,extent" payload and
// applies it as a TMC event.
func (d *Driver) applyEvent(payload string) {
	fields := strings.SplitN(payload, ",", 4)
	if len(fields) < 4 {
		log.Printf("tmcingest: malformed event line: %q", payload)
		return
	}

	locationID, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		log.Printf("tmcingest: bad location id %q: %v", fields[0], err)
		return
	}
	direction := fields[1] == "1"
	eventCode, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		log.Printf("tmcingest: bad event code %q: %v", fields[2], err)
		return
	}
	extent, err := strconv.ParseUint(fields[3], 10, 8)
	if err != nil {
		log.Printf("tmcingest: bad extent %q: %v", fields[3], err)
		return
	}

	raw := tmc.RawEvent{
		LocationID: uint32(locationID),
		Direction:  direction,
		EventCode:  uint32(eventCode),
		Extent:     uint8(extent),
		TTL:        d.cfg.TTL,
	}
	d.state.Apply(raw, d.graph, time.Now())
}
