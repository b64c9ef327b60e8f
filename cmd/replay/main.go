// Command replay verifies determinism: it resumes a snapshot, re-steps
// the world, and compares per-tick digests against the events log.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/persistence/snapshot"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/catalogs"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/tuning"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/world"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst")
		eventsDir  = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		steps      = flag.Uint64("steps", 0, "step this many ticks and print digests (when -events is empty)")
		toTick     = flag.Uint64("to_tick", 0, "stop verification at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("snapshot v%d world=%s tick=%d seed=%d sectors=%d factions=%d facilities=%d ships=%d transactions=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed,
		len(snap.Sectors), len(snap.Factions), len(snap.Facilities), len(snap.Ships), len(snap.Transactions))

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Default()
	}
	if snap.TickRate > 0 {
		tune.TickRateHz = snap.TickRate
	}

	w := world.FromSnapshot(world.Config{ID: snap.Header.WorldID, Seed: snap.Seed, Tune: tune}, snap)
	w.SetCostModel(cats.CostModel(tune.Markup, tune.Spread))

	if *eventsDir == "" {
		for i := uint64(0); i < *steps; i++ {
			tick, digest := w.Step()
			fmt.Printf("%d %s\n", tick, digest)
		}
		return
	}

	files, err := listEventFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	startTick := w.Tick()
	var checked uint64
	for _, path := range files {
		if err := replayFile(w, path, startTick, *toTick, &checked); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if *toTick != 0 && w.Tick() > *toTick {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d)\n", checked, snap.Header.Tick)
}

func listEventFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(w *world.World, path string, startTick, toTick uint64, checked *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		var entry world.TickLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if entry.Tick < startTick {
			continue
		}
		if toTick != 0 && entry.Tick > toTick {
			return nil
		}
		if entry.Tick != w.Tick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", w.Tick(), entry.Tick, filepath.Base(path))
		}

		tick, gotDigest := w.Step()
		if tick != entry.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
		}

		*checked++
		if gotDigest != entry.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
		}
	}
	return sc.Err()
}
