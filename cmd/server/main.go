package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/persistence/indexdb"
	persistlog "github.com/sectoralphagame/sector-alpha-sub000/internal/persistence/log"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/persistence/snapshot"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/protocol"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/catalogs"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/tuning"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/world"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "sub000", "world id")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (ticks/trades/snapshots/catalogs)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
		demo       = flag.Bool("demo", true, "seed the demo economy when starting a fresh world")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	// Load tuning (required for fresh worlds; resumes may run on defaults).
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Default()
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index db: upsert catalogs: %v", err)
		}
	}

	// Create world (fresh or resumed from snapshot).
	var w *world.World
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		if snap.TickRate > 0 {
			tune.TickRateHz = snap.TickRate
		}
		w = world.FromSnapshot(world.Config{ID: *worldID, Seed: snap.Seed, Tune: tune}, snap)
		w.SetCostModel(cats.CostModel(tune.Markup, tune.Spread))
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.Tick())
	} else {
		w = world.NewFromCatalogs(world.Config{ID: *worldID, Seed: *seed, Tune: tune}, cats)
		if *demo {
			seedDemoEconomy(w, cats, logger)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	obs := observer.NewServer(observer.Info{
		WorldID:    *worldID,
		TickRateHz: tune.TickRateHz,
		Catalogs: protocol.CatalogDigests{
			CommodityPalette: protocol.DigestRef{
				Digest: cats.Commodities.PaletteDigest,
				Count:  len(cats.Commodities.Palette),
			},
			RecipesDigest:  cats.Recipes.Digest,
			UniverseDigest: cats.Universe.Digest,
		},
	}, w.Tick, logger)

	tickLog := persistlog.NewTickLogger(worldDir)
	tradeLog := persistlog.NewTradeLogger(worldDir)
	defer tickLog.Close()
	defer tradeLog.Close()

	tickLoggers := fanTickLogger{tickLog}
	tradeLoggers := fanTradeLogger{tradeLog, obsTradeLogger{obs}}
	if idx != nil {
		tickLoggers = append(tickLoggers, idx)
		tradeLoggers = append(tradeLoggers, idx)
	}
	w.SetTickLogger(tickLoggers)
	w.SetTradeLogger(tradeLoggers)

	// Snapshot writer.
	snapCh := make(chan world.ExportedSnapshot, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap, snap.Header.Tick)
				}
			}
		}
	}()

	// World loop: the only goroutine allowed to touch world state.
	go func() {
		hz := tune.TickRateHz
		if hz <= 0 {
			hz = 5
		}
		ticker := time.NewTicker(time.Second / time.Duration(hz))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				before := w.Stats().TradesSettled
				tick, digest := w.Step()
				trades := int(w.Stats().TradesSettled - before)

				b, _ := json.Marshal(protocol.TickMsg{
					Type:   protocol.TypeTick,
					Tick:   tick,
					Digest: digest,
					Trades: trades,
				})
				obs.BroadcastTick(b)

				if tune.OfferRefreshTicks > 0 && tick != 0 &&
					tick%uint64(tune.OfferRefreshTicks) == 0 && obs.Sessions() > 0 {
					broadcastMarkets(w, obs, tick)
				}
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		st := w.Stats()
		tick := w.Tick()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP sectoralpha_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE sectoralpha_world_tick gauge\n")
		fmt.Fprintf(rw, "sectoralpha_world_tick{world=%q} %d\n", *worldID, tick)

		fmt.Fprintf(rw, "# HELP sectoralpha_observers Connected observer sessions.\n")
		fmt.Fprintf(rw, "# TYPE sectoralpha_observers gauge\n")
		fmt.Fprintf(rw, "sectoralpha_observers{world=%q} %d\n", *worldID, obs.Sessions())

		fmt.Fprintf(rw, "# HELP sectoralpha_trades_settled_total Settled trade count.\n")
		fmt.Fprintf(rw, "# TYPE sectoralpha_trades_settled_total counter\n")
		fmt.Fprintf(rw, "sectoralpha_trades_settled_total{world=%q} %d\n", *worldID, st.TradesSettled)

		fmt.Fprintf(rw, "# HELP sectoralpha_trades_aborted_total Aborted transaction count.\n")
		fmt.Fprintf(rw, "# TYPE sectoralpha_trades_aborted_total counter\n")
		fmt.Fprintf(rw, "sectoralpha_trades_aborted_total{world=%q} %d\n", *worldID, st.TradesAborted)

		fmt.Fprintf(rw, "# HELP sectoralpha_trade_volume_total Money moved by settled trades.\n")
		fmt.Fprintf(rw, "# TYPE sectoralpha_trade_volume_total counter\n")
		fmt.Fprintf(rw, "sectoralpha_trade_volume_total{world=%q} %.2f\n", *worldID, st.TradeVolume)

		fmt.Fprintf(rw, "# HELP sectoralpha_units_total Units moved by the simulation.\n")
		fmt.Fprintf(rw, "# TYPE sectoralpha_units_total counter\n")
		fmt.Fprintf(rw, "sectoralpha_units_total{world=%q,kind=%q} %d\n", *worldID, "produced", st.UnitsProduced)
		fmt.Fprintf(rw, "sectoralpha_units_total{world=%q,kind=%q} %d\n", *worldID, "mined", st.UnitsMined)
		fmt.Fprintf(rw, "sectoralpha_units_total{world=%q,kind=%q} %d\n", *worldID, "discarded", st.UnitsDiscarded)
	})

	mux.HandleFunc("/v1/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obs.WSHandler())

	if envBool("SA_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// broadcastMarkets pushes every facility's active offers. Runs on the
// world loop goroutine.
func broadcastMarkets(w *world.World, obs *observer.Server, tick uint64) {
	for _, id := range w.FacilityIDs() {
		f := w.Facility(id)
		if f == nil {
			continue
		}
		offers := f.Book.Offers()
		if len(offers) == 0 {
			continue
		}
		msg := protocol.MarketMsg{
			Type:       protocol.TypeMarket,
			Tick:       tick,
			FacilityID: f.ID,
			SectorID:   f.SectorID,
		}
		for _, no := range offers {
			msg.Offers = append(msg.Offers, protocol.MarketOffer{
				Commodity: no.Commodity,
				Direction: string(no.Offer.Type),
				Quantity:  no.Offer.Quantity,
				Price:     no.Offer.Price,
			})
		}
		b, _ := json.Marshal(msg)
		obs.BroadcastMarket(b)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

type fanTickLogger []world.TickLogger

func (f fanTickLogger) WriteTick(entry world.TickLogEntry) error {
	for _, l := range f {
		if l != nil {
			_ = l.WriteTick(entry)
		}
	}
	return nil
}

type fanTradeLogger []world.TradeLogger

func (f fanTradeLogger) WriteTrade(entry world.TradeLogEntry) error {
	for _, l := range f {
		if l != nil {
			_ = l.WriteTrade(entry)
		}
	}
	return nil
}

// obsTradeLogger mirrors settled trades onto the observer stream.
type obsTradeLogger struct{ obs *observer.Server }

func (o obsTradeLogger) WriteTrade(entry world.TradeLogEntry) error {
	b, err := json.Marshal(protocol.TradeMsg{
		Type:          protocol.TypeTrade,
		Tick:          entry.Tick,
		TransactionID: entry.TransactionID,
		CorrelationID: entry.CorrelationID,
		Initiator:     entry.Initiator,
		Trader:        entry.Trader,
		Commodity:     entry.Commodity,
		Quantity:      entry.Quantity,
		Price:         entry.Price,
		Direction:     entry.Type,
	})
	if err != nil {
		return err
	}
	o.obs.BroadcastTrade(b)
	return nil
}
