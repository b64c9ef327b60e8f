package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/persistence/snapshot"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/world"
)

func TestSQLiteIndex_WritesTicksTradesAndSnapshots(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "world.sqlite")

	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := idx.WriteTick(world.TickLogEntry{Tick: 1, Trades: 2, Digest: "abc"}); err != nil {
		t.Fatalf("write tick: %v", err)
	}
	if err := idx.WriteTick(world.TickLogEntry{Tick: 2, Digest: "def"}); err != nil {
		t.Fatalf("write tick: %v", err)
	}

	// Two trades on the same tick must get distinct seq values.
	for i := 0; i < 2; i++ {
		err := idx.WriteTrade(world.TradeLogEntry{
			Tick:          1,
			TransactionID: "TX1",
			CorrelationID: uint64(i + 1),
			Initiator:     "SH1",
			Trader:        "FC1",
			Commodity:     "FOOD",
			Quantity:      10,
			Price:         90,
			Type:          "BUY",
		})
		if err != nil {
			t.Fatalf("write trade: %v", err)
		}
	}

	idx.RecordSnapshot(filepath.Join(dir, "snap-10.bin.zst"), snapshot.WorldV1{
		Seed:       1337,
		Sectors:    make([]snapshot.SectorV1, 3),
		Facilities: make([]snapshot.FacilityV1, 2),
		Ships:      make([]snapshot.ShipV1, 1),
	}, 10)

	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	count := func(q string) int {
		t.Helper()
		var n int
		if err := db.QueryRow(q).Scan(&n); err != nil {
			t.Fatalf("query %q: %v", q, err)
		}
		return n
	}

	if got := count(`SELECT COUNT(*) FROM ticks`); got != 2 {
		t.Fatalf("ticks rows = %d, want 2", got)
	}
	if got := count(`SELECT COUNT(*) FROM trades`); got != 2 {
		t.Fatalf("trades rows = %d, want 2", got)
	}
	if got := count(`SELECT COUNT(*) FROM snapshots`); got != 1 {
		t.Fatalf("snapshots rows = %d, want 1", got)
	}

	var trades int
	if err := db.QueryRow(`SELECT trades FROM ticks WHERE tick = 1`).Scan(&trades); err != nil {
		t.Fatalf("tick row: %v", err)
	}
	if trades != 2 {
		t.Fatalf("tick 1 trades = %d, want 2", trades)
	}

	var sectors, facilities int
	if err := db.QueryRow(`SELECT sectors, facilities FROM snapshots WHERE tick = 10`).Scan(&sectors, &facilities); err != nil {
		t.Fatalf("snapshot row: %v", err)
	}
	if sectors != 3 || facilities != 2 {
		t.Fatalf("snapshot counts = (%d,%d), want (3,2)", sectors, facilities)
	}
}

func TestSQLiteIndex_WriteAfterCloseIsNoop(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenSQLite(filepath.Join(dir, "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.WriteTick(world.TickLogEntry{Tick: 9, Digest: "x"}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := idx.WriteTrade(world.TradeLogEntry{Tick: 9}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
}
