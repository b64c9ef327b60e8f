// Package indexdb maintains a secondary SQLite index of the append-only
// logs: ticks, settled trades, snapshot locations, and the catalogs a
// world was started from. The JSONL logs remain the source of truth.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/persistence/snapshot"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/catalogs"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/tuning"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqTrade
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	trade    world.TradeLogEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick         uint64
	Path         string
	Seed         int64
	Sectors      int
	Facilities   int
	Ships        int
	Transactions int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: a busy market can settle many trades per tick.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			trades INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			transaction_id TEXT NOT NULL,
			correlation_id INTEGER NOT NULL,
			initiator TEXT NOT NULL,
			trader TEXT NOT NULL,
			commodity TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price REAL NOT NULL,
			direction TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_commodity_tick ON trades(commodity, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_trader_tick ON trades(trader, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			sectors INTEGER NOT NULL,
			facilities INTEGER NOT NULL,
			ships INTEGER NOT NULL,
			transactions INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
	}
	return nil
}

func (s *SQLiteIndex) WriteTrade(entry world.TradeLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTrade, trade: entry}:
	default:
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.WorldV1, tick uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:         tick,
		Path:         path,
		Seed:         snap.Seed,
		Sectors:      len(snap.Sectors),
		Facilities:   len(snap.Facilities),
		Ships:        len(snap.Ships),
		Transactions: len(snap.Transactions),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	// Raw json for base catalogs.
	raw := map[string][]byte{}
	read := func(name, path string) {
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		raw[name] = b
	}
	if configDir != "" {
		read("commodity_defs", filepath.Join(configDir, "commodities.json"))
		read("recipes", filepath.Join(configDir, "recipes.json"))
		read("universe", filepath.Join(configDir, "universe.json"))
	}

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b := raw["commodity_defs"]; len(b) > 0 {
		rows = append(rows, kv{name: "commodity_defs", digest: cats.Commodities.Digest, json: b})
	}
	if b, _ := json.Marshal(cats.Commodities.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "commodity_palette", digest: cats.Commodities.PaletteDigest, json: b})
	}
	if b := raw["recipes"]; len(b) > 0 {
		rows = append(rows, kv{name: "recipes", digest: cats.Recipes.Digest, json: b})
	}
	if b := raw["universe"]; len(b) > 0 {
		rows = append(rows, kv{name: "universe", digest: cats.Universe.Digest, json: b})
	}

	// Tuning: store the values we actually apply (canonical JSON).
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		digest := hex.EncodeToString(sum[:])
		rows = append(rows, kv{name: "tuning", digest: digest, json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,trades,raw_json) VALUES(?,?,?,?)`)
	insertTrade, _ := s.db.Prepare(`INSERT OR REPLACE INTO trades(tick,seq,transaction_id,correlation_id,initiator,trader,commodity,quantity,price,direction,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,seed,sectors,facilities,ships,transactions) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertTrade != nil {
			_ = insertTrade.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastTradeTick uint64
		tradeSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			b, _ := json.Marshal(r.tick)
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					int64(r.tick.Tick),
					r.tick.Digest,
					r.tick.Trades,
					string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqTrade:
			e := r.trade
			if e.Tick != lastTradeTick {
				lastTradeTick = e.Tick
				tradeSeq = 0
			}
			seq := tradeSeq
			tradeSeq++
			raw, _ := json.Marshal(e)
			if insertTrade != nil {
				if _, err := tx.Stmt(insertTrade).Exec(
					int64(e.Tick),
					seq,
					e.TransactionID,
					int64(e.CorrelationID),
					e.Initiator,
					e.Trader,
					e.Commodity,
					e.Quantity,
					e.Price,
					e.Type,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Tick),
					sn.Path,
					sn.Seed,
					sn.Sectors,
					sn.Facilities,
					sn.Ships,
					sn.Transactions,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
