// Package snapshot defines the serialized world state and its on-disk
// format (a JSON header line followed by a gob body, zstd compressed).
// Ledger allocation lists and counters are carried verbatim so allocation
// ids are never reused after a reload.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/budget"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/pricing"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/settlement"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/economy/storage"
	"github.com/sectoralphagame/sector-alpha-sub000/internal/sim/orders"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type WorldV1 struct {
	Header Header `json:"header"`

	Seed     int64 `json:"seed"`
	TickRate int   `json:"tick_rate_hz"`

	Sectors      []SectorV1               `json:"sectors"`
	Factions     []FactionV1              `json:"factions"`
	Facilities   []FacilityV1             `json:"facilities"`
	Ships        []ShipV1                 `json:"ships"`
	Fields       []FieldV1                `json:"fields,omitempty"`
	Transactions []settlement.Transaction `json:"transactions,omitempty"`

	Stats StatsV1 `json:"stats"`

	Counters CountersV1 `json:"counters"`
}

type SectorV1 struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Links []string `json:"links,omitempty"`
}

type FactionV1 struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Player    bool               `json:"player,omitempty"`
	Budget    budget.Snapshot    `json:"budget"`
	Relations map[string]float64 `json:"relations,omitempty"`
}

type FacilityV1 struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FactionID string `json:"faction_id"`
	SectorID  string `json:"sector_id"`

	Modules []ModuleV1 `json:"modules,omitempty"`

	Storage storage.Snapshot     `json:"storage"`
	Budget  budget.Snapshot      `json:"budget"`
	Book    pricing.Snapshot     `json:"book"`
	Journal []economy.TradeEntry `json:"journal,omitempty"`

	LastAdjustTick uint64 `json:"last_adjust_tick,omitempty"`
}

type ModuleV1 struct {
	ID   string            `json:"id"`
	Name string            `json:"name,omitempty"`
	PAC  map[string]RateV1 `json:"pac"`
}

type RateV1 struct {
	Produces int `json:"produces,omitempty"`
	Consumes int `json:"consumes,omitempty"`
}

type ShipV1 struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FactionID string `json:"faction_id"`
	SectorID  string `json:"sector_id"`
	DockedAt  string `json:"docked_at,omitempty"`

	Storage storage.Snapshot     `json:"storage"`
	Journal []economy.TradeEntry `json:"journal,omitempty"`

	Order *orders.Order `json:"order,omitempty"`
}

type FieldV1 struct {
	ID        string `json:"id"`
	SectorID  string `json:"sector_id"`
	Commodity string `json:"commodity"`
}

type StatsV1 struct {
	Ticks          uint64  `json:"ticks"`
	TradesSettled  uint64  `json:"trades_settled"`
	TradesAborted  uint64  `json:"trades_aborted"`
	TradeVolume    float64 `json:"trade_volume"`
	UnitsProduced  uint64  `json:"units_produced"`
	UnitsMined     uint64  `json:"units_mined"`
	UnitsDiscarded uint64  `json:"units_discarded"`
}

type CountersV1 struct {
	NextFaction     uint64 `json:"next_faction"`
	NextFacility    uint64 `json:"next_facility"`
	NextShip        uint64 `json:"next_ship"`
	NextField       uint64 `json:"next_field"`
	NextTransaction uint64 `json:"next_transaction"`
	NextOrder       uint64 `json:"next_order"`
}

func WriteSnapshot(path string, snap WorldV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (WorldV1, error) {
	var snap WorldV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is informational; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
