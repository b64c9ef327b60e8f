package protocol

// SubscribeMsg opens (or updates) an observer session.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Markets         bool   `json:"markets,omitempty"`
	Trades          bool   `json:"trades,omitempty"`
}

// WelcomeMsg confirms a subscription and pins the catalog digests the
// stream was produced from.
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	WorldID         string         `json:"world_id"`
	Tick            uint64         `json:"tick"`
	TickRateHz      int            `json:"tick_rate_hz"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	CommodityPalette DigestRef `json:"commodity_palette"`
	RecipesDigest    string    `json:"recipes_digest"`
	UniverseDigest   string    `json:"universe_digest"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// TickMsg is emitted once per simulation tick.
type TickMsg struct {
	Type   string `json:"type"`
	Tick   uint64 `json:"tick"`
	Digest string `json:"digest"`
	Trades int    `json:"trades"`
}

// TradeMsg is emitted for every settled trade.
type TradeMsg struct {
	Type          string  `json:"type"`
	Tick          uint64  `json:"tick"`
	TransactionID string  `json:"transaction_id"`
	CorrelationID uint64  `json:"correlation_id"`
	Initiator     string  `json:"initiator"`
	Trader        string  `json:"trader"`
	Commodity     string  `json:"commodity"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	Direction     string  `json:"direction"`
}

// MarketMsg carries one facility's posted offers.
type MarketMsg struct {
	Type       string        `json:"type"`
	Tick       uint64        `json:"tick"`
	FacilityID string        `json:"facility_id"`
	SectorID   string        `json:"sector_id"`
	Offers     []MarketOffer `json:"offers"`
}

type MarketOffer struct {
	Commodity string  `json:"commodity"`
	Direction string  `json:"direction"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}
