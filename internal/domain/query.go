package domain

// Known source identifiers.
const (
	SourceMobileDe  = "mobile_de"
	SourceCochesNet = "coches_net"
)

type FuelType string

const (
	FuelGasoline FuelType = "gasoline"
	FuelDiesel   FuelType = "diesel"
	FuelElectric FuelType = "electric"
	FuelHybrid   FuelType = "hybrid"
	FuelLPG      FuelType = "lpg"
	FuelCNG      FuelType = "cng"
)

type Transmission string

const (
	TransmissionManual        Transmission = "manual"
	TransmissionAutomatic     Transmission = "automatic"
	TransmissionSemiAutomatic Transmission = "semi_automatic"
)

// Filters is the unified filter set shared by every source; each adapter
// translates it into the source's own query parameters.
type Filters struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`

	PriceMin float64 `json:"price_min,omitempty"`
	PriceMax float64 `json:"price_max,omitempty"`

	YearMin int `json:"year_min,omitempty"`
	YearMax int `json:"year_max,omitempty"`

	MileageMaxKM int `json:"mileage_max_km,omitempty"`

	PowerMinHP int `json:"power_min_hp,omitempty"`
	PowerMaxHP int `json:"power_max_hp,omitempty"`

	FuelTypes     []FuelType     `json:"fuel_types,omitempty"`
	Transmissions []Transmission `json:"transmissions,omitempty"`

	DealerOnly  bool `json:"dealer_only,omitempty"`
	PrivateOnly bool `json:"private_only,omitempty"`
}

// ScrapeQuery describes one acquisition job against one source. It is
// immutable after creation.
type ScrapeQuery struct {
	Source     string  `json:"source"`
	Filters    Filters `json:"filters"`
	PageSize   int     `json:"page_size"`
	MaxRecords int     `json:"max_records"`
}

// RawRecord is the opaque per-source mapping produced by an adapter's
// parser. It lives only between the adapter and the normalizer.
type RawRecord map[string]any

// Source returns the source identifier stamped on the record by its
// adapter, or "" when absent.
func (r RawRecord) SourceID() string {
	s, _ := r["source"].(string)
	return s
}

// PageRequest addresses one page of one query. An empty cursor means the
// first page.
type PageRequest struct {
	Query  ScrapeQuery
	Cursor string
}

// PageResult is what an adapter returns for one page. Exhausted=true is
// terminal for the query on that source.
type PageResult struct {
	RawRecords []RawRecord
	NextCursor string
	Exhausted  bool
}
