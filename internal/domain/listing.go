package domain

import "time"

// Price is the verbatim price as published by the source.
type Price struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currency_code"`
}

// Registration is the first-registration date of a vehicle.
type Registration struct {
	Year  int  `json:"year"`
	Month *int `json:"month,omitempty"`
}

// Consumption holds fuel consumption figures in l/100km.
type Consumption struct {
	Combined *float64 `json:"combined,omitempty"`
	Urban    *float64 `json:"urban,omitempty"`
	Highway  *float64 `json:"highway,omitempty"`
}

type Location struct {
	CountryCode string   `json:"country_code,omitempty"`
	Region      string   `json:"region,omitempty"`
	City        string   `json:"city,omitempty"`
	PostalCode  string   `json:"postal_code,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// Seller describes who published the listing. Type is one of
// "dealer", "private" or "unknown".
type Seller struct {
	Type        string   `json:"type,omitempty"`
	Name        string   `json:"name,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	RatingCount *int     `json:"rating_count,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	DealerID    string   `json:"dealer_id,omitempty"`
}

// NormalizedListing is the canonical, source-independent vehicle record.
// Identity is (Source, ListingID); a listing is created once and never
// mutated afterwards.
type NormalizedListing struct {
	ListingID string    `json:"listing_id"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	ScrapedAt time.Time `json:"scraped_at"`

	Title   string `json:"title,omitempty"`
	Make    string `json:"make,omitempty"`
	Model   string `json:"model,omitempty"`
	Version string `json:"version,omitempty"`

	PriceEUR      *float64 `json:"price_eur"`
	PriceOriginal *Price   `json:"price_original,omitempty"`

	MileageKM            *int          `json:"mileage_km,omitempty"`
	FirstRegistration    *Registration `json:"first_registration,omitempty"`
	FuelType             string        `json:"fuel_type,omitempty"`
	Transmission         string        `json:"transmission,omitempty"`
	PowerHP              *int          `json:"power_hp,omitempty"`
	PowerKW              *int          `json:"power_kw,omitempty"`
	EngineDisplacementCC *int          `json:"engine_displacement_cc,omitempty"`
	BodyType             string        `json:"body_type,omitempty"`
	Doors                *int          `json:"doors,omitempty"`
	Seats                *int          `json:"seats,omitempty"`
	ColorExterior        string        `json:"color_exterior,omitempty"`
	ColorInterior        string        `json:"color_interior,omitempty"`
	EmissionClass        string        `json:"emission_class,omitempty"`
	CO2EmissionsGKM      *int          `json:"co2_emissions_g_km"`
	ConsumptionL100KM    *Consumption  `json:"consumption_l_100km,omitempty"`
	PreviousOwners       *int          `json:"previous_owners,omitempty"`

	Features    []string  `json:"features,omitempty"`
	Description string    `json:"description,omitempty"`
	Images      []string  `json:"images,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Seller      *Seller   `json:"seller,omitempty"`

	// SourceExtra carries source-only fields that have no canonical slot.
	SourceExtra map[string]any `json:"source_extra,omitempty"`
}

// Key returns the identity of the listing, unique across one run's output.
func (l *NormalizedListing) Key() string {
	return l.Source + ":" + l.ListingID
}
