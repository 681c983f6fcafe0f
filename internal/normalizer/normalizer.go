// Package normalizer converts source-specific raw records into the
// canonical listing schema: sentinel exclusion, identifier coercion,
// unit and currency conversion, validation and de-duplication.
package normalizer

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/domain"
	"github.com/user/importcars-service/internal/monitoring"
)

// Labels that denote a catch-all "any model" entry rather than a real
// listing. Sources surface these in their option lists and sometimes in
// result payloads.
var sentinelLabels = map[string]struct{}{
	"todo":              {},
	"todos":             {},
	"todos los modelos": {},
	"all":               {},
	"any":               {},
	"alle":              {},
	"alle modelle":      {},
	"beliebig":          {},
}

// Normalizer is stateful per run: the de-duplication set spans one
// run's whole output.
type Normalizer struct {
	rates   map[string]float64
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func New(rates map[string]float64, m *monitoring.Metrics, logger *zap.Logger) *Normalizer {
	if rates == nil {
		rates = DefaultEURRates
	}
	return &Normalizer{
		rates:   rates,
		metrics: m,
		logger:  logger,
		seen:    make(map[string]struct{}),
	}
}

// Normalize maps one raw record into a canonical listing. A nil listing
// with a *domain.NormalizationError means the record was excluded; the
// reason says whether that is a diagnostic (sentinel, duplicate,
// non-numeric id) or a validation failure. Exclusions are never fatal
// to a run.
func (n *Normalizer) Normalize(rec domain.RawRecord, source string) (*domain.NormalizedListing, error) {
	if source == "" {
		source = rec.SourceID()
	}
	drop := func(reason domain.DropReason, field string) (*domain.NormalizedListing, error) {
		n.metrics.IncRecordsDropped(source, string(reason))
		return nil, &domain.NormalizationError{Reason: reason, Field: field, Source: source}
	}

	id := stringField(rec, "listing_id")

	// Catch-all placeholder entries are dropped, not errors.
	if id == "" && stringField(rec, "model") == "" && stringField(rec, "title") == "" {
		return drop(domain.DropSentinel, "listing_id")
	}
	if isSentinelLabel(stringField(rec, "model")) || isSentinelLabel(stringField(rec, "title")) {
		return drop(domain.DropSentinel, "model")
	}

	if id == "" {
		return drop(domain.DropInvalid, "listing_id")
	}
	// Listing identifiers are numeric on every supported source; a
	// non-coercible id signals a junk row.
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return drop(domain.DropNonNumericID, "listing_id")
	}
	// Id zero is another catch-all placeholder the sources use, same
	// as an empty id.
	if numericID == 0 {
		return drop(domain.DropSentinel, "listing_id")
	}

	listing := &domain.NormalizedListing{
		ListingID:     id,
		Source:        source,
		URL:           stringField(rec, "url"),
		ScrapedAt:     timeField(rec, "scraped_at"),
		Title:         stringField(rec, "title"),
		Make:          stringField(rec, "make"),
		Model:         stringField(rec, "model"),
		Version:       stringField(rec, "version"),
		FuelType:      normalizeFuel(stringField(rec, "fuel_type")),
		Transmission:  normalizeTransmission(stringField(rec, "transmission")),
		BodyType:      stringField(rec, "body_type"),
		ColorExterior: stringField(rec, "color_exterior"),
		ColorInterior: stringField(rec, "color_interior"),
		EmissionClass: stringField(rec, "emission_class"),
		Description:   stringField(rec, "description"),
	}
	if listing.ScrapedAt.IsZero() {
		listing.ScrapedAt = time.Now().UTC()
	}

	amount, hasPrice := floatField(rec, "price_amount")
	if !hasPrice || amount <= 0 {
		return drop(domain.DropInvalid, "price")
	}
	currency := strings.ToUpper(stringField(rec, "price_currency"))
	if currency == "" {
		currency = "EUR"
	}
	listing.PriceOriginal = &domain.Price{Amount: amount, CurrencyCode: currency}
	if rate, ok := n.rates[currency]; ok {
		eur := amount * rate
		listing.PriceEUR = &eur
	}

	if km, ok := intField(rec, "mileage_km"); ok {
		listing.MileageKM = &km
	}

	hp, hasHP := intField(rec, "power_hp")
	kw, hasKW := intField(rec, "power_kw")
	switch {
	case hasHP && hasKW:
		listing.PowerHP, listing.PowerKW = &hp, &kw
	case hasHP:
		derived := hpToKW(hp)
		listing.PowerHP, listing.PowerKW = &hp, &derived
	case hasKW:
		derived := kwToHP(kw)
		listing.PowerHP, listing.PowerKW = &derived, &kw
	}

	// Emissions and consumption are never guessed; absent stays nil.
	if co2, ok := intField(rec, "co2_g_km"); ok {
		listing.CO2EmissionsGKM = &co2
	}
	if l, ok := floatField(rec, "consumption_l_100km"); ok {
		listing.ConsumptionL100KM = &domain.Consumption{Combined: &l}
	}

	if cc, ok := intField(rec, "displacement_cc"); ok {
		listing.EngineDisplacementCC = &cc
	}
	if doors, ok := intField(rec, "doors"); ok {
		listing.Doors = &doors
	}
	if seats, ok := intField(rec, "seats"); ok {
		listing.Seats = &seats
	}
	if owners, ok := intField(rec, "previous_owners"); ok {
		listing.PreviousOwners = &owners
	}

	if year, ok := intField(rec, "registration_year"); ok {
		reg := &domain.Registration{Year: year}
		if month, ok := intField(rec, "registration_month"); ok && month >= 1 && month <= 12 {
			reg.Month = &month
		}
		listing.FirstRegistration = reg
	} else if raw := stringField(rec, "registration_raw"); raw != "" {
		listing.FirstRegistration = parseRegistration(raw)
	}

	listing.Location = locationField(rec)
	listing.Seller = sellerField(rec)
	if imgs, ok := rec["images"].([]string); ok {
		listing.Images = imgs
	}
	if feats, ok := rec["features"].([]string); ok {
		listing.Features = feats
	}
	if extra, ok := rec["source_extra"].(map[string]any); ok {
		listing.SourceExtra = extra
	}

	// First occurrence wins; later re-emissions of the same identity
	// (e.g. a listing straddling two pages) vanish silently.
	n.mu.Lock()
	_, dup := n.seen[listing.Key()]
	if !dup {
		n.seen[listing.Key()] = struct{}{}
	}
	n.mu.Unlock()
	if dup {
		return drop(domain.DropDuplicate, "")
	}

	n.metrics.IncListingsEmitted(source)
	return listing, nil
}

func isSentinelLabel(label string) bool {
	_, ok := sentinelLabels[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

// parseRegistration handles "2019-05", "2019-05-01" and bare "2019".
func parseRegistration(raw string) *domain.Registration {
	parts := strings.Split(raw, "-")
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1900 {
		return nil
	}
	reg := &domain.Registration{Year: year}
	if len(parts) > 1 {
		if month, err := strconv.Atoi(parts[1]); err == nil && month >= 1 && month <= 12 {
			reg.Month = &month
		}
	}
	return reg
}

var fuelAliases = map[string]string{
	"gasolina":  string(domain.FuelGasoline),
	"petrol":    string(domain.FuelGasoline),
	"benzin":    string(domain.FuelGasoline),
	"gasoline":  string(domain.FuelGasoline),
	"diesel":    string(domain.FuelDiesel),
	"diésel":    string(domain.FuelDiesel),
	"eléctrico": string(domain.FuelElectric),
	"electric":  string(domain.FuelElectric),
	"elektro":   string(domain.FuelElectric),
	"híbrido":   string(domain.FuelHybrid),
	"hybrid":    string(domain.FuelHybrid),
}

func normalizeFuel(raw string) string {
	if canonical, ok := fuelAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return canonical
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

var transmissionAliases = map[string]string{
	"manual":         string(domain.TransmissionManual),
	"schaltgetriebe": string(domain.TransmissionManual),
	"automático":     string(domain.TransmissionAutomatic),
	"automatic":      string(domain.TransmissionAutomatic),
	"automatik":      string(domain.TransmissionAutomatic),
	"semiautomático": string(domain.TransmissionSemiAutomatic),
}

func normalizeTransmission(raw string) string {
	if canonical, ok := transmissionAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return canonical
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

func locationField(rec domain.RawRecord) *domain.Location {
	loc := &domain.Location{
		CountryCode: strings.ToUpper(stringField(rec, "country_code")),
		Region:      stringField(rec, "region"),
		City:        stringField(rec, "city"),
		PostalCode:  stringField(rec, "postal_code"),
	}
	if loc.CountryCode == "" && loc.Region == "" && loc.City == "" && loc.PostalCode == "" {
		return nil
	}
	return loc
}

func sellerField(rec domain.RawRecord) *domain.Seller {
	s := &domain.Seller{
		Type:  normalizeSellerType(stringField(rec, "seller_type")),
		Name:  stringField(rec, "seller_name"),
		Phone: stringField(rec, "seller_phone"),
	}
	if s.Type == "" && s.Name == "" && s.Phone == "" {
		return nil
	}
	if s.Type == "" {
		s.Type = "unknown"
	}
	return s
}

func normalizeSellerType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dealer", "professional", "profesional":
		return "dealer"
	case "private", "particular":
		return "private"
	case "":
		return ""
	default:
		return "unknown"
	}
}
