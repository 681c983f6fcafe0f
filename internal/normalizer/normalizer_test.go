package normalizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/importcars-service/internal/domain"
)

func newTestNormalizer() *Normalizer {
	return New(nil, nil, zap.NewNop())
}

func baseRecord(id string) domain.RawRecord {
	return domain.RawRecord{
		"source":         domain.SourceMobileDe,
		"listing_id":     id,
		"title":          "BMW 320d Touring",
		"make":           "BMW",
		"model":          "320",
		"price_amount":   21500.0,
		"price_currency": "EUR",
	}
}

func dropReason(t *testing.T, err error) domain.DropReason {
	t.Helper()
	var nerr *domain.NormalizationError
	require.True(t, errors.As(err, &nerr), "expected NormalizationError, got %v", err)
	return nerr.Reason
}

func TestNormalizePowerConversion(t *testing.T) {
	n := newTestNormalizer()

	rec := baseRecord("1001")
	rec["power_hp"] = 200
	listing, err := n.Normalize(rec, domain.SourceMobileDe)
	require.NoError(t, err)
	require.NotNil(t, listing.PowerKW)
	require.Equal(t, 147, *listing.PowerKW)
	require.Equal(t, 200, *listing.PowerHP)

	rec = baseRecord("1002")
	rec["power_kw"] = 147
	listing, err = n.Normalize(rec, domain.SourceMobileDe)
	require.NoError(t, err)
	require.NotNil(t, listing.PowerHP)
	require.Equal(t, 200, *listing.PowerHP)
	require.Equal(t, 147, *listing.PowerKW)
}

func TestNormalizePowerBothUnitsKept(t *testing.T) {
	n := newTestNormalizer()

	rec := baseRecord("1003")
	rec["power_hp"] = 190
	rec["power_kw"] = 140
	listing, err := n.Normalize(rec, domain.SourceMobileDe)
	require.NoError(t, err)
	// Source-provided values are trusted over the derived ones.
	require.Equal(t, 190, *listing.PowerHP)
	require.Equal(t, 140, *listing.PowerKW)
}

func TestNormalizeCurrencyConversion(t *testing.T) {
	n := newTestNormalizer()

	rec := baseRecord("2001")
	rec["price_amount"] = 10000.0
	rec["price_currency"] = "CHF"
	listing, err := n.Normalize(rec, domain.SourceMobileDe)
	require.NoError(t, err)
	require.Equal(t, 10000.0, listing.PriceOriginal.Amount)
	require.Equal(t, "CHF", listing.PriceOriginal.CurrencyCode)
	require.NotNil(t, listing.PriceEUR)
	require.InDelta(t, 10500.0, *listing.PriceEUR, 0.01)
}

func TestNormalizeUnknownCurrencyKeepsOriginalOnly(t *testing.T) {
	n := newTestNormalizer()

	rec := baseRecord("2002")
	rec["price_currency"] = "JPY"
	listing, err := n.Normalize(rec, domain.SourceMobileDe)
	require.NoError(t, err)
	require.Equal(t, "JPY", listing.PriceOriginal.CurrencyCode)
	require.Nil(t, listing.PriceEUR)
}

func TestNormalizeSentinelDropped(t *testing.T) {
	n := newTestNormalizer()

	for _, label := range []string{"Todos", "todos los modelos", "Alle Modelle", "ANY"} {
		rec := baseRecord("3001")
		rec["model"] = label
		listing, err := n.Normalize(rec, domain.SourceMobileDe)
		require.Nil(t, listing)
		require.Equal(t, domain.DropSentinel, dropReason(t, err))
	}
}

func TestNormalizeZeroIDSentinel(t *testing.T) {
	n := newTestNormalizer()

	for _, id := range []any{"0", "000", 0, 0.0} {
		rec := baseRecord("")
		rec["listing_id"] = id
		listing, err := n.Normalize(rec, domain.SourceCochesNet)
		require.Nil(t, listing)
		require.Equal(t, domain.DropSentinel, dropReason(t, err))
	}
}

func TestNormalizeNonNumericID(t *testing.T) {
	n := newTestNormalizer()

	rec := baseRecord("abc-123")
	listing, err := n.Normalize(rec, domain.SourceMobileDe)
	require.Nil(t, listing)
	require.Equal(t, domain.DropNonNumericID, dropReason(t, err))
}

func TestNormalizeMissingPriceInvalid(t *testing.T) {
	n := newTestNormalizer()

	rec := baseRecord("4001")
	delete(rec, "price_amount")
	listing, err := n.Normalize(rec, domain.SourceMobileDe)
	require.Nil(t, listing)
	require.Equal(t, domain.DropInvalid, dropReason(t, err))

	rec = baseRecord("4002")
	rec["price_amount"] = 0.0
	listing, err = n.Normalize(rec, domain.SourceMobileDe)
	require.Nil(t, listing)
	require.Equal(t, domain.DropInvalid, dropReason(t, err))
}

func TestNormalizeDuplicateFirstWins(t *testing.T) {
	n := newTestNormalizer()

	first := baseRecord("5001")
	first["price_amount"] = 18000.0
	listing, err := n.Normalize(first, domain.SourceMobileDe)
	require.NoError(t, err)
	require.Equal(t, 18000.0, listing.PriceOriginal.Amount)

	second := baseRecord("5001")
	second["price_amount"] = 17000.0
	listing, err = n.Normalize(second, domain.SourceMobileDe)
	require.Nil(t, listing)
	require.Equal(t, domain.DropDuplicate, dropReason(t, err))

	// Same id on a different source is a distinct identity.
	other := baseRecord("5001")
	listing, err = n.Normalize(other, domain.SourceCochesNet)
	require.NoError(t, err)
	require.Equal(t, domain.SourceCochesNet, listing.Source)
}

func TestNormalizeOptionalFieldsStayNil(t *testing.T) {
	n := newTestNormalizer()

	listing, err := n.Normalize(baseRecord("6001"), domain.SourceMobileDe)
	require.NoError(t, err)
	require.Nil(t, listing.MileageKM)
	require.Nil(t, listing.CO2EmissionsGKM)
	require.Nil(t, listing.ConsumptionL100KM)
	require.Nil(t, listing.FirstRegistration)
	require.Nil(t, listing.Location)
	require.Nil(t, listing.Seller)
}

func TestNormalizeAliases(t *testing.T) {
	n := newTestNormalizer()

	rec := baseRecord("7001")
	rec["fuel_type"] = "Gasolina"
	rec["transmission"] = "Automático"
	rec["seller_type"] = "profesional"
	rec["seller_name"] = "Autohaus Nord"
	listing, err := n.Normalize(rec, domain.SourceCochesNet)
	require.NoError(t, err)
	require.Equal(t, string(domain.FuelGasoline), listing.FuelType)
	require.Equal(t, string(domain.TransmissionAutomatic), listing.Transmission)
	require.Equal(t, "dealer", listing.Seller.Type)
}

func TestNormalizeRegistrationParsing(t *testing.T) {
	n := newTestNormalizer()

	rec := baseRecord("8001")
	rec["registration_raw"] = "2019-05"
	listing, err := n.Normalize(rec, domain.SourceMobileDe)
	require.NoError(t, err)
	require.NotNil(t, listing.FirstRegistration)
	require.Equal(t, 2019, listing.FirstRegistration.Year)
	require.NotNil(t, listing.FirstRegistration.Month)
	require.Equal(t, 5, *listing.FirstRegistration.Month)

	rec = baseRecord("8002")
	rec["registration_raw"] = "2021"
	listing, err = n.Normalize(rec, domain.SourceMobileDe)
	require.NoError(t, err)
	require.Equal(t, 2021, listing.FirstRegistration.Year)
	require.Nil(t, listing.FirstRegistration.Month)
}

func TestUnitRoundTrip(t *testing.T) {
	require.Equal(t, 147, hpToKW(200))
	require.Equal(t, 200, kwToHP(147))
	require.Equal(t, 110, hpToKW(150))
}
