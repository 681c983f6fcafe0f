package cochesnet

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/user/importcars-service/internal/domain"
)

// searchResponse mirrors the relevant slice of the coches.net search
// API payload. The ad objects themselves stay loosely typed; their
// shape varies and the normalizer copes with that.
type searchResponse struct {
	Ads        []map[string]any `json:"ads"`
	Items      []map[string]any `json:"items"`
	Results    []map[string]any `json:"results"`
	Total      *int             `json:"total"`
	Pagination *pagination      `json:"pagination"`
	Metadata   *struct {
		Pagination *pagination `json:"pagination"`
	} `json:"metadata"`
}

type pagination struct {
	Total        *int  `json:"total"`
	TotalResults *int  `json:"totalResults"`
	HasNext      *bool `json:"hasNext"`
}

// parseSearchResponse decodes one result page. hasNext is nil when the
// payload doesn't say; the adapter then falls back to total-count math.
func parseSearchResponse(body []byte) (records []domain.RawRecord, total *int, hasNext *bool, err error) {
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, nil, nil, fmt.Errorf("decode search payload: %w", err)
	}

	ads := sr.Ads
	if len(ads) == 0 {
		ads = sr.Items
	}
	if len(ads) == 0 {
		ads = sr.Results
	}

	now := time.Now().UTC()
	for _, ad := range ads {
		rec := adToRecord(ad)
		rec["source"] = domain.SourceCochesNet
		rec["scraped_at"] = now
		records = append(records, rec)
	}

	p := sr.Pagination
	if p == nil && sr.Metadata != nil {
		p = sr.Metadata.Pagination
	}
	if p != nil {
		hasNext = p.HasNext
		total = p.Total
		if total == nil {
			total = p.TotalResults
		}
	}
	if total == nil {
		total = sr.Total
	}
	return records, total, hasNext, nil
}

// adToRecord flattens one ad object into the raw vocabulary the
// normalizer knows. Alternate key spellings across API versions are
// folded here so downstream sees one name per field.
func adToRecord(ad map[string]any) domain.RawRecord {
	rec := domain.RawRecord{}

	rec["listing_id"] = first(ad, "id", "advertId", "code")
	rec["url"] = first(ad, "url", "canonicalUrl", "detailUrl")
	rec["title"] = first(ad, "title", "headline")
	rec["make"] = first(ad, "make", "brand")
	rec["model"] = ad["model"]
	rec["version"] = first(ad, "version", "trim")
	rec["body_type"] = ad["bodyType"]
	rec["fuel_type"] = first(ad, "fuelType", "fuel")
	rec["transmission"] = first(ad, "transmission", "gearbox")
	rec["mileage_km"] = first(ad, "kms", "kilometers", "mileage")
	rec["power_hp"] = first(ad, "powerHP", "powerHp", "power")
	rec["power_kw"] = first(ad, "powerKW", "powerKw")
	rec["co2_g_km"] = first(ad, "co2", "co2Emission")
	rec["doors"] = ad["doors"]
	rec["seats"] = ad["seats"]
	rec["color_exterior"] = first(ad, "colour", "color")
	rec["description"] = ad["description"]

	if price, ok := ad["price"].(map[string]any); ok {
		rec["price_amount"] = first(price, "price", "amount", "value")
		rec["price_currency"] = first(price, "currency", "currencyCode")
	} else if amount, ok := ad["price"]; ok && amount != nil {
		rec["price_amount"] = amount
	}
	if rec["price_currency"] == nil && rec["price_amount"] != nil {
		rec["price_currency"] = "EUR"
	}

	if reg, ok := ad["firstRegistration"].(map[string]any); ok {
		rec["registration_year"] = reg["year"]
		rec["registration_month"] = reg["month"]
	} else if reg, ok := first(ad, "firstRegistration", "firstRegistrationDate").(string); ok && reg != "" {
		rec["registration_raw"] = reg
	}

	if loc, ok := ad["location"].(map[string]any); ok {
		rec["country_code"] = first(loc, "country", "countryCode")
		rec["region"] = first(loc, "region", "province")
		rec["city"] = loc["city"]
		rec["postal_code"] = first(loc, "postalCode", "zip")
	}
	if rec["country_code"] == nil {
		rec["country_code"] = "ES"
	}

	if seller, ok := firstMap(ad, "dealer", "seller"); ok {
		rec["seller_type"] = first(seller, "type", "sellerType")
		rec["seller_name"] = first(seller, "name", "dealerName")
		rec["seller_phone"] = first(seller, "phone", "phoneNumber")
	}

	if photos, ok := ad["photos"].([]any); ok {
		rec["images"] = imageURLs(photos)
	} else if images, ok := ad["images"].([]any); ok {
		rec["images"] = imageURLs(images)
	}

	if feats, ok := first(ad, "equipment", "features").([]any); ok {
		if names := stringList(feats); len(names) > 0 {
			rec["features"] = names
		}
	}

	// Everything the canonical schema has no slot for survives under
	// source_extra.
	extra := map[string]any{}
	for _, k := range []string{"certified", "isCertified", "vatDeductible", "financing", "publishDate", "updateDate", "environmentalLabel"} {
		if v, ok := ad[k]; ok && v != nil {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		rec["source_extra"] = extra
	}

	return rec
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstMap(m map[string]any, keys ...string) (map[string]any, bool) {
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			return v, true
		}
	}
	return nil, false
}

func stringList(items []any) []string {
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func imageURLs(items []any) []string {
	var urls []string
	for _, item := range items {
		switch v := item.(type) {
		case string:
			urls = append(urls, v)
		case map[string]any:
			if u, ok := first(v, "url", "uri", "href").(string); ok {
				urls = append(urls, u)
			}
		}
	}
	return urls
}
