package mobilede

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/importcars-service/internal/domain"
)

var (
	detailIDPattern     = regexp.MustCompile(`detalles\.html\?id=(\d{6,})`)
	powerPattern        = regexp.MustCompile(`(?i)(\d+)\s*kW\s*\((\d+)\s*cv\)`)
	mileagePattern      = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})*)\s*km`)
	pricePattern        = regexp.MustCompile(`([0-9.]+)`)
	co2Pattern          = regexp.MustCompile(`(?i)(\d+)\s*g/km`)
	consumptionPattern  = regexp.MustCompile(`(?i)(\d+[,.]?\d*)\s*l/100\s*km`)
	displacementPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})*)\s*(?:ccm|cm³)`)
	registrationPattern = regexp.MustCompile(`(\d{1,2})/(\d{4})`)
	ownersPattern       = regexp.MustCompile(`(\d+)`)
)

// parseSearchPage extracts the listing ids on a result page and whether
// a next page link exists.
func parseSearchPage(body []byte) (ids []string, hasNext bool, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}

	seen := make(map[string]struct{})
	for _, match := range detailIDPattern.FindAllSubmatch(body, -1) {
		id := string(match[1])
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	hasNext = doc.Find(`a[rel="next"]`).Length() > 0
	return ids, hasNext, nil
}

// parseDetailPage turns one detail page into a raw record. The field
// names are the mobile.de vocabulary; normalization happens downstream.
func parseDetailPage(body []byte, listingID, pageURL string) (domain.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	rec := domain.RawRecord{
		"source":     domain.SourceMobileDe,
		"listing_id": listingID,
		"url":        pageURL,
		"scraped_at": time.Now().UTC(),
	}

	title := text(doc, `h2.typography_headline__yJCAO`)
	subtitle := text(doc, `div.MainCtaBox_subTitle__wYybO`)
	if title != "" {
		rec["title"] = strings.TrimSpace(title + " " + subtitle)
		parts := strings.Fields(title)
		if len(parts) > 0 {
			rec["make"] = parts[0]
		}
		if len(parts) > 1 {
			model := strings.Join(parts[1:], " ")
			if subtitle != "" {
				model = strings.TrimSpace(model + " " + subtitle)
			}
			rec["model"] = model
		}
	}

	priceText := text(doc, `div.MainPriceArea_mainPrice__xCkfs`)
	if priceText == "" {
		priceText = text(doc, `span[data-testid="prime-price"]`)
	}
	if priceText != "" {
		cleaned := strings.NewReplacer(" ", "", " ", "").Replace(priceText)
		if m := pricePattern.FindStringSubmatch(cleaned); m != nil {
			// German format: dot as thousands separator.
			if amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ".", ""), 64); err == nil {
				rec["price_amount"] = amount
				rec["price_currency"] = "EUR"
			}
		}
	}

	extractKeyFeatures(doc, rec)

	if desc := text(doc, `div[data-testid="vip-vehicle-description-text"]`); desc != "" {
		rec["description"] = desc
	}

	rec["country_code"] = "DE"
	return rec, nil
}

func extractKeyFeatures(doc *goquery.Document, rec domain.RawRecord) {
	feature := func(name string) string {
		return text(doc, `div[data-testid="vip-key-features-list-item-`+name+`"] div.KeyFeatures_value__8LVNc`)
	}

	if s := feature("mileage"); s != "" {
		if m := mileagePattern.FindStringSubmatch(s); m != nil {
			if km, err := strconv.Atoi(strings.ReplaceAll(m[1], ".", "")); err == nil {
				rec["mileage_km"] = km
			}
		}
	}
	if s := feature("power"); s != "" {
		// Format: "162 kW (220 cv)"
		if m := powerPattern.FindStringSubmatch(s); m != nil {
			kw, _ := strconv.Atoi(m[1])
			hp, _ := strconv.Atoi(m[2])
			rec["power_kw"] = kw
			rec["power_hp"] = hp
		}
	}
	if s := feature("fuel"); s != "" {
		rec["fuel_type"] = s
	}
	if s := feature("transmission"); s != "" {
		rec["transmission"] = s
	}
	if s := feature("firstRegistration"); s != "" {
		if m := registrationPattern.FindStringSubmatch(s); m != nil {
			month, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[2])
			rec["registration_year"] = year
			rec["registration_month"] = month
		}
	}
	if s := feature("numberOfPreviousOwners"); s != "" {
		if m := ownersPattern.FindStringSubmatch(s); m != nil {
			owners, _ := strconv.Atoi(m[1])
			rec["previous_owners"] = owners
		}
	}

	fullText := doc.Text()
	if m := co2Pattern.FindStringSubmatch(fullText); m != nil {
		if co2, err := strconv.Atoi(m[1]); err == nil {
			rec["co2_g_km"] = co2
		}
	}
	if m := consumptionPattern.FindStringSubmatch(fullText); m != nil {
		if l, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
			rec["consumption_l_100km"] = l
		}
	}
	if m := displacementPattern.FindStringSubmatch(fullText); m != nil {
		if cc, err := strconv.Atoi(strings.ReplaceAll(m[1], ".", "")); err == nil {
			rec["displacement_cc"] = cc
		}
	}
}

func text(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}
