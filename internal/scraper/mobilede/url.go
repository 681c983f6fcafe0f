package mobilede

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/user/importcars-service/internal/domain"
)

const (
	searchPath = "/es/veh%C3%ADculos/buscar.html"
	detailPath = "/es/veh%C3%ADculos/detalles.html"
)

// Fuel codes as mobile.de expects them in the ft parameter.
var fuelCodes = map[domain.FuelType]string{
	domain.FuelGasoline: "PETROL",
	domain.FuelDiesel:   "DIESEL",
	domain.FuelElectric: "ELECTRIC",
	domain.FuelHybrid:   "HYBRID",
	domain.FuelLPG:      "LPG",
	domain.FuelCNG:      "CNG",
}

var transmissionCodes = map[domain.Transmission]string{
	domain.TransmissionManual:        "MANUAL_GEAR",
	domain.TransmissionAutomatic:     "AUTOMATIC_GEAR",
	domain.TransmissionSemiAutomatic: "SEMIAUTOMATIC_GEAR",
}

// buildSearchURL translates the unified filters into the mobile.de
// query-string dialect. Ranges use MIN:MAX with either side optional;
// power is taken in kW.
func buildSearchURL(baseURL string, f domain.Filters, page int) string {
	params := url.Values{}
	params.Set("isSearchRequest", "true")
	params.Set("ref", "quickSearch")
	params.Set("s", "Car")
	params.Set("vc", "Car")

	if f.Make != "" {
		if code, ok := makeCodes[strings.ToUpper(f.Make)]; ok {
			ms := fmt.Sprintf("%d;;", code)
			if f.Model != "" {
				if modelID, ok := modelCodes[strings.ToUpper(f.Make)][strings.ToLower(f.Model)]; ok {
					ms = fmt.Sprintf("%d;%d;", code, modelID)
				}
			}
			params.Set("ms", ms)
		}
	}
	if r := rangeParam(int(f.PriceMin), int(f.PriceMax)); r != "" {
		params.Set("p", r)
	}
	if r := rangeParam(f.YearMin, f.YearMax); r != "" {
		params.Set("fr", r)
	}
	if f.MileageMaxKM > 0 {
		params.Set("ml", rangeParam(0, f.MileageMaxKM))
	}
	if f.PowerMinHP > 0 || f.PowerMaxHP > 0 {
		params.Set("pw", rangeParam(hpToKWParam(f.PowerMinHP), hpToKWParam(f.PowerMaxHP)))
	}
	for _, ft := range f.FuelTypes {
		if code, ok := fuelCodes[ft]; ok {
			params.Add("ft", code)
		}
	}
	for _, tr := range f.Transmissions {
		if code, ok := transmissionCodes[tr]; ok {
			params.Add("tr", code)
		}
	}
	if f.DealerOnly {
		params.Set("st", "DEALER")
	} else if f.PrivateOnly {
		params.Set("st", "FSBO")
	}
	if page > 1 {
		params.Set("pageNumber", strconv.Itoa(page))
	}

	return baseURL + searchPath + "?" + params.Encode()
}

func rangeParam(min, max int) string {
	switch {
	case min > 0 && max > 0:
		return fmt.Sprintf("%d:%d", min, max)
	case min > 0:
		return fmt.Sprintf("%d:", min)
	case max > 0:
		return fmt.Sprintf(":%d", max)
	default:
		return ""
	}
}

// mobile.de filters power in kW while the unified filters carry HP.
func hpToKWParam(hp int) int {
	if hp <= 0 {
		return 0
	}
	return int(float64(hp) * 0.7355)
}

// makeCodes maps manufacturer names to mobile.de numeric make ids. Only
// the makes relevant for import comparison are listed; unknown makes
// fall back to a make-less search.
var makeCodes = map[string]int{
	"AUDI":          1900,
	"BMW":           3500,
	"CITROEN":       5900,
	"CUPRA":         7000,
	"DACIA":         7400,
	"FIAT":          8800,
	"FORD":          9000,
	"HYUNDAI":       11600,
	"KIA":           13200,
	"MAZDA":         16800,
	"MERCEDES-BENZ": 17200,
	"MINI":          17700,
	"NISSAN":        18700,
	"OPEL":          19000,
	"PEUGEOT":       19800,
	"PORSCHE":       20000,
	"RENAULT":       20700,
	"SEAT":          22500,
	"SKODA":         22900,
	"TESLA":         23000,
	"TOYOTA":        24100,
	"VOLKSWAGEN":    25200,
	"VOLVO":         25100,
}

// modelCodes maps (make, lowercase model) to mobile.de model ids for the
// common searches. Sparse on purpose; the ms parameter degrades to
// make-only when a model is missing.
var modelCodes = map[string]map[string]int{
	"BMW": {
		"serie 1": 2,
		"serie 3": 21,
		"serie 5": 49,
		"x1":      84,
		"x3":      88,
		"x5":      93,
	},
	"AUDI": {
		"a1": 6,
		"a3": 9,
		"a4": 12,
		"a6": 19,
		"q3": 33,
		"q5": 35,
	},
	"VOLKSWAGEN": {
		"golf":   16,
		"passat": 30,
		"polo":   32,
		"tiguan": 45,
		"t-roc":  52,
	},
}
