package normalizer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/user/importcars-service/internal/domain"
)

// Raw records arrive from JSON decoding and HTML scraping alike, so a
// numeric field may be a float64, an int or a digit string. These
// helpers fold the representations.

func stringField(rec domain.RawRecord, key string) string {
	switch v := rec[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

func floatField(rec domain.RawRecord, key string) (float64, bool) {
	switch v := rec[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func intField(rec domain.RawRecord, key string) (int, bool) {
	f, ok := floatField(rec, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func timeField(rec domain.RawRecord, key string) time.Time {
	if t, ok := rec[key].(time.Time); ok {
		return t
	}
	return time.Time{}
}
