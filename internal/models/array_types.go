package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// SeatNumbers is a custom type for handling TEXT[] seat lists in PostgreSQL.
// Seat identifiers are always an ordered list of strings past the storage
// boundary; ParseSeatNumbers is the single place looser inputs get normalized.
type SeatNumbers []string

// Value implements the driver.Valuer interface
func (s SeatNumbers) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return pq.Array([]string(s)).Value()
}

// Scan implements the sql.Scanner interface
func (s *SeatNumbers) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	slice := (*[]string)(s)
	return pq.Array(slice).Scan(src)
}

// ParseSeatNumbers normalizes the seat representations found in the wild
// (JSON array, bare number, comma-joined string) into an ordered list of
// trimmed string identifiers. Empty and whitespace-only entries are dropped.
func ParseSeatNumbers(raw interface{}) SeatNumbers {
	switch v := raw.(type) {
	case nil:
		return nil
	case SeatNumbers:
		return v
	case []string:
		return cleanSeats(v)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, seatToString(e))
		}
		return cleanSeats(out)
	case int:
		return SeatNumbers{strconv.Itoa(v)}
	case float64:
		return SeatNumbers{seatToString(v)}
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		// JSON array form first, then comma-joined fallback.
		if strings.HasPrefix(trimmed, "[") {
			var arr []interface{}
			if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
				return ParseSeatNumbers(arr)
			}
		}
		return cleanSeats(strings.Split(trimmed, ","))
	default:
		return cleanSeats([]string{fmt.Sprintf("%v", v)})
	}
}

func seatToString(v interface{}) string {
	switch e := v.(type) {
	case string:
		return e
	case float64:
		// JSON numbers decode as float64; seat numbers are integral.
		if e == float64(int64(e)) {
			return strconv.FormatInt(int64(e), 10)
		}
		return strconv.FormatFloat(e, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", e)
	}
}

func cleanSeats(in []string) SeatNumbers {
	out := make(SeatNumbers, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
