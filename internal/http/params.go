package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const wireDateLayout = "2006-01-02"

// parseDateQuery reads a required ISO date query parameter.
func parseDateQuery(r *http.Request, name string) (time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return time.Time{}, fmt.Errorf("the %s query parameter is required", name)
	}
	date, err := time.ParseInLocation(wireDateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, errInvalidDateParam
	}
	return date, nil
}

// parseWireDate decodes an ISO date carried in a request body.
func parseWireDate(value string) (time.Time, error) {
	date, err := time.ParseInLocation(wireDateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, errInvalidDateParam
	}
	return date, nil
}

// parseWireDatePtr decodes an optional ISO date; empty means absent.
func parseWireDatePtr(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	date, err := parseWireDate(value)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

func formatWireDate(date time.Time) string {
	return date.UTC().Format(wireDateLayout)
}

func formatWireDatePtr(date *time.Time) *string {
	if date == nil {
		return nil
	}
	formatted := formatWireDate(*date)
	return &formatted
}

// rosterInvalidator lets mutating handlers drop the composed roster cache
// after a write that can change any schedule.
type rosterInvalidator interface {
	InvalidateRosters()
}
