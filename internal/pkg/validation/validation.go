package validation

import (
	"math"
	"strconv"
	"strings"

	"habinest-backend/internal/domain"

	"github.com/google/uuid"
)

// UUID parses a path or body identifier.
func UUID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, domain.Validationf("%s must be a UUID", field)
	}
	return id, nil
}

// OptionalFloat parses a query value; empty yields nil.
func OptionalFloat(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, domain.Validationf("%s must be a number", field)
	}
	return &v, nil
}

// OptionalInt parses a non-negative query integer; empty yields 0.
func OptionalInt(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, domain.Validationf("%s must be a non-negative integer", field)
	}
	return v, nil
}

// Required rejects blank strings.
func Required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return domain.Validationf("missing required field: %s", field)
	}
	return nil
}
