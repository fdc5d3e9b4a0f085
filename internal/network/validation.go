package network

import (
	"fmt"
	"math"
	"strings"
)

// Input bounds for transport cost lookups.
const (
	MaxDistance    = 1_000_000
	MaxPassengers  = 5
	MaxParkingDays = 365
)

// Validate checks the cost query bounds.
func (q CostQuery) Validate() error {
	var errs []FieldError

	switch {
	case math.IsNaN(q.Distance) || math.IsInf(q.Distance, 0):
		errs = append(errs, FieldError{Field: "distance", Message: "must be a number"})
	case q.Distance <= 0:
		errs = append(errs, FieldError{Field: "distance", Message: "must be greater than 0"})
	case q.Distance > MaxDistance:
		errs = append(errs, FieldError{Field: "distance", Message: fmt.Sprintf("must be at most %d", MaxDistance)})
	}

	if q.Passengers < 1 || q.Passengers > MaxPassengers {
		errs = append(errs, FieldError{
			Field:   "passengers",
			Message: fmt.Sprintf("must be between 1 and %d", MaxPassengers),
		})
	}

	if q.ParkingDays < 0 || q.ParkingDays > MaxParkingDays {
		errs = append(errs, FieldError{
			Field:   "parking",
			Message: fmt.Sprintf("must be between 0 and %d", MaxParkingDays),
		})
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// ValidateGateCode checks a single gate code.
func ValidateGateCode(field, code string) error {
	if strings.TrimSpace(code) == "" {
		return &ValidationError{Errors: []FieldError{{Field: field, Message: "is required"}}}
	}
	return nil
}

// ValidateRouteQuery checks the endpoints of a route search.
func ValidateRouteQuery(from, to string) error {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)

	if from == "" || to == "" {
		var errs []FieldError
		if from == "" {
			errs = append(errs, FieldError{Field: "from", Message: "is required"})
		}
		if to == "" {
			errs = append(errs, FieldError{Field: "to", Message: "is required"})
		}
		return &ValidationError{Errors: errs}
	}

	if strings.EqualFold(from, to) {
		return &ValidationError{Errors: []FieldError{
			{Field: "to", Message: "start and destination must be different"},
		}}
	}
	return nil
}
