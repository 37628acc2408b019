package core

import (
	"strings"
	"time"
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering parses a comma separated list of fields, "-" prefixed for descending order: "name,-created_at"
func ParseOrdering(val string) []DBOrdering {
	if val == "" {
		return nil
	}
	var orderings []DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}

// FilterOrderings keeps the orderings whose Field is allowed, in order.
func FilterOrderings(orderings []DBOrdering, allowed ...string) []DBOrdering {
	res := make([]DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		for _, fld := range allowed {
			if ord.Field == fld {
				res = append(res, ord)
				break
			}
		}
	}
	return res
}

// QueryTime is a time.Time that can be bound from an RFC3339 query parameter.
type QueryTime struct {
	time.Time
}

func (qt *QueryTime) UnmarshalParam(param string) error {
	t, err := time.Parse(time.RFC3339, param)
	if err != nil {
		return err
	}
	qt.Time = t.UTC()
	return nil
}
