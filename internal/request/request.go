// Package request defines the unit of work flowing through the farm.
package request

import (
	"fmt"
	"strings"
	"time"
)

// Category tags the kind of work a request carries.
type Category string

const (
	CategoryGet    Category = "GET"
	CategoryPost   Category = "POST"
	CategoryPut    Category = "PUT"
	CategoryDelete Category = "DELETE"
)

// Categories lists every known category in a stable order.
var Categories = []Category{CategoryGet, CategoryPost, CategoryPut, CategoryDelete}

func (c Category) String() string {
	return string(c)
}

// ParseCategory resolves a case-insensitive category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown request category %q", s)
}

// Request is one unit of work. Only the remaining cost changes after
// construction; it is decremented while the request is resident in a worker.
//
// Neither priority nor cost is range checked. Values outside 1-10 or below
// zero are stored as given. Priority is carried for reporting and is not
// read by any dispatch or scaling decision.
type Request struct {
	id            int
	origin        string
	category      Category
	priority      int
	remainingCost int
	arrivalTime   time.Time
}

// New creates a request that arrived at the given time.
func New(id int, origin string, category Category, priority, cost int, arrival time.Time) *Request {
	return &Request{
		id:            id,
		origin:        origin,
		category:      category,
		priority:      priority,
		remainingCost: cost,
		arrivalTime:   arrival,
	}
}

func (r *Request) ID() int { return r.id }
func (r *Request) Origin() string { return r.origin }
func (r *Request) Category() Category { return r.category }
func (r *Request) Priority() int { return r.priority }
func (r *Request) RemainingCost() int { return r.remainingCost }
func (r *Request) ArrivalTime() time.Time { return r.arrivalTime }

// SetRemainingCost overwrites the cycles of work left.
func (r *Request) SetRemainingCost(n int) {
	r.remainingCost = n
}

// WaitTime returns how long the request has existed as of now.
func (r *Request) WaitTime(now time.Time) time.Duration {
	return now.Sub(r.arrivalTime)
}

func (r *Request) String() string {
	return fmt.Sprintf("Request{id=%d origin=%s category=%s priority=%d remaining=%d}",
		r.id, r.origin, r.category, r.priority, r.remainingCost)
}
