package models

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Filter selects tasks. It is plain data; applying it never changes the
// tasks it is applied to. Page and PageSize are only honored by the server.
type Filter struct {
	IsCompleted   *bool      `json:"is_completed,omitempty"`
	Priority      *int       `json:"priority,omitempty"`
	Search        string     `json:"search,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	Page          int        `json:"page"`
	PageSize      int        `json:"page_size"`
}

// DefaultFilter returns the empty filter on the first page.
func DefaultFilter() Filter {
	return Filter{Page: DefaultPage, PageSize: DefaultPageSize}
}

// Optional is one field of a FilterPatch. A zero Optional leaves the field
// alone; Value overwrites it; Cleared resets it.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Value returns an Optional that overwrites the field with v.
func Value[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Cleared returns an Optional that resets the field.
func Cleared[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// FilterPatch is a partial Filter merged field by field.
type FilterPatch struct {
	IsCompleted   Optional[bool]
	Priority      Optional[int]
	Search        Optional[string]
	CreatedAfter  Optional[time.Time]
	CreatedBefore Optional[time.Time]
	Page          Optional[int]
	PageSize      Optional[int]
}

// Merge returns f with every set field of p applied. Page values below 1
// fall back to the defaults so the result is always a usable filter.
func (f Filter) Merge(p FilterPatch) Filter {
	if p.IsCompleted.Set {
		f.IsCompleted = clonePtr(p.IsCompleted.Value)
	}
	if p.Priority.Set {
		f.Priority = clonePtr(p.Priority.Value)
	}
	if p.Search.Set {
		f.Search = ""
		if p.Search.Value != nil {
			f.Search = *p.Search.Value
		}
	}
	if p.CreatedAfter.Set {
		f.CreatedAfter = clonePtr(p.CreatedAfter.Value)
	}
	if p.CreatedBefore.Set {
		f.CreatedBefore = clonePtr(p.CreatedBefore.Value)
	}
	if p.Page.Set {
		f.Page = 0
		if p.Page.Value != nil {
			f.Page = *p.Page.Value
		}
	}
	if p.PageSize.Set {
		f.PageSize = 0
		if p.PageSize.Value != nil {
			f.PageSize = *p.PageSize.Value
		}
	}
	return f.normalized()
}

func (f Filter) normalized() Filter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	return f
}

// Equal reports whether two filters select the same tasks and page.
func (f Filter) Equal(o Filter) bool {
	return ptrEqual(f.IsCompleted, o.IsCompleted) &&
		ptrEqual(f.Priority, o.Priority) &&
		f.Search == o.Search &&
		timePtrEqual(f.CreatedAfter, o.CreatedAfter) &&
		timePtrEqual(f.CreatedBefore, o.CreatedBefore) &&
		f.Page == o.Page &&
		f.PageSize == o.PageSize
}

// Offset returns the number of rows skipped before the current page.
func (f Filter) Offset() int {
	f = f.normalized()
	return (f.Page - 1) * f.PageSize
}

// Query encodes the filter as URL query parameters.
func (f Filter) Query() url.Values {
	v := url.Values{}
	if f.IsCompleted != nil {
		v.Set("is_completed", strconv.FormatBool(*f.IsCompleted))
	}
	if f.Priority != nil {
		v.Set("priority", strconv.Itoa(*f.Priority))
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.CreatedAfter != nil {
		v.Set("created_after", f.CreatedAfter.UTC().Format(time.RFC3339Nano))
	}
	if f.CreatedBefore != nil {
		v.Set("created_before", f.CreatedBefore.UTC().Format(time.RFC3339Nano))
	}
	f = f.normalized()
	v.Set("page", strconv.Itoa(f.Page))
	v.Set("page_size", strconv.Itoa(f.PageSize))
	return v
}

// ParseFilter decodes URL query parameters produced by Filter.Query.
func ParseFilter(v url.Values) (Filter, error) {
	f := DefaultFilter()

	if s := v.Get("is_completed"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return f, NewValidationError("is_completed must be true or false")
		}
		f.IsCompleted = &b
	}
	if s := v.Get("priority"); s != "" {
		p, err := strconv.Atoi(s)
		if err != nil {
			return f, NewValidationError("priority must be a number")
		}
		if err := validatePriority(p); err != nil {
			return f, err
		}
		f.Priority = &p
	}
	f.Search = strings.TrimSpace(v.Get("search"))

	var err error
	if f.CreatedAfter, err = parseTimeParam(v, "created_after"); err != nil {
		return f, err
	}
	if f.CreatedBefore, err = parseTimeParam(v, "created_before"); err != nil {
		return f, err
	}

	if s := v.Get("page"); s != "" {
		if f.Page, err = strconv.Atoi(s); err != nil || f.Page < 1 {
			return f, NewValidationError("page must be a positive number")
		}
	}
	if s := v.Get("page_size"); s != "" {
		if f.PageSize, err = strconv.Atoi(s); err != nil || f.PageSize < 1 {
			return f, NewValidationError("page_size must be a positive number")
		}
		if f.PageSize > MaxPageSize {
			f.PageSize = MaxPageSize
		}
	}

	return f, nil
}

func parseTimeParam(v url.Values, key string) (*time.Time, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	t, err := ParseTimeBound(s, key == "created_before")
	if err != nil {
		return nil, NewValidationError(key + " must be an RFC3339 timestamp or YYYY-MM-DD date")
	}
	return &t, nil
}

// ParseTimeBound parses an RFC3339 timestamp or a bare YYYY-MM-DD date in
// UTC. A bare date starts at midnight, or when upper is set, covers the
// whole day through its last nanosecond.
func ParseTimeBound(s string, upper bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
