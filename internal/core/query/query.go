// Package query turns list-endpoint query strings into a store-neutral
// Descriptor: filter conditions, sort order, field projection and a page
// window.
//
// A Builder is used once per request and applied in a fixed order:
//
//	d := query.New(c.QueryParams()).Filter().Sort().LimitFields().Paginate().Descriptor()
//
// Every step only narrows its own axis, so the order matters only for
// determinism when a backend builds its own stateful query object.
package query

import (
	"cmp"
	"errors"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Op is a comparison operator. Only the constants below exist.
type Op string

const (
	Eq  Op = "eq"
	Gt  Op = "gt"
	Gte Op = "gte"
	Lt  Op = "lt"
	Lte Op = "lte"
)

// rangeOps are the operators accepted in the field[op]=value form.
var rangeOps = map[string]Op{
	"gt":  Gt,
	"gte": Gte,
	"lt":  Lt,
	"lte": Lte,
}

// Direction is a sort direction.
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	MaxLimit     = 100

	// VersionField is the internal document version hidden by default.
	VersionField = "__v"
	// CreatedAtField orders results when no sort is requested.
	CreatedAtField = "createdAt"
)

// reserved keys are never treated as filters.
var reserved = map[string]struct{}{
	"page":   {},
	"sort":   {},
	"limit":  {},
	"fields": {},
}

// Condition constrains one field.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// SortKey orders by one field.
type SortKey struct {
	Field     string
	Direction Direction
}

// Projection selects fields. Include wins when both lists are set.
type Projection struct {
	Include []string
	Exclude []string
}

// Descriptor is the inert result of a Builder.
type Descriptor struct {
	Conditions []Condition
	Sort       []SortKey
	Projection Projection
	Page       int
	Skip       int
	Limit      int

	// Ignored lists the parameters that were dropped as malformed.
	Ignored []string
}

// Builder accumulates a Descriptor from raw parameters.
type Builder struct {
	params url.Values
	d      Descriptor
}

// New returns a Builder over params. The params are not modified.
func New(params url.Values) *Builder {
	return &Builder{
		params: params,
		d: Descriptor{
			Page:  DefaultPage,
			Limit: DefaultLimit,
		},
	}
}

// FromParams runs the whole pipeline.
func FromParams(params url.Values) Descriptor {
	return New(params).Filter().Sort().LimitFields().Paginate().Descriptor()
}

// Filter turns every non-reserved parameter into a condition. A key of the
// form field[op] becomes a range condition when op is gt, gte, lt or lte;
// any other bracket syntax is dropped. When a key repeats, the last value
// wins.
func (b *Builder) Filter() *Builder {
	for key, values := range b.params {
		if _, skip := reserved[key]; skip || len(values) == 0 {
			continue
		}
		field, op, ok := parseKey(key)
		if !ok {
			b.d.Ignored = append(b.d.Ignored, key)
			continue
		}
		b.d.Conditions = append(b.d.Conditions, Condition{
			Field: field,
			Op:    op,
			Value: values[len(values)-1],
		})
	}
	slices.SortFunc(b.d.Conditions, func(x, y Condition) int {
		return cmp.Or(cmp.Compare(x.Field, y.Field), cmp.Compare(x.Op, y.Op))
	})
	slices.Sort(b.d.Ignored)
	return b
}

// Where adds a condition that does not come from the query string, e.g. the
// parent id of a nested route.
func (b *Builder) Where(field string, op Op, value any) *Builder {
	b.d.Conditions = append(b.d.Conditions, Condition{Field: field, Op: op, Value: value})
	return b
}

// Sort reads a comma separated field list from "sort". A leading "-"
// sorts that field descending. Without a usable list results are ordered by
// creation time, newest first.
func (b *Builder) Sort() *Builder {
	b.d.Sort = nil
	for _, f := range splitList(b.params.Get("sort")) {
		dir := Asc
		if strings.HasPrefix(f, "-") {
			dir = Desc
			f = f[1:]
		}
		if !validField(f) {
			b.d.Ignored = append(b.d.Ignored, "sort:"+f)
			continue
		}
		b.d.Sort = append(b.d.Sort, SortKey{Field: f, Direction: dir})
	}
	if len(b.d.Sort) == 0 {
		b.d.Sort = []SortKey{{Field: CreatedAtField, Direction: Desc}}
	}
	return b
}

// LimitFields reads a comma separated projection from "fields". Without one
// only the version field is hidden.
func (b *Builder) LimitFields() *Builder {
	var p Projection
	for _, f := range splitList(b.params.Get("fields")) {
		exclude := strings.HasPrefix(f, "-")
		if exclude {
			f = f[1:]
		}
		if !validField(f) {
			b.d.Ignored = append(b.d.Ignored, "fields:"+f)
			continue
		}
		if exclude {
			p.Exclude = append(p.Exclude, f)
		} else {
			p.Include = append(p.Include, f)
		}
	}
	switch {
	case len(p.Include) > 0:
		p.Exclude = nil
	case len(p.Exclude) == 0:
		p.Exclude = []string{VersionField}
	}
	b.d.Projection = p
	return b
}

// Paginate reads "page" and "limit". Values that are not positive integers
// fall back to the defaults; limit is capped at MaxLimit. A page whose skip
// would not fit in an int is clamped to the last representable page, which
// is past any real result set.
func (b *Builder) Paginate() *Builder {
	page := positiveInt(b.params.Get("page"), DefaultPage)
	limit := positiveInt(b.params.Get("limit"), DefaultLimit)
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if full := math.MaxInt / limit; page-1 > full {
		page = full + 1
	}
	b.d.Page = page
	b.d.Limit = limit
	b.d.Skip = (page - 1) * limit
	return b
}

// Descriptor returns the accumulated result.
func (b *Builder) Descriptor() Descriptor {
	return b.d
}

// parseKey splits "price[gte]" into ("price", Gte). A key without brackets
// is an equality.
func parseKey(key string) (string, Op, bool) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		if !validField(key) {
			return "", "", false
		}
		return key, Eq, true
	}
	if !strings.HasSuffix(key, "]") || strings.Count(key, "[") != 1 || strings.Count(key, "]") != 1 {
		return "", "", false
	}
	field := key[:open]
	op, ok := rangeOps[key[open+1:len(key)-1]]
	if !ok || !validField(field) {
		return "", "", false
	}
	return field, op, true
}

// validField rejects empty names, operator injection and bracket leftovers.
func validField(f string) bool {
	if f == "" || strings.ContainsAny(f, "[]") {
		return false
	}
	for _, part := range strings.Split(f, ".") {
		if part == "" || strings.HasPrefix(part, "$") {
			return false
		}
	}
	return true
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// positiveInt parses s. Integers too large for an int saturate at
// math.MaxInt.
func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if errors.Is(err, strconv.ErrRange) && n > 0 {
		return n
	}
	if err != nil || n <= 0 {
		return def
	}
	return n
}
