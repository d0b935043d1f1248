package docstore

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/monsters-club/lounge/internal/types"
)

// Order sorts a projection by one field.
type Order struct {
	Field string
	Desc  bool
}

// FilterOp is a filter comparison.
type FilterOp string

const (
	FilterEq       FilterOp = "eq"
	FilterNe       FilterOp = "ne"
	FilterGlob     FilterOp = "glob"
	FilterContains FilterOp = "contains"
)

// Filter keeps documents whose field matches Value.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Query declares the projection of one subscription. It is fixed for the
// subscription's lifetime.
type Query struct {
	Collection string
	Order      *Order
	Filters    []Filter
}

// Where returns a copy of q with a filter added.
func (q Query) Where(field string, op FilterOp, value any) Query {
	out := q
	out.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return out
}

// OrderBy returns a copy of q sorted by field.
func (q Query) OrderBy(field string, desc bool) Query {
	out := q
	out.Order = &Order{Field: field, Desc: desc}
	return out
}

// Collection starts a query over name.
func Collection(name string) Query {
	return Query{Collection: name}
}

// Projection is a compiled query.
type Projection struct {
	query    Query
	matchers []matcher
}

type matcher func(types.Fields) bool

// Compile validates q and prepares its filters.
func Compile(q Query) (*Projection, error) {
	if strings.TrimSpace(q.Collection) == "" {
		return nil, fmt.Errorf("%w: collection name is required", ErrInvalidQuery)
	}
	if q.Order != nil && q.Order.Field == "" {
		return nil, fmt.Errorf("%w: order field is required", ErrInvalidQuery)
	}
	p := &Projection{query: q}
	for _, f := range q.Filters {
		m, err := compileFilter(f)
		if err != nil {
			return nil, err
		}
		p.matchers = append(p.matchers, m)
	}
	return p, nil
}

// Query returns the source query.
func (p *Projection) Query() Query {
	return p.query
}

// Match reports whether fields passes every filter.
func (p *Projection) Match(fields types.Fields) bool {
	for _, m := range p.matchers {
		if !m(fields) {
			return false
		}
	}
	return true
}

// Apply filters and orders docs. docs must be in store order; documents that
// compare equal keep that order.
func (p *Projection) Apply(docs []types.Document) []types.Document {
	out := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		if p.Match(doc.Fields) {
			out = append(out, doc)
		}
	}
	if p.query.Order == nil {
		return out
	}
	field := p.query.Order.Field
	desc := p.query.Order.Desc
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := Lookup(out[i].Fields, field)
		b, _ := Lookup(out[j].Fields, field)
		c := CompareValues(a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func compileFilter(f Filter) (matcher, error) {
	if f.Field == "" {
		return nil, fmt.Errorf("%w: filter field is required", ErrInvalidQuery)
	}
	switch f.Op {
	case FilterEq, "":
		return func(fields types.Fields) bool {
			v, ok := Lookup(fields, f.Field)
			return ok && CompareValues(v, f.Value) == 0
		}, nil
	case FilterNe:
		return func(fields types.Fields) bool {
			v, ok := Lookup(fields, f.Field)
			return !ok || CompareValues(v, f.Value) != 0
		}, nil
	case FilterGlob:
		pattern, ok := f.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: glob pattern must be a string", ErrInvalidQuery)
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		return func(fields types.Fields) bool {
			v, ok := Lookup(fields, f.Field)
			return ok && v != nil && g.Match(stringValue(v))
		}, nil
	case FilterContains:
		return func(fields types.Fields) bool {
			v, ok := Lookup(fields, f.Field)
			if !ok {
				return false
			}
			list, ok := v.([]any)
			if !ok {
				return false
			}
			for _, item := range list {
				if CompareValues(item, f.Value) == 0 {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown filter op %q", ErrInvalidQuery, f.Op)
	}
}

// Lookup resolves a dotted field path.
func Lookup(fields types.Fields, path string) (any, bool) {
	var current any = map[string]any(fields)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case types.Fields:
		return m, true
	default:
		return nil, false
	}
}

// CompareValues orders two JSON values. Missing values sort first, numbers
// compare numerically, timestamp strings compare as instants, and
// everything else compares by its string form.
func CompareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	if x, ok := a.(bool); ok {
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}
	sa, sb := stringValue(a), stringValue(b)
	if ta, err := time.Parse(time.RFC3339Nano, sa); err == nil {
		if tb, err := time.Parse(time.RFC3339Nano, sb); err == nil {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(sa, sb)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
