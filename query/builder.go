package query

import (
	"fmt"
	"time"

	ogcfilter "github.com/planetlabs/go-ogc/filter"
)

// Builder combines CQL2 predicates for criteria Filter does not model, such
// as platform, product type, or processing level properties the catalog
// exposes. The result plugs into SearchParams.Filter.
type Builder struct {
	expr ogcfilter.BooleanExpression
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Where sets the expression, ANDing it with any current one.
func (b *Builder) Where(expr ogcfilter.BooleanExpression) *Builder {
	if expr == nil {
		return b
	}
	if b.expr == nil {
		b.expr = expr
		return b
	}
	b.expr = &ogcfilter.And{Args: []ogcfilter.BooleanExpression{b.expr, expr}}
	return b
}

// And joins the given predicates and the current expression with logical AND.
func (b *Builder) And(exprs ...ogcfilter.BooleanExpression) *Builder {
	return b.join(exprs, func(args []ogcfilter.BooleanExpression) ogcfilter.BooleanExpression {
		return &ogcfilter.And{Args: args}
	})
}

// Or joins the given predicates and the current expression with logical OR.
func (b *Builder) Or(exprs ...ogcfilter.BooleanExpression) *Builder {
	return b.join(exprs, func(args []ogcfilter.BooleanExpression) ogcfilter.BooleanExpression {
		return &ogcfilter.Or{Args: args}
	})
}

func (b *Builder) join(exprs []ogcfilter.BooleanExpression, combine func([]ogcfilter.BooleanExpression) ogcfilter.BooleanExpression) *Builder {
	args := make([]ogcfilter.BooleanExpression, 0, len(exprs)+1)
	if b.expr != nil {
		args = append(args, b.expr)
	}
	for _, expr := range exprs {
		if expr != nil {
			args = append(args, expr)
		}
	}
	if len(args) == 0 {
		return b
	}
	b.expr = combine(args)
	return b
}

// Filter returns the combined expression, nil when nothing was added.
func (b *Builder) Filter() ogcfilter.BooleanExpression {
	return b.expr
}

// Property starts a predicate on a catalog property, e.g.
// Property("eo:cloud_cover").Lte(20).
func Property(name string) PropertyExpression {
	return PropertyExpression{property: &ogcfilter.Property{Name: name}}
}

// PropertyExpression builds comparison predicates for one property.
type PropertyExpression struct {
	property *ogcfilter.Property
}

// Eq matches items whose property equals value.
func (p PropertyExpression) Eq(value any) ogcfilter.BooleanExpression {
	return &ogcfilter.Comparison{Name: ogcfilter.Equals, Left: p.property, Right: scalar(value)}
}

// Neq matches items whose property differs from value.
func (p PropertyExpression) Neq(value any) ogcfilter.BooleanExpression {
	return &ogcfilter.Comparison{Name: ogcfilter.NotEquals, Left: p.property, Right: scalar(value)}
}

// Lt matches items whose property is below value.
func (p PropertyExpression) Lt(value any) ogcfilter.BooleanExpression {
	return &ogcfilter.Comparison{Name: ogcfilter.LessThan, Left: p.property, Right: scalar(value)}
}

// Lte matches items whose property is at most value.
func (p PropertyExpression) Lte(value any) ogcfilter.BooleanExpression {
	return &ogcfilter.Comparison{Name: ogcfilter.LessThanOrEquals, Left: p.property, Right: scalar(value)}
}

// Gt matches items whose property is above value.
func (p PropertyExpression) Gt(value any) ogcfilter.BooleanExpression {
	return &ogcfilter.Comparison{Name: ogcfilter.GreaterThan, Left: p.property, Right: scalar(value)}
}

// Gte matches items whose property is at least value.
func (p PropertyExpression) Gte(value any) ogcfilter.BooleanExpression {
	return &ogcfilter.Comparison{Name: ogcfilter.GreaterThanOrEquals, Left: p.property, Right: scalar(value)}
}

// In matches items whose property takes one of the given values, e.g. a set
// of platform names.
func (p PropertyExpression) In(values ...any) ogcfilter.BooleanExpression {
	list := make([]ogcfilter.ScalarExpression, 0, len(values))
	for _, value := range values {
		if expr := scalar(value); expr != nil {
			list = append(list, expr)
		}
	}
	return &ogcfilter.In{
		Item: p.property,
		List: ogcfilter.ScalarList(list),
	}
}

// BBox builds a spatial intersection predicate against the item geometry.
func BBox(minLon, minLat, maxLon, maxLat float64) ogcfilter.BooleanExpression {
	return &ogcfilter.SpatialComparison{
		Name:  ogcfilter.GeometryIntersects,
		Left:  &ogcfilter.Property{Name: "geometry"},
		Right: &ogcfilter.BoundingBox{Extent: []float64{minLon, minLat, maxLon, maxLat}},
	}
}

// Datetime constrains the item acquisition time to [start, end]. Swapped or
// half-open bounds are normalized the same way Filter's From/To are.
func Datetime(start, end time.Time) ogcfilter.BooleanExpression {
	return Between("datetime", start, end)
}

// Between constrains a temporal property to the inclusive interval
// [start, end].
func Between(property string, start, end time.Time) ogcfilter.BooleanExpression {
	if end.IsZero() {
		end = start
	}
	if start.IsZero() {
		start = end
	}
	if end.Before(start) {
		start, end = end, start
	}
	return &ogcfilter.TemporalComparison{
		Name: ogcfilter.TimeIntersects,
		Left: &ogcfilter.Property{Name: property},
		Right: &ogcfilter.Interval{
			Start: &ogcfilter.Timestamp{Value: start.UTC()},
			End:   &ogcfilter.Timestamp{Value: end.UTC()},
		},
	}
}

// scalar converts the value kinds dataspace criteria carry (strings, bools,
// numbers, timestamps) into CQL2 scalar expressions.
func scalar(value any) ogcfilter.ScalarExpression {
	switch v := value.(type) {
	case nil:
		return nil
	case ogcfilter.ScalarExpression:
		return v
	case PropertyExpression:
		return v.property
	case string:
		return &ogcfilter.String{Value: v}
	case bool:
		return &ogcfilter.Boolean{Value: v}
	case int:
		return &ogcfilter.Number{Value: float64(v)}
	case int64:
		return &ogcfilter.Number{Value: float64(v)}
	case float64:
		return &ogcfilter.Number{Value: v}
	case time.Time:
		return &ogcfilter.Timestamp{Value: v}
	default:
		return &ogcfilter.String{Value: fmt.Sprint(value)}
	}
}
