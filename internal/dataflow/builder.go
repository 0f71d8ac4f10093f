package dataflow

import (
	"fmt"

	"github.com/leapstack-labs/metriq/pkg/semantic"
	"github.com/leapstack-labs/metriq/pkg/spec"
	"github.com/leapstack-labs/metriq/pkg/sqlfilter"
	"github.com/leapstack-labs/metriq/pkg/sqlplan"
)

// timeFormat renders time range bounds as date literals.
const timeFormat = "2006-01-02"

// Builder builds dataflow plans from resolved query specs.
type Builder struct {
	lookup *semantic.Lookup
	nextID int
}

// NewBuilder creates a Builder over a manifest lookup.
func NewBuilder(lookup *semantic.Lookup) *Builder {
	return &Builder{lookup: lookup}
}

func (b *Builder) id(kind string) string {
	id := fmt.Sprintf("%s_%d", kind, b.nextID)
	b.nextID++
	return id
}

// BuildMetricPlan builds the full pipeline for a metric query: read,
// joins, constraints, element filter, aggregation, metric computation
// and ordering.
func (b *Builder) BuildMetricPlan(q spec.QuerySpec) (*Plan, error) {
	b.nextID = 0
	if len(q.Metrics) == 0 {
		return nil, unsatisfiable("no metrics requested")
	}

	metrics := make([]*semantic.Metric, 0, len(q.Metrics))
	var measures []string
	seenMeasure := make(map[string]bool)
	for _, ms := range q.Metrics {
		metric, ok := b.lookup.Metric(ms.Name)
		if !ok {
			return nil, unsatisfiable("unknown metric %q", ms.Name)
		}
		metrics = append(metrics, metric)
		for _, m := range metric.InputMeasures() {
			if !seenMeasure[m] {
				seenMeasure[m] = true
				measures = append(measures, m)
			}
		}
	}

	filtered := 0
	for _, metric := range metrics {
		if metric.Filter != "" {
			filtered++
		}
	}
	if filtered > 0 && len(metrics) > 1 {
		return nil, unsatisfiable("metrics with filters cannot be combined with other metrics in one query")
	}

	node, aggTimeDim, err := b.buildInputFlow(measures, q)
	if err != nil {
		return nil, err
	}

	// Metric-level filters apply before aggregation.
	for _, metric := range metrics {
		if metric.Filter == "" {
			continue
		}
		filter, err := parseFilter(metric.Filter)
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", metric.Name, err)
		}
		if err := b.checkFilterElements(filter, node); err != nil {
			return nil, err
		}
		node = &WhereConstraintNode{id: b.id("where"), Input: node, Filter: filter}
	}

	if q.TimeRange != nil {
		node, err = b.applyTimeRange(node, q, aggTimeDim)
		if err != nil {
			return nil, err
		}
	}

	groupBys := q.GroupByNames()
	node = &FilterElementsNode{
		id:      b.id("pass"),
		Input:   node,
		Include: append(append([]string(nil), measures...), groupBys...),
	}

	aggs := make([]MeasureAggregation, 0, len(measures))
	for _, name := range measures {
		_, m, err := b.lookup.SourceForMeasure(name)
		if err != nil {
			return nil, unsatisfiable("%v", err)
		}
		aggs = append(aggs, MeasureAggregation{Name: name, Fn: aggregateFn(m.Agg)})
	}
	node = &AggregateMeasuresNode{
		id:       b.id("agg"),
		Input:    node,
		Measures: aggs,
		GroupBys: groupBys,
	}

	computations := make([]MetricComputation, 0, len(metrics))
	for _, metric := range metrics {
		mc := MetricComputation{Name: metric.Name, Type: metric.Type}
		switch metric.Type {
		case semantic.MetricRatio:
			mc.Numerator = metric.TypeParams.Numerator
			mc.Denominator = metric.TypeParams.Denominator
		default:
			mc.Measure = metric.TypeParams.Measure
		}
		computations = append(computations, mc)
	}
	node = &ComputeMetricsNode{
		id:       b.id("metrics"),
		Input:    node,
		Metrics:  computations,
		GroupBys: groupBys,
	}

	if len(q.OrderBys) > 0 || q.Limit != nil {
		available := OutputColumns(node)
		for _, o := range q.OrderBys {
			if !containsName(available, o.Name) {
				return nil, unsatisfiable("order by %q is not in the query output", o.Name)
			}
		}
		node = &OrderByLimitNode{
			id:       b.id("order"),
			Input:    node,
			OrderBys: q.OrderBys,
			Limit:    q.Limit,
		}
	}

	return NewPlan("plan0", node)
}

// BuildElementsPlan builds an unaggregated plan selecting raw measure
// and dimension values: read, constraints and an element filter, with
// the where constraint outermost.
func (b *Builder) BuildElementsPlan(measures []string, q spec.QuerySpec) (*Plan, error) {
	b.nextID = 0
	if len(measures) == 0 && len(q.Dimensions) == 0 && len(q.TimeDimensions) == 0 {
		return nil, unsatisfiable("nothing selected")
	}

	node, _, err := b.buildInputFlow(measures, q)
	if err != nil {
		return nil, err
	}

	node = &FilterElementsNode{
		id:      b.id("pass"),
		Input:   node,
		Include: append(append([]string(nil), measures...), q.GroupByNames()...),
	}

	// The constraint sits above the element filter here, so it may only
	// reference selected elements.
	if q.Where != nil {
		if err := b.checkFilterElements(q.Where, node); err != nil {
			return nil, err
		}
		node = &WhereConstraintNode{id: b.id("where"), Input: node, Filter: q.Where}
	}

	return NewPlan("plan0", node)
}

// buildInputFlow builds the shared front of both plan shapes: the
// measure-source read, dimension joins, and the query-level where
// constraint (metric plans only add it before element filtering).
// Returns the flow and the aggregation time dimension of the measures.
func (b *Builder) buildInputFlow(measures []string, q spec.QuerySpec) (Node, *semantic.Dimension, error) {
	measureSource, aggTimeDim, err := b.resolveMeasureSource(measures, q)
	if err != nil {
		return nil, nil, err
	}

	read, err := b.readNode(measureSource, q.TimeDimensions, aggTimeDim)
	if err != nil {
		return nil, nil, err
	}
	var node Node = read

	node, err = b.joinDimensionSources(node, measureSource, q)
	if err != nil {
		return nil, nil, err
	}

	// Local dimensions must exist on the measure source.
	for _, d := range q.Dimensions {
		if d.EntityLink != "" {
			continue
		}
		if _, ok := measureSource.GetDimension(d.Name); !ok {
			return nil, nil, unsatisfiable("dimension %q is not defined on data source %q",
				d.Name, measureSource.Name)
		}
	}

	if q.Where != nil && len(q.Metrics) > 0 {
		if err := b.checkFilterElements(q.Where, node); err != nil {
			return nil, nil, err
		}
		node = &WhereConstraintNode{id: b.id("where"), Input: node, Filter: q.Where}
	}

	return node, aggTimeDim, nil
}

// resolveMeasureSource finds the single data source owning all queried
// measures. Queries spanning measure sources are not supported.
func (b *Builder) resolveMeasureSource(measures []string, q spec.QuerySpec) (*semantic.DataSource, *semantic.Dimension, error) {
	if len(measures) == 0 {
		// Dimension-only query: serve it from a source holding the first
		// local dimension.
		for _, d := range q.Dimensions {
			if d.EntityLink != "" {
				continue
			}
			for _, ds := range b.lookup.Manifest().DataSources {
				if _, ok := ds.GetDimension(d.Name); ok {
					return ds, nil, nil
				}
			}
		}
		return nil, nil, unsatisfiable("queries without measures need at least one local dimension")
	}

	var source *semantic.DataSource
	var firstMeasure *semantic.Measure
	for _, name := range measures {
		ds, m, err := b.lookup.SourceForMeasure(name)
		if err != nil {
			return nil, nil, unsatisfiable("%v", err)
		}
		if source == nil {
			source = ds
			firstMeasure = m
		} else if source != ds {
			return nil, nil, unsatisfiable(
				"measures %q and %q live on different data sources (%s, %s)",
				measures[0], name, source.Name, ds.Name)
		}
	}

	var aggTimeDim *semantic.Dimension
	if needsAggTime(q) {
		dim, err := b.lookup.AggTimeDimension(source, firstMeasure)
		if err != nil {
			return nil, nil, unsatisfiable("%v", err)
		}
		aggTimeDim = dim
	}
	return source, aggTimeDim, nil
}

func needsAggTime(q spec.QuerySpec) bool {
	if q.TimeRange != nil {
		return true
	}
	for _, td := range q.TimeDimensions {
		if td.Name == spec.MetricTimeName {
			return true
		}
	}
	return false
}

// readNode builds the read of a data source: every measure, dimension
// and entity under its natural name, plus derived columns for the
// requested time dimensions (grain truncation, metric_time renaming).
func (b *Builder) readNode(ds *semantic.DataSource, timeDims []spec.TimeDimensionSpec, aggTimeDim *semantic.Dimension) (*ReadSqlSourceNode, error) {
	elements, err := sourceElements(ds)
	if err != nil {
		return nil, err
	}

	for _, td := range timeDims {
		// Entity-linked time dimensions come in through their join.
		if td.EntityLink != "" {
			continue
		}
		var dim *semantic.Dimension
		if td.Name == spec.MetricTimeName {
			if aggTimeDim == nil {
				return nil, unsatisfiable("metric_time requires a queried measure with an aggregation time dimension")
			}
			dim = aggTimeDim
		} else {
			d, ok := ds.GetDimension(td.Name)
			if !ok || d.Type != semantic.DimensionTime {
				return nil, unsatisfiable("time dimension %q is not defined on data source %q", td.Name, ds.Name)
			}
			dim = d
		}

		expr, err := elementExpr(dim.ExprOrName())
		if err != nil {
			return nil, err
		}
		grain := td.Granularity
		if grain != "" {
			if !grain.AtLeastAsCoarseAs(dim.Granularity()) {
				return nil, unsatisfiable("time dimension %q has grain %s, cannot be queried at finer grain %s",
					dim.Name, dim.Granularity(), grain)
			}
			expr = &sqlplan.DateTrunc{Grain: string(grain), Arg: expr}
		}

		name := td.QualifiedName()
		if containsElement(elements, name) {
			continue
		}
		elements = append(elements, Element{
			Name:  name,
			Kind:  ElementTimeDimension,
			Expr:  expr,
			Grain: grain,
		})
	}

	return &ReadSqlSourceNode{id: b.id("read"), Source: ds, Elements: elements}, nil
}

// joinDimensionSources adds one join per entity link used by non-local
// dimensions, categorical and time alike.
func (b *Builder) joinDimensionSources(node Node, measureSource *semantic.DataSource, q spec.QuerySpec) (Node, error) {
	// Group requested dimensions by entity link, preserving order.
	type linkedDims struct {
		dims     []spec.DimensionSpec
		timeDims []spec.TimeDimensionSpec
	}
	var links []string
	byLink := make(map[string]*linkedDims)
	addLink := func(link string) *linkedDims {
		if _, ok := byLink[link]; !ok {
			links = append(links, link)
			byLink[link] = &linkedDims{}
		}
		return byLink[link]
	}
	for _, d := range q.Dimensions {
		if d.EntityLink == "" {
			continue
		}
		ld := addLink(d.EntityLink)
		ld.dims = append(ld.dims, d)
	}
	for _, td := range q.TimeDimensions {
		if td.EntityLink == "" {
			continue
		}
		ld := addLink(td.EntityLink)
		ld.timeDims = append(ld.timeDims, td)
	}

	for _, link := range links {
		if _, ok := measureSource.GetEntity(link); !ok {
			return nil, unsatisfiable("entity %q is not defined on data source %q", link, measureSource.Name)
		}

		// Every dimension behind one link must resolve to one source.
		var dimSource *semantic.DataSource
		resolve := func(name string) (*semantic.Dimension, error) {
			ds, dim, ok := b.lookup.DimensionSourceViaEntity(link, name)
			if !ok {
				return nil, unsatisfiable("dimension %q is not reachable via entity %q", name, link)
			}
			if dimSource == nil {
				dimSource = ds
			} else if dimSource != ds {
				return nil, unsatisfiable(
					"dimensions via entity %q resolve to different data sources (%s, %s)",
					link, dimSource.Name, ds.Name)
			}
			return dim, nil
		}

		ld := byLink[link]
		var linkElements []Element
		for _, d := range ld.dims {
			dim, err := resolve(d.Name)
			if err != nil {
				return nil, err
			}
			expr, err := elementExpr(dim.ExprOrName())
			if err != nil {
				return nil, err
			}
			linkElements = append(linkElements, Element{Name: d.Name, Kind: ElementDimension, Expr: expr})
		}
		for _, td := range ld.timeDims {
			dim, err := resolve(td.Name)
			if err != nil {
				return nil, err
			}
			if dim.Type != semantic.DimensionTime {
				return nil, unsatisfiable("dimension %q via entity %q is not a time dimension", td.Name, link)
			}
			expr, err := elementExpr(dim.ExprOrName())
			if err != nil {
				return nil, err
			}
			name := td.Name
			if td.Granularity != "" {
				if !td.Granularity.AtLeastAsCoarseAs(dim.Granularity()) {
					return nil, unsatisfiable("time dimension %q has grain %s, cannot be queried at finer grain %s",
						dim.Name, dim.Granularity(), td.Granularity)
				}
				expr = &sqlplan.DateTrunc{Grain: string(td.Granularity), Arg: expr}
				name = name + spec.NameSeparator + string(td.Granularity)
			}
			linkElements = append(linkElements, Element{
				Name:  name,
				Kind:  ElementTimeDimension,
				Expr:  expr,
				Grain: td.Granularity,
			})
		}

		entity, _ := dimSource.GetEntity(link)
		entityExpr, err := elementExpr(entity.ExprOrName())
		if err != nil {
			return nil, err
		}
		elements := append([]Element{{Name: link, Kind: ElementEntity, Expr: entityExpr}}, linkElements...)

		right := &ReadSqlSourceNode{id: b.id("read"), Source: dimSource, Elements: elements}
		node = &JoinOnEntityNode{
			id:     b.id("join"),
			Left:   node,
			Right:  right,
			Entity: link,
			Prefix: link,
		}
	}
	return node, nil
}

// applyTimeRange constrains the aggregation time dimension to the
// query's time range.
func (b *Builder) applyTimeRange(node Node, q spec.QuerySpec, aggTimeDim *semantic.Dimension) (Node, error) {
	if aggTimeDim == nil {
		return nil, unsatisfiable("time range constraint requires an aggregation time dimension")
	}

	// Constrain metric_time when queried, otherwise the dimension's
	// natural column.
	column := aggTimeDim.Name
	for _, td := range q.TimeDimensions {
		if td.Name == spec.MetricTimeName && td.Granularity == "" {
			column = spec.MetricTimeName
			break
		}
	}
	if !containsName(OutputColumns(node), column) {
		return nil, unsatisfiable("time range column %q is not available in the dataflow", column)
	}

	start := q.TimeRange.Start.Format(timeFormat)
	end := q.TimeRange.End.Format(timeFormat)
	expr := &sqlplan.BetweenRange{
		Target: &sqlplan.ColumnRef{Column: column},
		Low:    &sqlplan.Literal{Type: sqlplan.LiteralString, Value: start},
		High:   &sqlplan.Literal{Type: sqlplan.LiteralString, Value: end},
	}
	filter := &spec.WhereFilterSpec{
		SQL:      fmt.Sprintf("%s BETWEEN '%s' AND '%s'", column, start, end),
		Expr:     expr,
		Elements: []string{column},
	}
	return &WhereConstraintNode{id: b.id("where"), Input: node, Filter: filter}, nil
}

// checkFilterElements verifies every element a filter references is
// available at the constraint point.
func (b *Builder) checkFilterElements(filter *spec.WhereFilterSpec, node Node) error {
	available := OutputColumns(node)
	for _, name := range filter.Elements {
		if !containsName(available, name) {
			return unsatisfiable("where filter references %q which is not available; available elements: %v",
				name, available)
		}
	}
	return nil
}

// sourceElements projects every element of a data source under its
// natural name: measures first, then dimensions, then entities.
func sourceElements(ds *semantic.DataSource) ([]Element, error) {
	var elements []Element
	for _, m := range ds.Measures {
		expr, err := elementExpr(m.ExprOrName())
		if err != nil {
			return nil, err
		}
		elements = append(elements, Element{Name: m.Name, Kind: ElementMeasure, Expr: expr})
	}
	for _, d := range ds.Dimensions {
		expr, err := elementExpr(d.ExprOrName())
		if err != nil {
			return nil, err
		}
		kind := ElementDimension
		var grain spec.TimeGranularity
		if d.Type == semantic.DimensionTime {
			kind = ElementTimeDimension
			grain = d.Granularity()
		}
		elements = append(elements, Element{Name: d.Name, Kind: kind, Expr: expr, Grain: grain})
	}
	for _, e := range ds.Entities {
		expr, err := elementExpr(e.ExprOrName())
		if err != nil {
			return nil, err
		}
		elements = append(elements, Element{Name: e.Name, Kind: ElementEntity, Expr: expr})
	}
	return elements, nil
}

// elementExpr parses an element expression, falling back to verbatim
// SQL when the expression grammar does not cover it.
func elementExpr(src string) (sqlplan.Expr, error) {
	expr, err := sqlfilter.ParseValueExpr(src)
	if err != nil {
		return &sqlplan.RawExpr{SQL: src}, nil
	}
	return expr, nil
}

// parseFilter parses a filter string into a WhereFilterSpec, recording
// the unqualified element names it references.
func parseFilter(sql string) (*spec.WhereFilterSpec, error) {
	expr, err := sqlfilter.Parse(sql)
	if err != nil {
		return nil, err
	}
	var elements []string
	seen := make(map[string]bool)
	sqlplan.WalkColumnRefs(expr, func(ref *sqlplan.ColumnRef) {
		if ref.Table != "" {
			return
		}
		if !seen[ref.Column] {
			seen[ref.Column] = true
			elements = append(elements, ref.Column)
		}
	})
	return &spec.WhereFilterSpec{SQL: sql, Expr: expr, Elements: elements}, nil
}

// ParseFilter parses a user-supplied where filter string.
func ParseFilter(sql string) (*spec.WhereFilterSpec, error) {
	return parseFilter(sql)
}

func aggregateFn(agg semantic.AggregationType) sqlplan.AggregateFn {
	switch agg {
	case semantic.AggregationCount:
		return sqlplan.AggCount
	case semantic.AggregationCountDistinct:
		return sqlplan.AggCountDistinct
	case semantic.AggregationAvg:
		return sqlplan.AggAvg
	case semantic.AggregationMin:
		return sqlplan.AggMin
	case semantic.AggregationMax:
		return sqlplan.AggMax
	default:
		// sum and sum_boolean both lower to SUM.
		return sqlplan.AggSum
	}
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func containsElement(elements []Element, name string) bool {
	for _, e := range elements {
		if e.Name == name {
			return true
		}
	}
	return false
}
