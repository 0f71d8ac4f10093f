// Package query turns raw query requests into resolved query specs.
// Group-by names arrive dunder-qualified ("listing__country_latest",
// "metric_time__month"); the parser splits them, resolves each element
// against the semantic manifest and classifies it as a categorical or
// time dimension.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/metriq/internal/dataflow"
	"github.com/leapstack-labs/metriq/pkg/semantic"
	"github.com/leapstack-labs/metriq/pkg/spec"
)

// dateFormat parses time range bounds.
const dateFormat = "2006-01-02"

// Request is a raw metric query as it arrives from the CLI or an API
// caller, all elements referenced by name.
type Request struct {
	Metrics  []string
	GroupBys []string
	// Where is an optional boolean filter over group-by elements.
	Where string
	// OrderBys name output columns, prefixed with "-" for descending.
	OrderBys []string
	Limit    *int64
	// TimeStart and TimeEnd bound the aggregation time dimension,
	// inclusive, as YYYY-MM-DD. Both or neither must be set.
	TimeStart string
	TimeEnd   string
}

// Parser resolves requests against a semantic manifest.
type Parser struct {
	lookup *semantic.Lookup
}

// NewParser creates a Parser over a manifest lookup.
func NewParser(lookup *semantic.Lookup) *Parser {
	return &Parser{lookup: lookup}
}

// Parse resolves a request into a query spec. It validates every name
// so plan building only sees elements the manifest defines.
func (p *Parser) Parse(req Request) (spec.QuerySpec, error) {
	var q spec.QuerySpec

	for _, name := range req.Metrics {
		if _, ok := p.lookup.Metric(name); !ok {
			return q, fmt.Errorf("unknown metric %q; known metrics: %s",
				name, strings.Join(p.lookup.MetricNames(), ", "))
		}
		q.Metrics = append(q.Metrics, spec.MetricSpec{Name: name})
	}

	for _, name := range req.GroupBys {
		if err := p.resolveGroupBy(&q, name); err != nil {
			return q, err
		}
	}

	if req.Where != "" {
		where, err := dataflow.ParseFilter(req.Where)
		if err != nil {
			return q, fmt.Errorf("parsing where filter: %w", err)
		}
		q.Where = where
	}

	tr, err := parseTimeRange(req.TimeStart, req.TimeEnd)
	if err != nil {
		return q, err
	}
	q.TimeRange = tr

	outputs := outputNames(q)
	for _, name := range req.OrderBys {
		desc := strings.HasPrefix(name, "-")
		name = strings.TrimPrefix(name, "-")
		if !containsName(outputs, name) {
			return q, fmt.Errorf("order by %q is not a queried metric or group by; query outputs: %s",
				name, strings.Join(outputs, ", "))
		}
		q.OrderBys = append(q.OrderBys, spec.OrderBySpec{Name: name, Descending: desc})
	}

	if req.Limit != nil {
		if *req.Limit < 0 {
			return q, fmt.Errorf("limit must not be negative, got %d", *req.Limit)
		}
		q.Limit = req.Limit
	}

	return q, nil
}

// resolveGroupBy classifies one qualified group-by name and appends it
// to the dimension or time dimension list.
func (p *Parser) resolveGroupBy(q *spec.QuerySpec, name string) error {
	sn := spec.ParseStructuredName(name)

	if sn.Element == spec.MetricTimeName {
		if sn.EntityLink != "" {
			return fmt.Errorf("%s cannot be reached through an entity link", spec.MetricTimeName)
		}
		q.TimeDimensions = append(q.TimeDimensions, spec.TimeDimensionSpec{
			Name:        spec.MetricTimeName,
			Granularity: sn.Granularity,
		})
		return nil
	}

	dim, err := p.findDimension(sn)
	if err != nil {
		return err
	}

	if dim.Type == semantic.DimensionTime {
		q.TimeDimensions = append(q.TimeDimensions, spec.TimeDimensionSpec{
			Name:        sn.Element,
			EntityLink:  sn.EntityLink,
			Granularity: sn.Granularity,
		})
		return nil
	}

	if sn.Granularity != "" {
		return fmt.Errorf("dimension %q is categorical and has no granularity, got %q",
			sn.String(), sn.Granularity)
	}
	q.Dimensions = append(q.Dimensions, spec.DimensionSpec{
		Name:       sn.Element,
		EntityLink: sn.EntityLink,
	})
	return nil
}

// findDimension locates the dimension a structured name refers to,
// either through its entity link or on any data source for local names.
func (p *Parser) findDimension(sn spec.StructuredName) (*semantic.Dimension, error) {
	if sn.EntityLink != "" {
		_, dim, ok := p.lookup.DimensionSourceViaEntity(sn.EntityLink, sn.Element)
		if !ok {
			return nil, fmt.Errorf("unknown dimension %q; known dimensions: %s",
				sn.String(), strings.Join(p.knownDimensions(), ", "))
		}
		return dim, nil
	}

	for _, ds := range p.lookup.Manifest().DataSources {
		if dim, ok := ds.GetDimension(sn.Element); ok {
			return dim, nil
		}
	}
	return nil, fmt.Errorf("unknown dimension %q; known dimensions: %s",
		sn.Element, strings.Join(p.knownDimensions(), ", "))
}

// knownDimensions lists every queryable dimension name for error
// messages, entity-linked names included, sorted and deduplicated.
func (p *Parser) knownDimensions() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	add(spec.MetricTimeName)
	for _, ds := range p.lookup.Manifest().DataSources {
		for _, d := range ds.Dimensions {
			add(d.Name)
			for _, e := range ds.Entities {
				if e.Type == semantic.EntityPrimary || e.Type == semantic.EntityUnique {
					add(e.Name + spec.NameSeparator + d.Name)
				}
			}
		}
	}
	sort.Strings(names)
	return names
}

func parseTimeRange(start, end string) (*spec.TimeRangeConstraint, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("time range needs both a start and an end date")
	}
	s, err := time.Parse(dateFormat, start)
	if err != nil {
		return nil, fmt.Errorf("parsing time range start: %w", err)
	}
	e, err := time.Parse(dateFormat, end)
	if err != nil {
		return nil, fmt.Errorf("parsing time range end: %w", err)
	}
	if e.Before(s) {
		return nil, fmt.Errorf("time range end %s is before start %s", end, start)
	}
	return &spec.TimeRangeConstraint{Start: s, End: e}, nil
}

// outputNames lists the column names a resolved query produces.
func outputNames(q spec.QuerySpec) []string {
	names := make([]string, 0, len(q.Metrics))
	for _, m := range q.Metrics {
		names = append(names, m.Name)
	}
	return append(names, q.GroupByNames()...)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
