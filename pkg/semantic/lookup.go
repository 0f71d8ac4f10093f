package semantic

import (
	"fmt"
	"sort"
)

// Lookup indexes a manifest for name resolution. Build one with
// NewLookup after the manifest has been validated.
type Lookup struct {
	manifest *Manifest

	sourcesByName   map[string]*DataSource
	metricsByName   map[string]*Metric
	measureToSource map[string]*DataSource
	// entityToSources maps entity name to the sources exposing it.
	entityToSources map[string][]*DataSource
}

// NewLookup builds the name indexes for a manifest.
func NewLookup(m *Manifest) *Lookup {
	l := &Lookup{
		manifest:        m,
		sourcesByName:   make(map[string]*DataSource),
		metricsByName:   make(map[string]*Metric),
		measureToSource: make(map[string]*DataSource),
		entityToSources: make(map[string][]*DataSource),
	}
	for _, ds := range m.DataSources {
		l.sourcesByName[ds.Name] = ds
		for _, measure := range ds.Measures {
			l.measureToSource[measure.Name] = ds
		}
		for _, entity := range ds.Entities {
			l.entityToSources[entity.Name] = append(l.entityToSources[entity.Name], ds)
		}
	}
	for _, metric := range m.Metrics {
		l.metricsByName[metric.Name] = metric
	}
	return l
}

// Manifest returns the indexed manifest.
func (l *Lookup) Manifest() *Manifest { return l.manifest }

// Source returns a data source by name.
func (l *Lookup) Source(name string) (*DataSource, bool) {
	ds, ok := l.sourcesByName[name]
	return ds, ok
}

// Metric returns a metric by name.
func (l *Lookup) Metric(name string) (*Metric, bool) {
	m, ok := l.metricsByName[name]
	return m, ok
}

// MetricNames returns all metric names, sorted.
func (l *Lookup) MetricNames() []string {
	names := make([]string, 0, len(l.metricsByName))
	for name := range l.metricsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SourceForMeasure returns the data source owning a measure.
func (l *Lookup) SourceForMeasure(measure string) (*DataSource, *Measure, error) {
	ds, ok := l.measureToSource[measure]
	if !ok {
		return nil, nil, fmt.Errorf("measure %q is not defined by any data source", measure)
	}
	m, _ := ds.GetMeasure(measure)
	return ds, m, nil
}

// SourcesWithEntity returns the data sources exposing an entity, in
// manifest order.
func (l *Lookup) SourcesWithEntity(entity string) []*DataSource {
	return l.entityToSources[entity]
}

// DimensionSourceViaEntity finds a source that exposes both the entity
// and the dimension, preferring sources where the entity is primary or
// unique so the join cannot fan out.
func (l *Lookup) DimensionSourceViaEntity(entity, dimension string) (*DataSource, *Dimension, bool) {
	var fallbackSrc *DataSource
	var fallbackDim *Dimension
	for _, ds := range l.entityToSources[entity] {
		dim, ok := ds.GetDimension(dimension)
		if !ok {
			continue
		}
		e, _ := ds.GetEntity(entity)
		if e.Type == EntityPrimary || e.Type == EntityUnique {
			return ds, dim, true
		}
		if fallbackSrc == nil {
			fallbackSrc = ds
			fallbackDim = dim
		}
	}
	if fallbackSrc != nil {
		return fallbackSrc, fallbackDim, true
	}
	return nil, nil, false
}

// AggTimeDimension resolves the aggregation time dimension for a measure
// on its source: the measure's agg_time_dimension if set, otherwise the
// source's primary time dimension.
func (l *Lookup) AggTimeDimension(ds *DataSource, m *Measure) (*Dimension, error) {
	if m.AggTimeDimension != "" {
		dim, ok := ds.GetDimension(m.AggTimeDimension)
		if !ok {
			return nil, fmt.Errorf("measure %q: agg_time_dimension %q not found on data source %q",
				m.Name, m.AggTimeDimension, ds.Name)
		}
		return dim, nil
	}
	dim, ok := ds.PrimaryTimeDimension()
	if !ok {
		return nil, fmt.Errorf("data source %q has no primary time dimension for measure %q",
			ds.Name, m.Name)
	}
	return dim, nil
}
