// Package semantic defines the semantic manifest: data sources with
// measures, dimensions and entities, plus the metrics defined over them.
// The manifest is the compiler's source of truth for resolving metric
// queries into dataflow plans.
package semantic

import (
	"github.com/leapstack-labs/metriq/pkg/spec"
)

// AggregationType describes how a measure aggregates.
type AggregationType string

// Aggregation types supported by measures.
const (
	AggregationSum           AggregationType = "sum"
	AggregationCount         AggregationType = "count"
	AggregationCountDistinct AggregationType = "count_distinct"
	AggregationAvg           AggregationType = "avg"
	AggregationMin           AggregationType = "min"
	AggregationMax           AggregationType = "max"
	AggregationSumBoolean    AggregationType = "sum_boolean"
)

// Valid reports whether a is a known aggregation type.
func (a AggregationType) Valid() bool {
	switch a {
	case AggregationSum, AggregationCount, AggregationCountDistinct,
		AggregationAvg, AggregationMin, AggregationMax, AggregationSumBoolean:
		return true
	}
	return false
}

// Measure declares an aggregatable fact on a data source.
type Measure struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Agg         AggregationType `yaml:"agg"`
	// Expr is the SQL expression for the measure; defaults to Name.
	Expr string `yaml:"expr,omitempty"`
	// AggTimeDimension names the time dimension metric_time resolves to
	// for this measure. Defaults to the source's primary time dimension.
	AggTimeDimension string `yaml:"agg_time_dimension,omitempty"`
}

// ExprOrName returns the measure expression, defaulting to the name.
func (m *Measure) ExprOrName() string {
	if m.Expr != "" {
		return m.Expr
	}
	return m.Name
}

// DimensionType distinguishes categorical from time dimensions.
type DimensionType string

// Dimension types.
const (
	DimensionCategorical DimensionType = "categorical"
	DimensionTime        DimensionType = "time"
)

// DimensionTypeParams carries time dimension settings.
type DimensionTypeParams struct {
	TimeGranularity spec.TimeGranularity `yaml:"time_granularity,omitempty"`
	// IsPrimary marks the source's primary time dimension.
	IsPrimary bool `yaml:"is_primary,omitempty"`
}

// Dimension declares a groupable attribute on a data source.
type Dimension struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description,omitempty"`
	Type        DimensionType        `yaml:"type"`
	Expr        string               `yaml:"expr,omitempty"`
	TypeParams  *DimensionTypeParams `yaml:"type_params,omitempty"`
}

// ExprOrName returns the dimension expression, defaulting to the name.
func (d *Dimension) ExprOrName() string {
	if d.Expr != "" {
		return d.Expr
	}
	return d.Name
}

// IsPrimaryTime reports whether this is the source's primary time
// dimension.
func (d *Dimension) IsPrimaryTime() bool {
	return d.Type == DimensionTime && d.TypeParams != nil && d.TypeParams.IsPrimary
}

// Granularity returns the native grain of a time dimension, defaulting
// to day.
func (d *Dimension) Granularity() spec.TimeGranularity {
	if d.TypeParams != nil && d.TypeParams.TimeGranularity != "" {
		return d.TypeParams.TimeGranularity
	}
	return spec.GranularityDay
}

// EntityType describes the role of an entity on a data source.
type EntityType string

// Entity types.
const (
	EntityPrimary EntityType = "primary"
	EntityForeign EntityType = "foreign"
	EntityUnique  EntityType = "unique"
)

// Entity declares a join key on a data source. Sources sharing an entity
// name can be joined on it.
type Entity struct {
	Name string     `yaml:"name"`
	Type EntityType `yaml:"type"`
	Expr string     `yaml:"expr,omitempty"`
}

// ExprOrName returns the entity expression, defaulting to the name.
func (e *Entity) ExprOrName() string {
	if e.Expr != "" {
		return e.Expr
	}
	return e.Name
}

// DataSource declares an upstream table or query along with its semantic
// elements.
type DataSource struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// SQLTable is a schema-qualified table name. Mutually exclusive with
	// SQLQuery.
	SQLTable string `yaml:"sql_table,omitempty"`
	// SQLQuery is a user-defined SQL query read as a sub-query.
	SQLQuery string `yaml:"sql_query,omitempty"`

	Entities   []*Entity    `yaml:"entities,omitempty"`
	Measures   []*Measure   `yaml:"measures,omitempty"`
	Dimensions []*Dimension `yaml:"dimensions,omitempty"`
}

// GetMeasure returns the named measure.
func (ds *DataSource) GetMeasure(name string) (*Measure, bool) {
	for _, m := range ds.Measures {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// GetDimension returns the named dimension.
func (ds *DataSource) GetDimension(name string) (*Dimension, bool) {
	for _, d := range ds.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// GetEntity returns the named entity.
func (ds *DataSource) GetEntity(name string) (*Entity, bool) {
	for _, e := range ds.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// PrimaryEntity returns the primary entity, if any.
func (ds *DataSource) PrimaryEntity() (*Entity, bool) {
	for _, e := range ds.Entities {
		if e.Type == EntityPrimary {
			return e, true
		}
	}
	return nil, false
}

// PrimaryTimeDimension returns the primary time dimension, if any.
func (ds *DataSource) PrimaryTimeDimension() (*Dimension, bool) {
	for _, d := range ds.Dimensions {
		if d.IsPrimaryTime() {
			return d, true
		}
	}
	return nil, false
}

// MetricType distinguishes metric kinds.
type MetricType string

// Metric types. Cumulative and derived metrics are not supported.
const (
	MetricSimple MetricType = "simple"
	MetricRatio  MetricType = "ratio"
)

// MetricTypeParams carries the measure references of a metric.
type MetricTypeParams struct {
	// Measure is the input measure of a simple metric.
	Measure string `yaml:"measure,omitempty"`
	// Numerator and Denominator are the input measures of a ratio metric.
	Numerator   string `yaml:"numerator,omitempty"`
	Denominator string `yaml:"denominator,omitempty"`
}

// Metric defines a queryable metric over one or more measures.
type Metric struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Type        MetricType       `yaml:"type"`
	TypeParams  MetricTypeParams `yaml:"type_params"`
	// Filter is an optional constraint applied whenever the metric is
	// queried.
	Filter string `yaml:"filter,omitempty"`
}

// InputMeasures returns the measures the metric reads, numerator first
// for ratio metrics.
func (m *Metric) InputMeasures() []string {
	switch m.Type {
	case MetricRatio:
		return []string{m.TypeParams.Numerator, m.TypeParams.Denominator}
	default:
		if m.TypeParams.Measure == "" {
			return nil
		}
		return []string{m.TypeParams.Measure}
	}
}

// TimeSpine configures the calendar table used to anchor metric_time.
type TimeSpine struct {
	// Location is the schema-qualified spine table.
	Location string `yaml:"location"`
	// Column is the date column, one row per day.
	Column string `yaml:"column"`
}

// Manifest is the complete semantic model handed to the compiler.
type Manifest struct {
	DataSources []*DataSource `yaml:"data_sources"`
	Metrics     []*Metric     `yaml:"metrics"`
	TimeSpine   *TimeSpine    `yaml:"time_spine,omitempty"`
}
