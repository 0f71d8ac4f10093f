package semantic

import (
	"fmt"
	"strings"
)

// ValidationError aggregates all problems found in a manifest so users
// can fix them in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid manifest: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid manifest (%d problems):\n  - %s",
		len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// Validate checks manifest consistency. It returns a *ValidationError
// listing every problem, or nil.
func Validate(m *Manifest) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	sourceNames := make(map[string]struct{})
	measureOwners := make(map[string]string)
	for _, ds := range m.DataSources {
		if ds.Name == "" {
			addf("data source with empty name")
			continue
		}
		if _, dup := sourceNames[ds.Name]; dup {
			addf("duplicate data source %q", ds.Name)
		}
		sourceNames[ds.Name] = struct{}{}

		if ds.SQLTable == "" && ds.SQLQuery == "" {
			addf("data source %q: one of sql_table or sql_query is required", ds.Name)
		}
		if ds.SQLTable != "" && ds.SQLQuery != "" {
			addf("data source %q: sql_table and sql_query are mutually exclusive", ds.Name)
		}

		primaries := 0
		for _, e := range ds.Entities {
			switch e.Type {
			case EntityPrimary:
				primaries++
			case EntityForeign, EntityUnique:
			default:
				addf("data source %q: entity %q has unknown type %q", ds.Name, e.Name, e.Type)
			}
		}
		if primaries > 1 {
			addf("data source %q: more than one primary entity", ds.Name)
		}

		primaryTimes := 0
		for _, d := range ds.Dimensions {
			switch d.Type {
			case DimensionCategorical:
			case DimensionTime:
				if d.IsPrimaryTime() {
					primaryTimes++
				}
			default:
				addf("data source %q: dimension %q has unknown type %q", ds.Name, d.Name, d.Type)
			}
		}
		if primaryTimes > 1 {
			addf("data source %q: more than one primary time dimension", ds.Name)
		}

		for _, measure := range ds.Measures {
			if !measure.Agg.Valid() {
				addf("data source %q: measure %q has unknown agg %q", ds.Name, measure.Name, measure.Agg)
			}
			if owner, dup := measureOwners[measure.Name]; dup {
				addf("measure %q defined by both %q and %q", measure.Name, owner, ds.Name)
				continue
			}
			measureOwners[measure.Name] = ds.Name
			if measure.AggTimeDimension != "" {
				if dim, ok := ds.GetDimension(measure.AggTimeDimension); !ok || dim.Type != DimensionTime {
					addf("data source %q: measure %q references agg_time_dimension %q which is not a time dimension",
						ds.Name, measure.Name, measure.AggTimeDimension)
				}
			}
		}

		if len(ds.Measures) > 0 && primaryTimes == 0 {
			for _, measure := range ds.Measures {
				if measure.AggTimeDimension == "" {
					addf("data source %q: measure %q has no aggregation time dimension and the source declares no primary time dimension",
						ds.Name, measure.Name)
				}
			}
		}
	}

	metricNames := make(map[string]struct{})
	for _, metric := range m.Metrics {
		if metric.Name == "" {
			addf("metric with empty name")
			continue
		}
		if _, dup := metricNames[metric.Name]; dup {
			addf("duplicate metric %q", metric.Name)
		}
		metricNames[metric.Name] = struct{}{}

		switch metric.Type {
		case MetricSimple:
			if metric.TypeParams.Measure == "" {
				addf("metric %q: simple metric requires type_params.measure", metric.Name)
			}
		case MetricRatio:
			if metric.TypeParams.Numerator == "" || metric.TypeParams.Denominator == "" {
				addf("metric %q: ratio metric requires numerator and denominator", metric.Name)
			}
		default:
			addf("metric %q: unknown type %q", metric.Name, metric.Type)
		}

		for _, measure := range metric.InputMeasures() {
			if measure == "" {
				continue
			}
			if _, ok := measureOwners[measure]; !ok {
				addf("metric %q references unknown measure %q", metric.Name, measure)
			}
		}
	}

	if m.TimeSpine != nil {
		if m.TimeSpine.Location == "" || m.TimeSpine.Column == "" {
			addf("time_spine requires location and column")
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
