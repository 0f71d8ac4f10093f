package spec

import "strings"

// NameSeparator joins entity links, element names and granularity
// suffixes in qualified element names ("listing__country_latest",
// "metric_time__month").
const NameSeparator = "__"

// MetricTimeName is the reserved element name that resolves to the
// aggregation time dimension of the queried measures.
const MetricTimeName = "metric_time"

// StructuredName is a group-by or filter element name split into its
// parts. Parsing is purely syntactic; resolution against the manifest
// happens in the query parser.
type StructuredName struct {
	// EntityLink is the leading entity prefix, empty for local elements.
	EntityLink string
	// Element is the element name.
	Element string
	// Granularity is a trailing granularity suffix, empty when absent.
	Granularity TimeGranularity
}

// ParseStructuredName splits a dunder-separated name. The last part is
// treated as a granularity suffix only when it names a valid granularity,
// and the first part as an entity link only when two or more parts
// remain.
func ParseStructuredName(name string) StructuredName {
	parts := strings.Split(name, NameSeparator)

	var sn StructuredName
	if len(parts) > 1 {
		if g := TimeGranularity(parts[len(parts)-1]); g.Valid() {
			sn.Granularity = g
			parts = parts[:len(parts)-1]
		}
	}
	switch len(parts) {
	case 1:
		sn.Element = parts[0]
	default:
		sn.EntityLink = parts[0]
		sn.Element = strings.Join(parts[1:], NameSeparator)
	}
	return sn
}

// String reassembles the qualified name without the granularity suffix.
func (s StructuredName) String() string {
	if s.EntityLink == "" {
		return s.Element
	}
	return s.EntityLink + NameSeparator + s.Element
}
