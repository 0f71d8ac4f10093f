package spec

import (
	"testing"
)

func TestParseStructuredName(t *testing.T) {
	tests := []struct {
		name        string
		wantLink    string
		wantElement string
		wantGrain   TimeGranularity
	}{
		{"ds", "", "ds", ""},
		{"is_instant", "", "is_instant", ""},
		{"listing__country_latest", "listing", "country_latest", ""},
		{"ds__month", "", "ds", GranularityMonth},
		{"metric_time__day", "", "metric_time", GranularityDay},
		{"booking__paid_at__quarter", "booking", "paid_at", GranularityQuarter},
		// "week" only strips as a grain when it is a suffix part
		{"week", "", "week", ""},
		{"user__week", "", "user", GranularityWeek},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStructuredName(tt.name)
			if got.EntityLink != tt.wantLink {
				t.Errorf("entity link: got %q, want %q", got.EntityLink, tt.wantLink)
			}
			if got.Element != tt.wantElement {
				t.Errorf("element: got %q, want %q", got.Element, tt.wantElement)
			}
			if got.Granularity != tt.wantGrain {
				t.Errorf("granularity: got %q, want %q", got.Granularity, tt.wantGrain)
			}
		})
	}
}

func TestStructuredName_String(t *testing.T) {
	sn := StructuredName{EntityLink: "listing", Element: "country_latest"}
	if sn.String() != "listing__country_latest" {
		t.Errorf("unexpected string: %s", sn.String())
	}
}

func TestTimeGranularity_AtLeastAsCoarseAs(t *testing.T) {
	if !GranularityMonth.AtLeastAsCoarseAs(GranularityDay) {
		t.Error("month should be at least as coarse as day")
	}
	if GranularityDay.AtLeastAsCoarseAs(GranularityMonth) {
		t.Error("day should not be at least as coarse as month")
	}
	if !GranularityYear.AtLeastAsCoarseAs(GranularityYear) {
		t.Error("granularity should be at least as coarse as itself")
	}
}

func TestDimensionSpec_QualifiedName(t *testing.T) {
	d := DimensionSpec{Name: "country_latest", EntityLink: "listing"}
	if d.QualifiedName() != "listing__country_latest" {
		t.Errorf("unexpected qualified name: %s", d.QualifiedName())
	}

	td := TimeDimensionSpec{Name: "metric_time", Granularity: GranularityMonth}
	if td.QualifiedName() != "metric_time__month" {
		t.Errorf("unexpected qualified name: %s", td.QualifiedName())
	}
}
