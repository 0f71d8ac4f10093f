package sqlplan

// SelectColumn is one entry in a SELECT list.
type SelectColumn struct {
	Expr Expr
	// Alias is the output column name. Rendering omits "AS alias" when the
	// expression is a bare column reference with the same name.
	Alias string
}

// JoinType represents the SQL join type.
type JoinType string

// Join types used by the dataflow-to-SQL conversion.
const (
	JoinInner     JoinType = "INNER"
	JoinLeftOuter JoinType = "LEFT OUTER"
	JoinFullOuter JoinType = "FULL OUTER"
	JoinCross     JoinType = "CROSS"
)

// Source is the FROM target of a select: exactly one of Select, Table or
// RawSQL is set. RawSQL carries a user-defined SQL query verbatim and is
// always rendered as a parenthesized sub-query with an alias.
type Source struct {
	Select *SelectStatement
	Table  string
	RawSQL string
}

// IsRaw reports whether the source is a user-defined SQL query.
func (s Source) IsRaw() bool { return s.RawSQL != "" }

// Join represents one JOIN clause.
type Join struct {
	Type  JoinType
	Right Source
	Alias string
	On    Expr
}

// OrderBy represents one ORDER BY entry.
type OrderBy struct {
	Expr Expr
	Desc bool
}

// SelectStatement is one node in the SQL query plan tree.
type SelectStatement struct {
	// Description lines are rendered as leading "-- " comments above the
	// SELECT keyword. When the optimizer merges two selects their
	// descriptions stack, outermost first.
	Description []string

	Columns   []SelectColumn
	From      Source
	FromAlias string
	Joins     []Join
	Where     Expr
	GroupBys  []Expr
	OrderBys  []OrderBy
	Limit     *int64
	Distinct  bool
}

// ColumnNames returns the output column names of the statement in order.
func (s *SelectStatement) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name())
	}
	return names
}

// Name returns the output name of a select column: the alias when set,
// otherwise the referenced column name for bare references.
func (c SelectColumn) Name() string {
	if c.Alias != "" {
		return c.Alias
	}
	if ref, ok := c.Expr.(*ColumnRef); ok {
		return ref.Column
	}
	return ""
}

// IsPassthrough reports whether the column is a bare reference whose
// output name equals the referenced column name.
func (c SelectColumn) IsPassthrough() bool {
	ref, ok := c.Expr.(*ColumnRef)
	if !ok {
		return false
	}
	return c.Alias == "" || c.Alias == ref.Column
}

// Plan is a complete SQL query plan with a stable id used for snapshot
// file naming (one compilation produces "plan0").
type Plan struct {
	ID   string
	Root *SelectStatement
}

// WalkSelects visits stmt and every nested sub-select, parents before
// children.
func WalkSelects(stmt *SelectStatement, fn func(*SelectStatement)) {
	if stmt == nil {
		return
	}
	fn(stmt)
	if stmt.From.Select != nil {
		WalkSelects(stmt.From.Select, fn)
	}
	for _, j := range stmt.Joins {
		if j.Right.Select != nil {
			WalkSelects(j.Right.Select, fn)
		}
	}
}
