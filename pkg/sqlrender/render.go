package sqlrender

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/sqlplan"
)

// Render renders a select statement tree to SQL text for the dialect.
func Render(stmt *sqlplan.SelectStatement, d *dialect.Dialect) string {
	p := newPrinter()
	r := &renderer{dialect: d}
	r.selectStmt(p, stmt)
	return p.String()
}

// RenderPlan renders a complete SQL query plan.
func RenderPlan(plan *sqlplan.Plan, d *dialect.Dialect) string {
	return Render(plan.Root, d)
}

// RenderExpr renders a single expression to SQL text. Exposed for
// diagnostics and tests.
func RenderExpr(expr sqlplan.Expr, d *dialect.Dialect) string {
	r := &renderer{dialect: d}
	return r.expr(expr)
}

type renderer struct {
	dialect *dialect.Dialect
}

func (r *renderer) selectStmt(p *printer, stmt *sqlplan.SelectStatement) {
	for _, line := range stmt.Description {
		p.comment(line)
	}

	if stmt.Distinct {
		p.write("SELECT DISTINCT")
	} else {
		p.write("SELECT")
	}
	p.writeln()

	p.indent()
	for i, col := range stmt.Columns {
		text := r.expr(col.Expr)
		if alias := col.Alias; alias != "" && !isBareRefNamed(col.Expr, alias) {
			text += " AS " + r.dialect.QuoteIdent(alias)
		}
		if i > 0 {
			text = ", " + text
		}
		p.write(text)
		p.writeln()
	}
	p.dedent()

	r.source(p, "FROM", stmt.From, stmt.FromAlias)

	for _, join := range stmt.Joins {
		r.source(p, string(join.Type)+" JOIN", join.Right, join.Alias)
		if join.On != nil {
			p.write("ON")
			p.writeln()
			p.indent()
			p.write(r.expr(join.On))
			p.writeln()
			p.dedent()
		}
	}

	if stmt.Where != nil {
		p.write("WHERE " + r.expr(stmt.Where))
		p.writeln()
	}

	if len(stmt.GroupBys) > 0 {
		p.write("GROUP BY")
		p.writeln()
		p.indent()
		for i, g := range stmt.GroupBys {
			text := r.expr(g)
			if i > 0 {
				text = ", " + text
			}
			p.write(text)
			p.writeln()
		}
		p.dedent()
	}

	if len(stmt.OrderBys) > 0 {
		parts := make([]string, 0, len(stmt.OrderBys))
		for _, o := range stmt.OrderBys {
			part := r.expr(o.Expr)
			if o.Desc {
				part += " DESC"
			}
			parts = append(parts, part)
		}
		p.write("ORDER BY " + strings.Join(parts, ", "))
		p.writeln()
	}

	if stmt.Limit != nil {
		p.write("LIMIT " + strconv.FormatInt(*stmt.Limit, 10))
		p.writeln()
	}
}

// source renders a FROM or JOIN target. Sub-queries and raw SQL are
// parenthesized with the alias on the closing line; tables get the alias
// on the same line.
func (r *renderer) source(p *printer, keyword string, src sqlplan.Source, alias string) {
	switch {
	case src.Select != nil:
		p.write(keyword + " (")
		p.writeln()
		p.indent()
		r.selectStmt(p, src.Select)
		p.dedent()
		p.write(")")
	case src.IsRaw():
		p.write(keyword + " (")
		p.writeln()
		p.indent()
		p.comment("User Defined SQL Query")
		for _, line := range strings.Split(strings.TrimRight(src.RawSQL, "\n"), "\n") {
			p.write(line)
			p.writeln()
		}
		p.dedent()
		p.write(")")
	default:
		p.write(keyword + " " + src.Table)
	}

	if alias != "" {
		p.write(" " + alias)
	}
	p.writeln()
}

func (r *renderer) expr(expr sqlplan.Expr) string {
	switch e := expr.(type) {
	case *sqlplan.Literal:
		return r.literal(e)
	case *sqlplan.ColumnRef:
		if e.Table != "" {
			return r.dialect.QuoteIdent(e.Table) + "." + r.dialect.QuoteIdent(e.Column)
		}
		return r.dialect.QuoteIdent(e.Column)
	case *sqlplan.Comparison:
		return fmt.Sprintf("%s %s %s", r.expr(e.Left), e.Op, r.expr(e.Right))
	case *sqlplan.Logical:
		parts := make([]string, 0, len(e.Operands))
		for _, op := range e.Operands {
			parts = append(parts, r.operand(op))
		}
		return strings.Join(parts, " "+string(e.Op)+" ")
	case *sqlplan.Not:
		return "NOT " + r.operand(e.Operand)
	case *sqlplan.InList:
		values := make([]string, 0, len(e.Values))
		for _, v := range e.Values {
			values = append(values, r.expr(v))
		}
		op := "IN"
		if e.Negated {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", r.expr(e.Target), op, strings.Join(values, ", "))
	case *sqlplan.IsNull:
		if e.Negated {
			return r.expr(e.Target) + " IS NOT NULL"
		}
		return r.expr(e.Target) + " IS NULL"
	case *sqlplan.BetweenRange:
		return fmt.Sprintf("%s BETWEEN %s AND %s",
			r.expr(e.Target), r.expr(e.Low), r.expr(e.High))
	case *sqlplan.AggregateCall:
		if e.Fn == sqlplan.AggCountDistinct {
			return fmt.Sprintf("COUNT(DISTINCT %s)", r.expr(e.Arg))
		}
		return fmt.Sprintf("%s(%s)", e.Fn, r.expr(e.Arg))
	case *sqlplan.DateTrunc:
		return r.dialect.RenderDateTrunc(e.Grain, r.expr(e.Arg))
	case *sqlplan.Arithmetic:
		return fmt.Sprintf("%s %s %s", r.arithOperand(e.Left, e.Op), e.Op, r.arithOperand(e.Right, e.Op))
	case *sqlplan.NullIf:
		return fmt.Sprintf("NULLIF(%s, %s)", r.expr(e.Left), r.expr(e.Right))
	case *sqlplan.CastDouble:
		return fmt.Sprintf("CAST(%s AS DOUBLE)", r.expr(e.Arg))
	case *sqlplan.RawExpr:
		return e.SQL
	default:
		return ""
	}
}

// operand parenthesizes nested boolean expressions so AND/OR and NOT
// grouping survives rendering.
func (r *renderer) operand(expr sqlplan.Expr) string {
	switch expr.(type) {
	case *sqlplan.Logical:
		return "(" + r.expr(expr) + ")"
	default:
		return r.expr(expr)
	}
}

// arithOperand parenthesizes additive sub-expressions inside
// multiplicative ones.
func (r *renderer) arithOperand(expr sqlplan.Expr, parent sqlplan.ArithmeticOp) string {
	if inner, ok := expr.(*sqlplan.Arithmetic); ok {
		mulParent := parent == sqlplan.ArithMul || parent == sqlplan.ArithDiv
		addInner := inner.Op == sqlplan.ArithAdd || inner.Op == sqlplan.ArithSub
		if mulParent && addInner {
			return "(" + r.expr(expr) + ")"
		}
	}
	return r.expr(expr)
}

func (r *renderer) literal(lit *sqlplan.Literal) string {
	switch lit.Type {
	case sqlplan.LiteralString:
		return r.dialect.QuoteString(lit.Value)
	case sqlplan.LiteralNull:
		return "NULL"
	default:
		return lit.Value
	}
}

// isBareRefNamed reports whether expr is an unqualified column reference
// already named alias, making "AS alias" redundant. Qualified references
// keep their alias so output column names stay explicit until the
// optimizer strips the qualifier.
func isBareRefNamed(expr sqlplan.Expr, alias string) bool {
	ref, ok := expr.(*sqlplan.ColumnRef)
	return ok && ref.Table == "" && ref.Column == alias
}
