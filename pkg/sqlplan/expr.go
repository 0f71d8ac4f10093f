package sqlplan

// Expr is the interface implemented by all SQL expression nodes.
type Expr interface {
	exprNode()
}

// LiteralType represents the type of a literal.
type LiteralType int

// LiteralType constants for SQL literal value types.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// Literal represents a literal value. Value holds the source text of the
// literal (unquoted for strings).
type Literal struct {
	Type  LiteralType
	Value string
}

func (*Literal) exprNode() {}

// Null returns a NULL literal.
func Null() *Literal { return &Literal{Type: LiteralNull} }

// ColumnRef represents a column reference, optionally qualified by a
// table or sub-query alias.
type ColumnRef struct {
	Table  string
	Column string
}

func (*ColumnRef) exprNode() {}

// CompareOp represents a comparison operator.
type CompareOp string

// Comparison operators.
const (
	CompareEq CompareOp = "="
	CompareNe CompareOp = "!="
	CompareLt CompareOp = "<"
	CompareLe CompareOp = "<="
	CompareGt CompareOp = ">"
	CompareGe CompareOp = ">="
)

// Comparison represents a binary comparison.
type Comparison struct {
	Left  Expr
	Op    CompareOp
	Right Expr
}

func (*Comparison) exprNode() {}

// LogicalOp represents a boolean connective.
type LogicalOp string

// Logical operators.
const (
	LogicalAnd LogicalOp = "AND"
	LogicalOr  LogicalOp = "OR"
)

// Logical represents an AND/OR chain over two or more operands.
type Logical struct {
	Op       LogicalOp
	Operands []Expr
}

func (*Logical) exprNode() {}

// Not represents a NOT expression.
type Not struct {
	Operand Expr
}

func (*Not) exprNode() {}

// InList represents expr [NOT] IN (v1, v2, ...).
type InList struct {
	Target  Expr
	Values  []Expr
	Negated bool
}

func (*InList) exprNode() {}

// IsNull represents expr IS [NOT] NULL.
type IsNull struct {
	Target  Expr
	Negated bool
}

func (*IsNull) exprNode() {}

// BetweenRange represents expr BETWEEN low AND high.
type BetweenRange struct {
	Target Expr
	Low    Expr
	High   Expr
}

func (*BetweenRange) exprNode() {}

// AggregateFn identifies an aggregation function.
type AggregateFn string

// Aggregation functions supported by measures.
const (
	AggSum           AggregateFn = "SUM"
	AggCount         AggregateFn = "COUNT"
	AggCountDistinct AggregateFn = "COUNT_DISTINCT"
	AggAvg           AggregateFn = "AVG"
	AggMin           AggregateFn = "MIN"
	AggMax           AggregateFn = "MAX"
)

// AggregateCall represents an aggregation over an expression.
// COUNT_DISTINCT renders as COUNT(DISTINCT arg).
type AggregateCall struct {
	Fn  AggregateFn
	Arg Expr
}

func (*AggregateCall) exprNode() {}

// DateTrunc represents truncation of a time expression to a granularity.
// Rendering is dialect dependent.
type DateTrunc struct {
	Grain string
	Arg   Expr
}

func (*DateTrunc) exprNode() {}

// ArithmeticOp represents an arithmetic operator.
type ArithmeticOp string

// Arithmetic operators.
const (
	ArithAdd ArithmeticOp = "+"
	ArithSub ArithmeticOp = "-"
	ArithMul ArithmeticOp = "*"
	ArithDiv ArithmeticOp = "/"
)

// Arithmetic represents a binary arithmetic expression.
type Arithmetic struct {
	Left  Expr
	Op    ArithmeticOp
	Right Expr
}

func (*Arithmetic) exprNode() {}

// NullIf represents NULLIF(left, right). Ratio metrics use it to guard
// the denominator against division by zero.
type NullIf struct {
	Left  Expr
	Right Expr
}

func (*NullIf) exprNode() {}

// CastDouble represents CAST(arg AS DOUBLE).
type CastDouble struct {
	Arg Expr
}

func (*CastDouble) exprNode() {}

// RawExpr holds verbatim SQL for expressions the compiler does not model.
// Data source element exprs that fail structured parsing fall back to this.
type RawExpr struct {
	SQL string
}

func (*RawExpr) exprNode() {}

// RewriteColumnRefs returns a copy of expr with every column reference
// replaced by fn's result. The input expression is not mutated, so
// element expressions can be lowered more than once.
func RewriteColumnRefs(expr Expr, fn func(*ColumnRef) Expr) Expr {
	switch e := expr.(type) {
	case nil:
		return nil
	case *ColumnRef:
		return fn(e)
	case *Literal:
		cp := *e
		return &cp
	case *Comparison:
		return &Comparison{
			Left:  RewriteColumnRefs(e.Left, fn),
			Op:    e.Op,
			Right: RewriteColumnRefs(e.Right, fn),
		}
	case *Logical:
		operands := make([]Expr, 0, len(e.Operands))
		for _, op := range e.Operands {
			operands = append(operands, RewriteColumnRefs(op, fn))
		}
		return &Logical{Op: e.Op, Operands: operands}
	case *Not:
		return &Not{Operand: RewriteColumnRefs(e.Operand, fn)}
	case *InList:
		values := make([]Expr, 0, len(e.Values))
		for _, v := range e.Values {
			values = append(values, RewriteColumnRefs(v, fn))
		}
		return &InList{Target: RewriteColumnRefs(e.Target, fn), Values: values, Negated: e.Negated}
	case *IsNull:
		return &IsNull{Target: RewriteColumnRefs(e.Target, fn), Negated: e.Negated}
	case *BetweenRange:
		return &BetweenRange{
			Target: RewriteColumnRefs(e.Target, fn),
			Low:    RewriteColumnRefs(e.Low, fn),
			High:   RewriteColumnRefs(e.High, fn),
		}
	case *AggregateCall:
		return &AggregateCall{Fn: e.Fn, Arg: RewriteColumnRefs(e.Arg, fn)}
	case *DateTrunc:
		return &DateTrunc{Grain: e.Grain, Arg: RewriteColumnRefs(e.Arg, fn)}
	case *Arithmetic:
		return &Arithmetic{
			Left:  RewriteColumnRefs(e.Left, fn),
			Op:    e.Op,
			Right: RewriteColumnRefs(e.Right, fn),
		}
	case *NullIf:
		return &NullIf{Left: RewriteColumnRefs(e.Left, fn), Right: RewriteColumnRefs(e.Right, fn)}
	case *CastDouble:
		return &CastDouble{Arg: RewriteColumnRefs(e.Arg, fn)}
	case *RawExpr:
		cp := *e
		return &cp
	default:
		return expr
	}
}

// WalkColumnRefs calls fn for every column reference reachable from expr.
// It is used by the optimizer to account for columns a filter or join
// condition touches.
func WalkColumnRefs(expr Expr, fn func(*ColumnRef)) {
	switch e := expr.(type) {
	case nil:
		return
	case *ColumnRef:
		fn(e)
	case *Comparison:
		WalkColumnRefs(e.Left, fn)
		WalkColumnRefs(e.Right, fn)
	case *Logical:
		for _, op := range e.Operands {
			WalkColumnRefs(op, fn)
		}
	case *Not:
		WalkColumnRefs(e.Operand, fn)
	case *InList:
		WalkColumnRefs(e.Target, fn)
		for _, v := range e.Values {
			WalkColumnRefs(v, fn)
		}
	case *IsNull:
		WalkColumnRefs(e.Target, fn)
	case *BetweenRange:
		WalkColumnRefs(e.Target, fn)
		WalkColumnRefs(e.Low, fn)
		WalkColumnRefs(e.High, fn)
	case *AggregateCall:
		WalkColumnRefs(e.Arg, fn)
	case *DateTrunc:
		WalkColumnRefs(e.Arg, fn)
	case *Arithmetic:
		WalkColumnRefs(e.Left, fn)
		WalkColumnRefs(e.Right, fn)
	case *NullIf:
		WalkColumnRefs(e.Left, fn)
		WalkColumnRefs(e.Right, fn)
	case *CastDouble:
		WalkColumnRefs(e.Arg, fn)
	}
}
