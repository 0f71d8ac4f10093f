// Package sqlrender renders a SQL query plan to SQL text.
//
// The layout is fixed so snapshot comparison stays stable: node
// description comments above each SELECT, two-space indentation,
// leading-comma column lists, sub-queries parenthesized with the alias
// on the closing line.
package sqlrender

import (
	"bytes"
	"strings"
)

const indentSize = 2

// printer handles SQL output with indentation tracking.
type printer struct {
	output      *bytes.Buffer
	depth       int
	atLineStart bool
}

func newPrinter() *printer {
	return &printer{
		output:      &bytes.Buffer{},
		atLineStart: true,
	}
}

// String returns the rendered output with a single trailing newline.
func (p *printer) String() string {
	return strings.TrimRight(p.output.String(), "\n") + "\n"
}

func (p *printer) write(s string) {
	if p.atLineStart && len(s) > 0 && s[0] != '\n' {
		p.writeIndent()
	}
	p.output.WriteString(s)
	p.atLineStart = false
}

func (p *printer) writeln() {
	p.output.WriteByte('\n')
	p.atLineStart = true
}

func (p *printer) writeIndent() {
	for i := 0; i < p.depth*indentSize; i++ {
		p.output.WriteByte(' ')
	}
	p.atLineStart = false
}

func (p *printer) indent() {
	p.depth++
}

func (p *printer) dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

// comment writes one "-- " comment line.
func (p *printer) comment(text string) {
	p.write("-- " + text)
	p.writeln()
}
