package sqlparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tinydb-go/tinydb/internal/sqlast"
)

// Parser turns one SQL statement's token stream into an sqlast.Statement.
// It holds a one-token lookahead window, following the teacher's
// lexer/cur/peek structure but narrowed to this system's statement grammar.
type Parser struct {
	lx   *lexer
	cur  token
	peek token
}

// Parse parses a single SQL statement from sql. A trailing `;` and
// trailing whitespace/comments are tolerated; anything else left over
// after the statement is a syntax error.
func Parse(sql string) (sqlast.Statement, error) {
	p := &Parser{lx: newLexer(sql)}
	p.advance()
	p.advance()

	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	p.skipSemicolon()
	if p.cur.typ != tEOF {
		return nil, fmt.Errorf("sqlparser: unexpected trailing input near %q", p.cur.val)
	}
	return stmt, nil
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lx.nextToken()
}

func (p *Parser) skipSemicolon() {
	if p.cur.typ == tSymbol && p.cur.val == ";" {
		p.advance()
	}
}

func (p *Parser) atKeyword(kw string) bool {
	return p.cur.typ == tKeyword && p.cur.val == kw
}

func (p *Parser) atSymbol(sym string) bool {
	return p.cur.typ == tSymbol && p.cur.val == sym
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return fmt.Errorf("sqlparser: expected %s, got %q", kw, p.cur.val)
	}
	p.advance()
	return nil
}

func (p *Parser) expectSymbol(sym string) error {
	if !p.atSymbol(sym) {
		return fmt.Errorf("sqlparser: expected %q, got %q", sym, p.cur.val)
	}
	p.advance()
	return nil
}

func (p *Parser) expectIdent() (string, error) {
	if p.cur.typ != tIdent && p.cur.typ != tKeyword {
		return "", fmt.Errorf("sqlparser: expected identifier, got %q", p.cur.val)
	}
	v := p.cur.val
	p.advance()
	return v, nil
}

func (p *Parser) parseStatement() (sqlast.Statement, error) {
	switch {
	case p.atKeyword("CREATE"):
		return p.parseCreate()
	case p.atKeyword("DROP"):
		return p.parseDrop()
	case p.atKeyword("ALTER"):
		return p.parseAlterTable()
	case p.atKeyword("INSERT"):
		return p.parseInsert()
	case p.atKeyword("SELECT"):
		return p.parseSelect()
	case p.atKeyword("UPDATE"):
		return p.parseUpdate()
	case p.atKeyword("DELETE"):
		return p.parseDelete()
	case p.atKeyword("BEGIN"):
		p.advance()
		if p.atKeyword("TRANSACTION") {
			p.advance()
		}
		return &sqlast.Begin{}, nil
	case p.atKeyword("COMMIT"):
		p.advance()
		return &sqlast.Commit{}, nil
	case p.atKeyword("ROLLBACK"):
		p.advance()
		return &sqlast.Rollback{}, nil
	case p.atKeyword("SHOW"):
		return p.parseShow()
	case p.atKeyword("DESCRIBE"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &sqlast.Describe{Table: name}, nil
	case p.atKeyword("REINDEX"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &sqlast.Reindex{Table: name}, nil
	case p.atKeyword("EXPLAIN"):
		p.advance()
		inner, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		sel, ok := inner.(*sqlast.Select)
		if !ok {
			return nil, fmt.Errorf("sqlparser: EXPLAIN requires a SELECT")
		}
		return &sqlast.Explain{Inner: sel}, nil
	case p.atKeyword("PROFILE"):
		p.advance()
		inner, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return &sqlast.Profile{Inner: inner}, nil
	default:
		return nil, fmt.Errorf("sqlparser: unexpected token %q at start of statement", p.cur.val)
	}
}

// ── CREATE ──────────────────────────────────────────────────────────

func (p *Parser) parseCreate() (sqlast.Statement, error) {
	p.advance() // CREATE
	switch {
	case p.atKeyword("TABLE"):
		p.advance()
		return p.parseCreateTableBody()
	case p.atKeyword("UNIQUE"):
		p.advance()
		if err := p.expectKeyword("INDEX"); err != nil {
			return nil, err
		}
		return p.parseCreateIndexBody(true)
	case p.atKeyword("INDEX"):
		p.advance()
		return p.parseCreateIndexBody(false)
	default:
		return nil, fmt.Errorf("sqlparser: expected TABLE or INDEX after CREATE, got %q", p.cur.val)
	}
}

func (p *Parser) parseCreateTableBody() (*sqlast.CreateTable, error) {
	ct := &sqlast.CreateTable{}
	if p.atKeyword("IF") {
		p.advance()
		if err := p.expectKeyword("NOT"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("EXISTS"); err != nil {
			return nil, err
		}
		ct.IfNotExists = true
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	ct.Name = name

	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	for {
		if p.atKeyword("PRIMARY") {
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			cols, err := p.parseColumnList()
			if err != nil {
				return nil, err
			}
			ct.PrimaryKeyColumns = cols
		} else if p.atKeyword("FOREIGN") {
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			cols, err := p.parseColumnList()
			if err != nil {
				return nil, err
			}
			if len(cols) != 1 {
				return nil, fmt.Errorf("sqlparser: FOREIGN KEY supports exactly one column")
			}
			if err := p.expectKeyword("REFERENCES"); err != nil {
				return nil, err
			}
			refTable, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			refCols, err := p.parseColumnList()
			if err != nil {
				return nil, err
			}
			if len(refCols) != 1 {
				return nil, fmt.Errorf("sqlparser: REFERENCES supports exactly one column")
			}
			fk := sqlast.ForeignKeyDef{Column: cols[0], RefTable: refTable, RefColumn: refCols[0], OnDelete: "RESTRICT"}
			if p.atKeyword("ON") {
				p.advance()
				if err := p.expectKeyword("DELETE"); err != nil {
					return nil, err
				}
				switch {
				case p.atKeyword("CASCADE"):
					p.advance()
					fk.OnDelete = "CASCADE"
				case p.atKeyword("RESTRICT"):
					p.advance()
					fk.OnDelete = "RESTRICT"
				default:
					return nil, fmt.Errorf("sqlparser: expected CASCADE or RESTRICT, got %q", p.cur.val)
				}
			}
			ct.ForeignKeys = append(ct.ForeignKeys, fk)
		} else if p.atKeyword("CHECK") {
			p.advance()
			expr, err := p.parseParenExprText()
			if err != nil {
				return nil, err
			}
			ct.CheckExprs = append(ct.CheckExprs, expr)
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			ct.Columns = append(ct.Columns, col)
		}

		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return ct, nil
}

func (p *Parser) parseColumnList() ([]string, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		c, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return cols, nil
}

// parseParenExprText captures the raw text of a `(...)` expression for
// later use by the CHECK-expression evaluator, without attempting to
// understand it here.
func (p *Parser) parseParenExprText() (string, error) {
	if err := p.expectSymbol("("); err != nil {
		return "", err
	}
	var parts []string
	depth := 1
	for depth > 0 {
		if p.cur.typ == tEOF {
			return "", fmt.Errorf("sqlparser: unterminated expression")
		}
		if p.atSymbol("(") {
			depth++
		} else if p.atSymbol(")") {
			depth--
			if depth == 0 {
				p.advance()
				break
			}
		}
		parts = append(parts, p.tokenText())
		p.advance()
	}
	return strings.Join(parts, " "), nil
}

func (p *Parser) tokenText() string {
	if p.cur.typ == tString {
		return "'" + strings.ReplaceAll(p.cur.val, "'", "''") + "'"
	}
	return p.cur.val
}

func (p *Parser) parseColumnDef() (sqlast.ColumnDef, error) {
	var col sqlast.ColumnDef
	name, err := p.expectIdent()
	if err != nil {
		return col, err
	}
	col.Name = name

	dt, err := p.expectIdent()
	if err != nil {
		return col, err
	}
	col.DataType = strings.ToUpper(dt)

	for {
		switch {
		case p.atKeyword("PRIMARY"):
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return col, err
			}
			col.PrimaryKey = true
		case p.atKeyword("AUTOINCREMENT"):
			p.advance()
			col.AutoIncrement = true
		case p.atKeyword("NOT"):
			p.advance()
			if err := p.expectKeyword("NULL"); err != nil {
				return col, err
			}
			col.NotNull = true
		case p.atKeyword("NULL"):
			p.advance()
		case p.atKeyword("UNIQUE"):
			p.advance()
			col.Unique = true
		case p.atKeyword("DEFAULT"):
			p.advance()
			v, err := p.parseLiteral()
			if err != nil {
				return col, err
			}
			col.Default = v
			col.HasDefault = true
		case p.atKeyword("CHECK"):
			p.advance()
			expr, err := p.parseParenExprText()
			if err != nil {
				return col, err
			}
			col.CheckExprs = append(col.CheckExprs, expr)
		default:
			return col, nil
		}
	}
}

func (p *Parser) parseCreateIndexBody(unique bool) (*sqlast.CreateIndex, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseColumnList()
	if err != nil {
		return nil, err
	}
	return &sqlast.CreateIndex{Name: name, Table: table, Columns: cols, Unique: unique}, nil
}

// ── DROP / ALTER ────────────────────────────────────────────────────

func (p *Parser) parseDrop() (sqlast.Statement, error) {
	p.advance() // DROP
	switch {
	case p.atKeyword("TABLE"):
		p.advance()
		ifExists := false
		if p.atKeyword("IF") {
			p.advance()
			if err := p.expectKeyword("EXISTS"); err != nil {
				return nil, err
			}
			ifExists = true
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &sqlast.DropTable{Name: name, IfExists: ifExists}, nil
	case p.atKeyword("INDEX"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &sqlast.DropIndex{Name: name}, nil
	default:
		return nil, fmt.Errorf("sqlparser: expected TABLE or INDEX after DROP, got %q", p.cur.val)
	}
}

func (p *Parser) parseAlterTable() (sqlast.Statement, error) {
	p.advance() // ALTER
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	at := &sqlast.AlterTable{Table: table}

	switch {
	case p.atKeyword("RENAME"):
		p.advance()
		if p.atKeyword("TO") {
			p.advance()
			newName, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			at.Kind = sqlast.AlterRenameTable
			at.NewTableName = newName
			return at, nil
		}
		if p.atKeyword("COLUMN") {
			p.advance()
		}
		oldName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("TO"); err != nil {
			return nil, err
		}
		newName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		at.Kind = sqlast.AlterRenameColumn
		at.OldColumnName = oldName
		at.NewColumnName = newName
		return at, nil
	case p.atKeyword("ADD"):
		p.advance()
		if p.atKeyword("COLUMN") {
			p.advance()
		}
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		at.Kind = sqlast.AlterAddColumn
		at.AddColumn = &col
		return at, nil
	case p.atKeyword("REMOVE"):
		p.advance()
		if p.atKeyword("COLUMN") {
			p.advance()
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		at.Kind = sqlast.AlterRemoveColumn
		at.RemoveColumnName = name
		return at, nil
	default:
		return nil, fmt.Errorf("sqlparser: unsupported ALTER TABLE form near %q", p.cur.val)
	}
}

// ── INSERT ──────────────────────────────────────────────────────────

func (p *Parser) parseInsert() (sqlast.Statement, error) {
	p.advance() // INSERT
	ins := &sqlast.Insert{}
	if p.atKeyword("OR") {
		p.advance()
		if err := p.expectKeyword("REPLACE"); err != nil {
			return nil, err
		}
		ins.OrReplace = true
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	ins.Table = table

	if p.atSymbol("(") {
		cols, err := p.parseColumnList()
		if err != nil {
			return nil, err
		}
		ins.Columns = cols
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	for {
		row, err := p.parseValueTuple()
		if err != nil {
			return nil, err
		}
		ins.Values = append(ins.Values, row)
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	return ins, nil
}

func (p *Parser) parseValueTuple() ([]any, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var vals []any
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return vals, nil
}

func (p *Parser) parseLiteral() (any, error) {
	neg := false
	if p.atSymbol("-") {
		neg = true
		p.advance()
	}
	switch p.cur.typ {
	case tNumber:
		s := p.cur.val
		p.advance()
		if strings.Contains(s, ".") {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("sqlparser: bad number %q: %w", s, err)
			}
			if neg {
				f = -f
			}
			return f, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("sqlparser: bad number %q: %w", s, err)
		}
		if neg {
			n = -n
		}
		return n, nil
	case tString:
		v := p.cur.val
		p.advance()
		return v, nil
	case tParam:
		p.advance()
		return sqlast.Param{}, nil
	case tKeyword:
		switch p.cur.val {
		case "NULL":
			p.advance()
			return nil, nil
		case "TRUE":
			p.advance()
			return true, nil
		case "FALSE":
			p.advance()
			return false, nil
		}
	}
	return nil, fmt.Errorf("sqlparser: expected a literal value, got %q", p.cur.val)
}

// ── SELECT ──────────────────────────────────────────────────────────

func (p *Parser) parseSelect() (sqlast.Statement, error) {
	p.advance() // SELECT
	sel := &sqlast.Select{}
	if p.atKeyword("DISTINCT") {
		p.advance()
		sel.Distinct = true
	}

	items, err := p.parseSelectItems()
	if err != nil {
		return nil, err
	}
	sel.Columns = items

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	sel.Table = table

	for p.atKeyword("JOIN") || p.atKeyword("INNER") || p.atKeyword("LEFT") {
		jt := sqlast.JoinInner
		if p.atKeyword("LEFT") {
			jt = sqlast.JoinLeft
			p.advance()
			if p.atKeyword("JOIN") {
				p.advance()
			}
		} else if p.atKeyword("INNER") {
			p.advance()
			if err := p.expectKeyword("JOIN"); err != nil {
				return nil, err
			}
		} else {
			p.advance() // JOIN
		}
		jtable, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		lcol, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("."); err == nil {
			lcol2, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			lcol = lcol + "." + lcol2
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		rcol, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("."); err == nil {
			rcol2, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			rcol = rcol + "." + rcol2
		}
		sel.Joins = append(sel.Joins, sqlast.JoinClause{Type: jt, Table: jtable, LeftColumn: lcol, RightColumn: rcol})
	}

	if p.atKeyword("WHERE") {
		p.advance()
		wc, err := p.parseWhereClause()
		if err != nil {
			return nil, err
		}
		sel.Where = wc
	}

	if p.atKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if p.atSymbol(".") {
				p.advance()
				c2, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				c = c + "." + c2
			}
			sel.GroupBy = append(sel.GroupBy, c)
			if p.atSymbol(",") {
				p.advance()
				continue
			}
			break
		}
	}

	if p.atKeyword("HAVING") {
		p.advance()
		wc, err := p.parseWhereClause()
		if err != nil {
			return nil, err
		}
		sel.Having = wc
	}

	if p.atKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			item := sqlast.OrderItem{Column: c}
			if p.atKeyword("DESC") {
				p.advance()
				item.Desc = true
			} else if p.atKeyword("ASC") {
				p.advance()
			}
			sel.OrderBy = append(sel.OrderBy, item)
			if p.atSymbol(",") {
				p.advance()
				continue
			}
			break
		}
	}

	if p.atKeyword("LIMIT") {
		p.advance()
		n, err := p.expectIntLiteral()
		if err != nil {
			return nil, err
		}
		sel.Limit = &n
		if p.atKeyword("OFFSET") {
			p.advance()
			o, err := p.expectIntLiteral()
			if err != nil {
				return nil, err
			}
			sel.Offset = &o
		}
	}

	return sel, nil
}

func (p *Parser) expectIntLiteral() (int, error) {
	if p.cur.typ != tNumber {
		return 0, fmt.Errorf("sqlparser: expected a number, got %q", p.cur.val)
	}
	n, err := strconv.Atoi(p.cur.val)
	if err != nil {
		return 0, fmt.Errorf("sqlparser: bad integer %q: %w", p.cur.val, err)
	}
	p.advance()
	return n, nil
}

var aggFuncs = map[string]bool{"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true, "ROUND": true}

func (p *Parser) parseSelectItems() ([]sqlast.SelectItem, error) {
	var items []sqlast.SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseSelectItem() (sqlast.SelectItem, error) {
	var item sqlast.SelectItem
	if p.atSymbol("*") {
		p.advance()
		item.Expr = "*"
		return item, p.parseAlias(&item)
	}

	if p.cur.typ == tKeyword && aggFuncs[p.cur.val] {
		fn := p.cur.val
		p.advance()
		if err := p.expectSymbol("("); err != nil {
			return item, err
		}
		item.Func = fn
		if p.atKeyword("DISTINCT") {
			p.advance()
			item.Distinct = true
		}
		if p.atSymbol("*") {
			p.advance()
			item.ArgStar = true
		} else {
			for {
				arg, err := p.parseExprText()
				if err != nil {
					return item, err
				}
				item.Args = append(item.Args, arg)
				if p.atSymbol(",") {
					p.advance()
					continue
				}
				break
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return item, err
		}
		return item, p.parseAlias(&item)
	}

	col, err := p.expectIdent()
	if err != nil {
		return item, err
	}
	if p.atSymbol(".") {
		p.advance()
		col2, err := p.expectIdent()
		if err != nil {
			return item, err
		}
		col = col + "." + col2
	}
	item.Expr = col
	return item, p.parseAlias(&item)
}

func (p *Parser) parseAlias(item *sqlast.SelectItem) error {
	if p.atKeyword("AS") {
		p.advance()
		a, err := p.expectIdent()
		if err != nil {
			return err
		}
		item.Alias = a
	}
	return nil
}

// parseExprText captures one CASE-or-column argument as raw text for a
// function call argument, resolved later by the executor.
func (p *Parser) parseExprText() (string, error) {
	if p.atKeyword("CASE") {
		var parts []string
		depth := 0
		for {
			if p.cur.typ == tEOF {
				return "", fmt.Errorf("sqlparser: unterminated CASE expression")
			}
			if p.atKeyword("CASE") {
				depth++
			}
			parts = append(parts, p.tokenText())
			done := p.atKeyword("END")
			p.advance()
			if done {
				depth--
				if depth == 0 {
					break
				}
			}
		}
		return strings.Join(parts, " "), nil
	}
	if p.cur.typ == tNumber {
		n := p.cur.val
		p.advance()
		return n, nil
	}
	if p.cur.typ == tKeyword && aggFuncs[p.cur.val] {
		fn := p.cur.val
		p.advance()
		if err := p.expectSymbol("("); err != nil {
			return "", err
		}
		var inner string
		if p.atSymbol("*") {
			p.advance()
			inner = "*"
		} else {
			var err error
			inner, err = p.parseExprText()
			if err != nil {
				return "", err
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return "", err
		}
		return fn + "(" + inner + ")", nil
	}
	name, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	if p.atSymbol(".") {
		p.advance()
		name2, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		name = name + "." + name2
	}
	return name, nil
}

// ── WHERE / HAVING ──────────────────────────────────────────────────

func (p *Parser) parseWhereClause() (*sqlast.WhereClause, error) {
	wc := &sqlast.WhereClause{}
	group, err := p.parseAndGroup()
	if err != nil {
		return nil, err
	}
	wc.Groups = append(wc.Groups, group)
	for p.atKeyword("OR") {
		p.advance()
		group, err := p.parseAndGroup()
		if err != nil {
			return nil, err
		}
		wc.Groups = append(wc.Groups, group)
	}
	return wc, nil
}

func (p *Parser) parseAndGroup() ([]sqlast.Predicate, error) {
	var preds []sqlast.Predicate
	pred, err := p.parsePredicate()
	if err != nil {
		return nil, err
	}
	preds = append(preds, pred)
	for p.atKeyword("AND") {
		p.advance()
		pred, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

func (p *Parser) parsePredicate() (sqlast.Predicate, error) {
	var pred sqlast.Predicate
	var col string
	var err error
	if p.cur.typ == tKeyword && aggFuncs[p.cur.val] && p.peek.typ == tSymbol && p.peek.val == "(" {
		// HAVING's `SUM(amount) > 100`: keep the call as text for the executor.
		col, err = p.parseExprText()
	} else {
		col, err = p.expectIdent()
	}
	if err != nil {
		return pred, err
	}
	if p.atSymbol(".") {
		p.advance()
		col2, err := p.expectIdent()
		if err != nil {
			return pred, err
		}
		col = col + "." + col2
	}
	pred.Column = col

	switch {
	case p.atKeyword("IS"):
		p.advance()
		if p.atKeyword("NOT") {
			p.advance()
			if err := p.expectKeyword("NULL"); err != nil {
				return pred, err
			}
			pred.Op = sqlast.OpIsNotNull
			return pred, nil
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return pred, err
		}
		pred.Op = sqlast.OpIsNull
		return pred, nil
	case p.atKeyword("BETWEEN"):
		p.advance()
		lo, err := p.parseLiteral()
		if err != nil {
			return pred, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return pred, err
		}
		hi, err := p.parseLiteral()
		if err != nil {
			return pred, err
		}
		pred.Op = sqlast.OpBetween
		pred.Value = [2]any{lo, hi}
		return pred, nil
	case p.atKeyword("LIKE"):
		p.advance()
		v, err := p.parseLiteral()
		if err != nil {
			return pred, err
		}
		pred.Op = sqlast.OpLike
		pred.Value = v
		return pred, nil
	case p.atKeyword("IN"):
		p.advance()
		return p.parseInPredicate(pred, sqlast.OpIn, sqlast.OpInSubquery)
	case p.atKeyword("NOT"):
		p.advance()
		if err := p.expectKeyword("IN"); err != nil {
			return pred, err
		}
		return p.parseInPredicate(pred, sqlast.OpNotIn, sqlast.OpNotInSubquery)
	}

	op, err := p.parseComparisonOp()
	if err != nil {
		return pred, err
	}
	if p.atSymbol("(") {
		// `col = (SELECT ...)` scalar subquery comparison.
		savedCur, savedPeek, savedLxPos := p.cur, p.peek, p.lx.pos
		p.advance()
		if p.atKeyword("SELECT") {
			sub, err := p.parseSelect()
			if err != nil {
				return pred, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return pred, err
			}
			if op != sqlast.OpEq {
				return pred, fmt.Errorf("sqlparser: only = is supported against a scalar subquery")
			}
			pred.Op = sqlast.OpEqSubquery
			pred.Subquery = sub.(*sqlast.Select)
			return pred, nil
		}
		p.cur, p.peek, p.lx.pos = savedCur, savedPeek, savedLxPos
	}
	v, err := p.parseLiteral()
	if err != nil {
		return pred, err
	}
	pred.Op = op
	pred.Value = v
	return pred, nil
}

func (p *Parser) parseInPredicate(pred sqlast.Predicate, listOp, subqueryOp sqlast.Op) (sqlast.Predicate, error) {
	if err := p.expectSymbol("("); err != nil {
		return pred, err
	}
	if p.atKeyword("SELECT") {
		sub, err := p.parseSelect()
		if err != nil {
			return pred, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return pred, err
		}
		pred.Op = subqueryOp
		pred.Subquery = sub.(*sqlast.Select)
		return pred, nil
	}
	var vals []any
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return pred, err
		}
		vals = append(vals, v)
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return pred, err
	}
	pred.Op = listOp
	pred.Value = vals
	return pred, nil
}

func (p *Parser) parseComparisonOp() (sqlast.Op, error) {
	if p.cur.typ != tSymbol {
		return "", fmt.Errorf("sqlparser: expected a comparison operator, got %q", p.cur.val)
	}
	switch p.cur.val {
	case "=":
		p.advance()
		return sqlast.OpEq, nil
	case "!=", "<>":
		p.advance()
		return sqlast.OpNeq, nil
	case "<":
		p.advance()
		return sqlast.OpLt, nil
	case "<=":
		p.advance()
		return sqlast.OpLte, nil
	case ">":
		p.advance()
		return sqlast.OpGt, nil
	case ">=":
		p.advance()
		return sqlast.OpGte, nil
	default:
		return "", fmt.Errorf("sqlparser: unknown comparison operator %q", p.cur.val)
	}
}

// ── UPDATE / DELETE ─────────────────────────────────────────────────

func (p *Parser) parseUpdate() (sqlast.Statement, error) {
	p.advance() // UPDATE
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	upd := &sqlast.Update{Table: table}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		upd.Assignments = append(upd.Assignments, sqlast.Assignment{Column: col, Value: v})
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if p.atKeyword("WHERE") {
		p.advance()
		wc, err := p.parseWhereClause()
		if err != nil {
			return nil, err
		}
		upd.Where = wc
	}
	return upd, nil
}

func (p *Parser) parseDelete() (sqlast.Statement, error) {
	p.advance() // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	del := &sqlast.Delete{Table: table}
	if p.atKeyword("WHERE") {
		p.advance()
		wc, err := p.parseWhereClause()
		if err != nil {
			return nil, err
		}
		del.Where = wc
	}
	return del, nil
}

// ── SHOW ────────────────────────────────────────────────────────────

func (p *Parser) parseShow() (sqlast.Statement, error) {
	p.advance() // SHOW
	switch {
	case p.atKeyword("TABLES"):
		p.advance()
		return &sqlast.ShowTables{}, nil
	case p.atKeyword("INDEXES"):
		p.advance()
		if p.cur.typ == tIdent {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return &sqlast.ShowIndexes{Table: name}, nil
		}
		return &sqlast.ShowIndexes{}, nil
	case p.atKeyword("STATS"):
		p.advance()
		return &sqlast.ShowStats{}, nil
	default:
		return nil, fmt.Errorf("sqlparser: expected TABLES, INDEXES, or STATS after SHOW, got %q", p.cur.val)
	}
}
