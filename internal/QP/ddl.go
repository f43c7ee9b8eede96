package QP

import (
	"fmt"
	"strings"
)

// Statement is a host-level statement the pivot host executes itself.
type Statement interface {
	stmtNode()
}

// CreateVirtualTableStmt is CREATE VIRTUAL TABLE [IF NOT EXISTS] name USING module[(arg, ...)].
type CreateVirtualTableStmt struct {
	IfNotExists bool
	TableName   string
	ModuleName  string
	ModuleArgs  []string
}

// DropTableStmt is DROP TABLE [IF EXISTS] name.
type DropTableStmt struct {
	IfExists  bool
	TableName string
}

// RenameTableStmt is ALTER TABLE name RENAME TO newname.
type RenameTableStmt struct {
	TableName string
	NewName   string
}

func (*CreateVirtualTableStmt) stmtNode() {}
func (*DropTableStmt) stmtNode()          {}
func (*RenameTableStmt) stmtNode()        {}

type ddlParser struct {
	sql    string
	tokens []Token
	pos    int
}

// ParseHostStatement recognizes the statements a virtual-table host must
// intercept. It returns (nil, nil) for anything else so the caller can pass
// the text through to the engine unchanged.
func ParseHostStatement(sql string) (Statement, error) {
	tokens, err := NewTokenizer(sql).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &ddlParser{sql: sql, tokens: tokens}
	switch {
	case p.keyword("CREATE") && p.peekKeyword(1, "VIRTUAL"):
		p.pos += 2
		return p.parseCreateVirtualTable()
	case p.keyword("DROP") && p.peekKeyword(1, "TABLE"):
		p.pos += 2
		return p.parseDropTable()
	case p.keyword("ALTER") && p.peekKeyword(1, "TABLE"):
		p.pos += 2
		return p.parseAlterTable()
	}
	return nil, nil
}

func (p *ddlParser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *ddlParser) keyword(kw string) bool {
	return p.peekKeyword(0, kw)
}

func (p *ddlParser) peekKeyword(offset int, kw string) bool {
	i := p.pos + offset
	if i >= len(p.tokens) {
		return false
	}
	tok := p.tokens[i]
	return tok.Type == TokenIdentifier && strings.EqualFold(tok.Literal, kw)
}

func (p *ddlParser) expectKeyword(kw string) error {
	if !p.keyword(kw) {
		return fmt.Errorf("expected %s, got %q", kw, p.current().Literal)
	}
	p.pos++
	return nil
}

// name reads an optionally schema-qualified, optionally quoted name. The
// schema qualifier is dropped.
func (p *ddlParser) name() (string, error) {
	tok := p.current()
	if tok.Type != TokenIdentifier && tok.Type != TokenQuotedIdentifier && tok.Type != TokenString {
		return "", fmt.Errorf("expected name, got %q", tok.Literal)
	}
	p.pos++
	if p.current().Type == TokenDot {
		p.pos++
		return p.name()
	}
	return Unquote(tok.Literal), nil
}

func (p *ddlParser) end() error {
	if p.current().Type == TokenSemicolon {
		p.pos++
	}
	if p.current().Type != TokenEOF {
		return fmt.Errorf("unexpected %q after statement", p.current().Literal)
	}
	return nil
}

func (p *ddlParser) parseCreateVirtualTable() (Statement, error) {
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	stmt := &CreateVirtualTableStmt{}
	if p.keyword("IF") && p.peekKeyword(1, "NOT") && p.peekKeyword(2, "EXISTS") {
		stmt.IfNotExists = true
		p.pos += 3
	}
	var err error
	if stmt.TableName, err = p.name(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("USING"); err != nil {
		return nil, err
	}
	if stmt.ModuleName, err = p.name(); err != nil {
		return nil, err
	}

	if p.current().Type == TokenLeftParen {
		open := p.current().Location
		depth := 0
		for ; p.pos < len(p.tokens); p.pos++ {
			tok := p.tokens[p.pos]
			if tok.Type == TokenLeftParen {
				depth++
			} else if tok.Type == TokenRightParen {
				depth--
				if depth == 0 {
					args, err := SplitArgs(p.sql[open+1 : tok.Location])
					if err != nil {
						return nil, err
					}
					stmt.ModuleArgs = args
					p.pos++
					break
				}
			} else if tok.Type == TokenEOF {
				return nil, fmt.Errorf("unterminated module argument list")
			}
		}
	}
	return stmt, p.end()
}

func (p *ddlParser) parseDropTable() (Statement, error) {
	stmt := &DropTableStmt{}
	if p.keyword("IF") && p.peekKeyword(1, "EXISTS") {
		stmt.IfExists = true
		p.pos += 2
	}
	var err error
	if stmt.TableName, err = p.name(); err != nil {
		return nil, err
	}
	return stmt, p.end()
}

func (p *ddlParser) parseAlterTable() (Statement, error) {
	stmt := &RenameTableStmt{}
	var err error
	if stmt.TableName, err = p.name(); err != nil {
		return nil, err
	}
	// Only RENAME TO is intercepted; other ALTERs go to the engine.
	if !p.keyword("RENAME") || !p.peekKeyword(1, "TO") {
		return nil, nil
	}
	p.pos += 2
	if stmt.NewName, err = p.name(); err != nil {
		return nil, err
	}
	return stmt, p.end()
}
