package tablestore

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	_ "github.com/pingcap/tidb/parser/test_driver"
)

// ValidateWhere parses a user-supplied WHERE clause before it is embedded
// in a CREATE VIEW statement. The clause is wrapped in a SELECT and must
// parse as exactly one SELECT statement, which rules out statement
// injection ("1; DROP TABLE x") and non-expression constructs.
func ValidateWhere(where string) error {
	where = strings.TrimSpace(where)
	if where == "" {
		return fmt.Errorf("empty filter expression")
	}
	if strings.Contains(where, ";") {
		return fmt.Errorf("filter expression must be a single condition")
	}

	p := parser.New()
	stmtNodes, _, err := p.Parse(fmt.Sprintf("SELECT * FROM t WHERE %s", where), "", "")
	if err != nil {
		return fmt.Errorf("invalid filter expression: %w", err)
	}
	if len(stmtNodes) != 1 {
		return fmt.Errorf("filter expression must be a single condition")
	}
	sel, ok := stmtNodes[0].(*ast.SelectStmt)
	if !ok {
		return fmt.Errorf("expected condition expression, got %T", stmtNodes[0])
	}
	if sel.Where == nil {
		return fmt.Errorf("filter expression is not a condition")
	}
	return nil
}
