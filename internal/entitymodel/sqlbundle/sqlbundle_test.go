package sqlbundle

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	for name, ddl := range map[string]string{"sqlite": SQLite(), "postgres": Postgres()} {
		stmts := SplitStatements(ddl)
		if len(stmts) != 4 {
			t.Fatalf("%s: expected 4 statements, got %d", name, len(stmts))
		}
		for _, stmt := range stmts {
			if strings.HasPrefix(stmt, "--") {
				t.Fatalf("%s: statement starts with comment: %q", name, stmt)
			}
			if !strings.HasSuffix(stmt, ";") {
				t.Fatalf("%s: statement missing terminator: %q", name, stmt)
			}
		}
		for _, table := range Tables {
			if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+table+" (") {
				t.Fatalf("%s: missing table %s", name, table)
			}
		}
		if !strings.Contains(ddl, "ON DELETE CASCADE") {
			t.Fatalf("%s: rows must cascade with their dataset", name)
		}
	}
}

func TestSplitStatementsKeepsUnterminatedTail(t *testing.T) {
	got := SplitStatements("-- c\nCREATE TABLE a (x int);\n\nSELECT 1")
	if len(got) != 2 || got[1] != "SELECT 1" {
		t.Fatalf("unexpected split %q", got)
	}
}
