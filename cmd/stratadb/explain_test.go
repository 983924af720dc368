package main

import (
	"strings"
	"testing"

	"github.com/strata-db/stratadb/pkg/engine"
	"github.com/strata-db/stratadb/pkg/engine/dialect"
)

func TestSampleAccountRendersForEveryDialect(t *testing.T) {
	eng := engine.New(dialect.Postgres{}, engine.Options{})
	eng.MustRegister(sampleAccount{}, "", "accounts")

	for _, name := range dialect.Names() {
		d, err := dialect.Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		stmts, err := eng.Statements(sampleAccount{}, d)
		if err != nil {
			t.Fatalf("Statements(%s): %v", name, err)
		}
		if !strings.HasPrefix(stmts.Insert, "INSERT INTO ") {
			t.Errorf("%s: unexpected insert %q", name, stmts.Insert)
		}
		if !strings.Contains(stmts.Insert, "row_version") {
			t.Errorf("%s: version column should be insertable, got %q", name, stmts.Insert)
		}
		if strings.Contains(stmts.Insert, "(id") {
			t.Errorf("%s: generated identity should be excluded from inserts: %q", name, stmts.Insert)
		}
		if !strings.Contains(stmts.Update, "<set>") || !strings.Contains(stmts.Update, "<where>") {
			t.Errorf("%s: update skeleton missing placeholders: %q", name, stmts.Update)
		}
	}
}

func TestExplainFlagSelectsSingleDialect(t *testing.T) {
	rootCmd.SetArgs([]string{"explain", "--dialect", "mysql"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("explain --dialect mysql: %v", err)
	}
}
