package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/strata-db/stratadb/pkg/engine"
	"github.com/strata-db/stratadb/pkg/engine/dialect"
)

var explainDialect string

// sampleAccount exercises the full column-role surface so explain output
// shows identity handling, audit columns, and version increments.
type sampleAccount struct {
	ID        int64     `db:"id,identity"`
	Email     string    `db:"email"`
	Balance   string    `db:"balance,type=decimal"`
	Version   int64     `db:"row_version,version"`
	CreatedOn time.Time `db:"created_on,createdon"`
	CreatedBy string    `db:"created_by,createdby"`
	UpdatedOn time.Time `db:"updated_on,updatedon"`
	UpdatedBy string    `db:"updated_by,updatedby"`
}

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Show the SQL a registered entity compiles to",
	Long: `Render the compiled statement set of a sample entity per dialect.

Examples:
  stratadb explain                    # every registered dialect
  stratadb explain --dialect postgres`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := dialect.Names()
		if explainDialect != "" {
			names = []string{explainDialect}
		}

		// Statement rendering needs no connection; build an engine for
		// the first dialect and specialize per requested dialect.
		first, err := dialect.Get(names[0])
		if err != nil {
			printError("%v", err)
			return err
		}
		eng := engine.New(first, engine.Options{})
		eng.MustRegister(sampleAccount{}, "", "accounts")

		for _, name := range names {
			d, err := dialect.Get(name)
			if err != nil {
				printError("%v", err)
				return err
			}
			stmts, err := eng.Statements(sampleAccount{}, d)
			if err != nil {
				printError("%v", err)
				return err
			}
			printStatements(stmts)
		}
		return nil
	},
}

func init() {
	explainCmd.Flags().StringVar(&explainDialect, "dialect", "", "render a single dialect")
	rootCmd.AddCommand(explainCmd)
}

func printStatements(s engine.Statements) {
	fmt.Println(color.New(color.Bold).Sprintf("── %s ──", s.Dialect))
	printStatement("insert", s.Insert)
	if s.InsertReturning != s.Insert {
		printStatement("insert+returning", s.InsertReturning)
	}
	printStatement("update", s.Update)
	printStatement("delete", s.Delete)
	printStatement("select", s.Select)
	fmt.Println()
}

func printStatement(label, sql string) {
	fmt.Printf("  %s\n    %s\n", color.CyanString("%s:", label), sql)
}
