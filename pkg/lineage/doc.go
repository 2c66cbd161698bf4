// Package lineage extracts table and column lineage from SQL.
//
// Table lineage is produced per statement by a StatementParser chosen once
// per data source:
//
//	p, err := lineage.NewStatementParser(lineage.DialectSnowflake, lineage.Profile{
//	    Database: "analytics",
//	    Schema:   "public",
//	})
//	if err != nil {
//	    // misconfigured profile or dialect
//	}
//	stmt, err := p.Parse("insert into t select * from s", lineage.NewQueryContext())
//
// Every table name in a ParsedStatement has already been qualified and scope
// checked by a TableResolver; out-of-scope names never appear.
//
// Column lineage is produced per compiled model by a ColumnLineageResolver,
// which traces each output column through CTEs, derived tables, joins and
// wildcards back to the upstream columns recorded in a Catalog.
package lineage
