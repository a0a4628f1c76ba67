// Package qcsv runs SQL queries against CSV and other tabular files without
// importing them into a database first.
//
// A query is written as a template. The literal placeholder {csv} stands for
// the input file and is replaced with a quoted reference to it:
//
//	SELECT gameid, league FROM read_csv_auto('{csv}') LIMIT 10
//
// Table functions in the style of DuckDB (read_csv_auto, read_csv, read_ltsv,
// read_parquet, parquet_scan and read_xlsx) are expanded into tables of an
// in-memory SQLite database. The referenced file is loaded into the table with
// column types inferred from a sample of its rows. A quoted file name directly
// after FROM or JOIN is expanded the same way:
//
//	SELECT COUNT(*) FROM 'players.csv.gz'
//
// Compressed input (gzip, bzip2, xz, zstandard) is detected from the file
// extension.
//
// # Basic Usage
//
//	path, err := qcsv.Resolve("players.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	query, err := qcsv.Substitute("SELECT * FROM read_csv_auto('{csv}') LIMIT 5", path, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine, err := qcsv.Open(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	rs, err := engine.Query(ctx, query)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Sanitized Column Names
//
// Column names such as "Game ID" need quoting in SQL. Passing a column mapping
// from model.SanitizeIdentifiers to Substitute wraps every file reference in a
// subquery that aliases each original column to a bare identifier, so the
// query can use game_id instead of "Game ID".
//
// # Error Handling
//
// Errors wrap the sentinel values declared in this package. Use errors.Is to
// tell a missing file (ErrFileNotFound) or a bad template (ErrQueryTemplate)
// apart, and errors.As with *QueryError for failures reported by the engine.
package qcsv
