package stdlib

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

const sqlLocked = "Big Error: SQL engine is locked! You must write 'use sql' at the start of your file."

// registerSQL registers the statement form of the SQL verb. "run sql"
// dispatches here with i on "sql"; "get sql" goes through get.
func (r *Registry) registerSQL() {
	r.Register(token.Sql, sqlExec)
}

// sqlStatement parses `"query" on "db"` after the sql token at toks[*i].
func sqlStatement(h types.Host, i *int, toks []token.Token) (query, db string, end int, ok bool) {
	if !h.Enabled("sql") {
		fmt.Fprintln(h.Stdout(), sqlLocked)
		abandon(i, toks)
		return "", "", 0, false
	}
	query, end = text(h, toks, *i+1)
	if peek(toks, end+1).Kind != token.On {
		abandon(i, toks)
		return "", "", 0, false
	}
	db, end = text(h, toks, end+2)
	return query, db, end, true
}

func openDB(path string) (*sqlite.Conn, error) {
	return sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
}

// sqlExec runs a statement and discards its rows: run sql "q" on "db".
func sqlExec(h types.Host, i *int, toks []token.Token) {
	query, db, end, ok := sqlStatement(h, i, toks)
	if !ok {
		return
	}
	*i = end
	conn, err := openDB(db)
	if err != nil {
		h.RaiseBug(fmt.Sprintf("SQL Error: Failed to open database. %v", err))
		return
	}
	defer conn.Close()
	if err := sqlitex.ExecuteTransient(conn, query, nil); err != nil {
		h.RaiseBug(fmt.Sprintf("SQL Error: Run Failed - %v", err))
	}
}

// sqlQuery collects the first column of every row:
// get sql "q" on "db" & set as list {Rows}.
func sqlQuery(h types.Host, i *int, toks []token.Token) {
	query, db, end, ok := sqlStatement(h, i, toks)
	if !ok {
		return
	}
	conn, err := openDB(db)
	if err != nil {
		h.RaiseBug(fmt.Sprintf("SQL Error: Failed to open database. %v", err))
		*i = end
		return
	}
	defer conn.Close()
	var rows []string
	err = sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rows = append(rows, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		h.RaiseBug(fmt.Sprintf("SQL Error: Prepare Failed - %v", err))
		*i = end
		return
	}
	bind(h, i, toks, end, rows...)
}
