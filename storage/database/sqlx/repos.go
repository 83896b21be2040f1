// Package sqlxrepos implements the core repositories on PostgreSQL with
// hand-written SQL through sqlx. Every method participates in a caller's
// transaction when one is passed as the trailing exec argument.
package sqlxrepos

import (
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/cultusedu/cultus/core"
)

func sqlxIn(query string, args ...interface{}) (string, []interface{}, error) {
	return sqlx.In(query, args...)
}

func orderClause(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return ` ORDER BY ` + fallback
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return ` ORDER BY ` + strings.Join(orderList, `, `)
}
