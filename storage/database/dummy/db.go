// Package dummydb provides in-memory repository implementations for tests
// and local hacking. Data lives in maps guarded by RWMutexes; nothing is
// persisted.
package dummydb

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/cultusedu/cultus/core"
	"github.com/cultusedu/cultus/core/product"
	"github.com/cultusedu/cultus/core/progression"
	"github.com/cultusedu/cultus/core/user"
)

type (
	DB struct {
		*sqlx.DB

		user    *userTable
		product *productTable
		module  *moduleTable
		result  *resultTable
		state   *stateTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	productTable struct {
		sync.RWMutex
		table map[string]*product.Product
	}

	moduleTable struct {
		sync.RWMutex
		table map[string]*product.Module
	}

	resultKey struct {
		studentID string
		moduleID  string
	}

	// resultRow remembers the owning product so results outlive module
	// removal, the way a foreign key on a soft reference would.
	resultRow struct {
		progression.ModuleResult
		productID string
	}

	resultTable struct {
		sync.RWMutex
		table map[resultKey]*resultRow
	}

	stateKey struct {
		studentID string
		productID string
	}

	stateTable struct {
		sync.RWMutex
		table map[stateKey]*progression.State
	}
)

var _ core.DB = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	sqlDB, err := sql.Open(driverName, "")
	if err != nil {
		return nil, err
	}
	return &DB{
		DB:      sqlx.NewDb(sqlDB, driverName),
		user:    &userTable{table: make(map[string]*user.User)},
		product: &productTable{table: make(map[string]*product.Product)},
		module:  &moduleTable{table: make(map[string]*product.Module)},
		result:  &resultTable{table: make(map[resultKey]*resultRow)},
		state:   &stateTable{table: make(map[stateKey]*progression.State)},
	}, nil
}

// noopDriver exists only so BeginTxx can hand out transaction handles
// without a real server; the repositories here never execute SQL.

const driverName = "cultusdummy"

func init() {
	sql.Register(driverName, noopDriver{})
}

type noopDriver struct{}

func (noopDriver) Open(string) (driver.Conn, error) { return noopConn{}, nil }

type noopConn struct{}

func (noopConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("dummydb: SQL statements are not supported")
}
func (noopConn) Close() error              { return nil }
func (noopConn) Begin() (driver.Tx, error) { return noopTx{}, nil }

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }
