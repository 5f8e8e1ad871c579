package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
)

// スタブドライバ。Tx境界ヘルパがCOMMIT/ROLLBACKとオプションを
// 正しく伝えるかだけを見る。
type stubDriver struct{ conn *stubConn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

type stubConn struct {
	beginOpts driver.TxOptions
	commits   int
	rollbacks int
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return &stubTx{c: c}, nil }

func (c *stubConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.beginOpts = opts
	return &stubTx{c: c}, nil
}

type stubTx struct{ c *stubConn }

func (t *stubTx) Commit() error   { t.c.commits++; return nil }
func (t *stubTx) Rollback() error { t.c.rollbacks++; return nil }

var stubbedConn = &stubConn{}

func init() {
	sql.Register("txstub", &stubDriver{conn: stubbedConn})
}

func openStub(t *testing.T) *sql.DB {
	t.Helper()
	stubbedConn.beginOpts = driver.TxOptions{}
	stubbedConn.commits = 0
	stubbedConn.rollbacks = 0
	conn, err := sql.Open("txstub", "")
	if err != nil {
		t.Fatalf("open stub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRunInTx_CommitsOnNil(t *testing.T) {
	conn := openStub(t)

	err := RunInTx(context.Background(), conn, nil, func(context.Context, DBTX) error {
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}
	if stubbedConn.commits != 1 || stubbedConn.rollbacks != 0 {
		t.Errorf("commits=%d rollbacks=%d; want 1 commit", stubbedConn.commits, stubbedConn.rollbacks)
	}
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	conn := openStub(t)

	boom := errors.New("boom")
	err := RunInTx(context.Background(), conn, nil, func(context.Context, DBTX) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v; want the callback error back", err)
	}
	if stubbedConn.rollbacks != 1 || stubbedConn.commits != 0 {
		t.Errorf("commits=%d rollbacks=%d; want 1 rollback", stubbedConn.commits, stubbedConn.rollbacks)
	}
}

func TestReadOnly_SetsReadOnlyOption(t *testing.T) {
	conn := openStub(t)

	err := ReadOnly(context.Background(), conn, func(context.Context, DBTX) error {
		return nil
	})
	if err != nil {
		t.Fatalf("ReadOnly failed: %v", err)
	}
	if !stubbedConn.beginOpts.ReadOnly {
		t.Errorf("BeginTx should receive the read-only option")
	}
	if stubbedConn.commits != 1 {
		t.Errorf("commits = %d; want 1", stubbedConn.commits)
	}
}
