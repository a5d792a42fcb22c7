package datazen_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/devscast/datazen"
)

// Hook up gocheck into the "go test" runner.
func TestDatazen(t *testing.T) { TestingT(t) }

type TxSuite struct{}

var _ = Suite(&TxSuite{})

// fakeDriver records the physical calls a Conn issues so tests can assert on
// the exact call sequence.
type fakeDriver struct {
	name  string
	style datazen.BindingStyle
	calls []string
	// failOn makes the named call fail, leaving state checks to the test.
	failOn string
}

func (d *fakeDriver) record(call string) error {
	if call == d.failOn {
		return fmt.Errorf("%s refused by driver", call)
	}
	d.calls = append(d.calls, call)
	return nil
}

func (d *fakeDriver) Name() string                       { return d.name }
func (d *fakeDriver) BindingStyle() datazen.BindingStyle { return d.style }
func (d *fakeDriver) Escape() datazen.Escape             { return datazen.EscapeDoubling }
func (d *fakeDriver) Begin(ctx context.Context) error    { return d.record("begin") }
func (d *fakeDriver) Commit(ctx context.Context) error   { return d.record("commit") }
func (d *fakeDriver) Rollback(ctx context.Context) error { return d.record("rollback") }
func (d *fakeDriver) Close() error                       { return d.record("close") }

func (d *fakeDriver) Query(ctx context.Context, q *datazen.CompiledQuery) (*sql.Rows, error) {
	return nil, d.record("query:" + q.SQL)
}

func (d *fakeDriver) Exec(ctx context.Context, q *datazen.CompiledQuery) (int64, error) {
	return int64(q.BoundCount()), d.record("exec:" + q.SQL)
}

// savepointFake extends fakeDriver with savepoint support.
type savepointFake struct {
	*fakeDriver
}

func (d *savepointFake) CreateSavepoint(ctx context.Context, name string) error {
	return d.record("savepoint " + name)
}

func (d *savepointFake) ReleaseSavepoint(ctx context.Context, name string) error {
	return d.record("release " + name)
}

func (d *savepointFake) RollbackSavepoint(ctx context.Context, name string) error {
	return d.record("rollback to " + name)
}

var _ datazen.SavepointDriver = (*savepointFake)(nil)

func newFakeConn(c *C, opts ...datazen.Option) (*datazen.Conn, *fakeDriver) {
	drv := &fakeDriver{name: "fake"}
	conn, err := datazen.Connect(&savepointFake{drv}, opts...)
	c.Assert(err, IsNil)
	return conn, drv
}

func (s *TxSuite) TestNestedBeginRollbackCommit(c *C) {
	conn, drv := newFakeConn(c)
	ctx := context.Background()

	c.Assert(conn.Begin(ctx), IsNil)
	c.Assert(conn.NestingLevel(), Equals, 1)
	c.Assert(conn.Begin(ctx), IsNil)
	c.Assert(conn.NestingLevel(), Equals, 2)
	c.Assert(conn.Rollback(ctx), IsNil)
	c.Assert(conn.NestingLevel(), Equals, 1)
	c.Assert(conn.Commit(ctx), IsNil)
	c.Assert(conn.NestingLevel(), Equals, 0)
	c.Assert(conn.IsTransactionActive(), Equals, false)

	c.Assert(drv.calls, DeepEquals, []string{
		"begin",
		"savepoint DATAZEN_2",
		"rollback to DATAZEN_2",
		"commit",
	})
}

func (s *TxSuite) TestNestedCommitReleasesSavepoint(c *C) {
	conn, drv := newFakeConn(c)
	ctx := context.Background()

	c.Assert(conn.Begin(ctx), IsNil)
	c.Assert(conn.Begin(ctx), IsNil)
	c.Assert(conn.Begin(ctx), IsNil)
	c.Assert(conn.Commit(ctx), IsNil)
	c.Assert(conn.NestingLevel(), Equals, 2)

	c.Assert(drv.calls, DeepEquals, []string{
		"begin",
		"savepoint DATAZEN_2",
		"savepoint DATAZEN_3",
		"release DATAZEN_3",
	})
}

func (s *TxSuite) TestCommitWithoutTransaction(c *C) {
	conn, _ := newFakeConn(c)
	err := conn.Commit(context.Background())
	c.Assert(errors.Is(err, datazen.ErrNoActiveTransaction), Equals, true)
}

func (s *TxSuite) TestRollbackWithoutTransaction(c *C) {
	conn, _ := newFakeConn(c)
	err := conn.Rollback(context.Background())
	c.Assert(errors.Is(err, datazen.ErrNoActiveTransaction), Equals, true)
}

func (s *TxSuite) TestSetRollbackOnlyWithoutTransaction(c *C) {
	conn, _ := newFakeConn(c)
	err := conn.SetRollbackOnly()
	c.Assert(errors.Is(err, datazen.ErrNoActiveTransaction), Equals, true)
}

func (s *TxSuite) TestRollbackOnlyForbidsCommit(c *C) {
	conn, _ := newFakeConn(c)
	ctx := context.Background()

	c.Assert(conn.Begin(ctx), IsNil)
	c.Assert(conn.SetRollbackOnly(), IsNil)
	c.Assert(conn.IsRollbackOnly(), Equals, true)

	err := conn.Commit(ctx)
	c.Assert(errors.Is(err, datazen.ErrRollbackOnly), Equals, true)
	// A refused commit must not mutate state.
	c.Assert(conn.NestingLevel(), Equals, 1)
	c.Assert(conn.IsRollbackOnly(), Equals, true)

	c.Assert(conn.Rollback(ctx), IsNil)
	c.Assert(conn.NestingLevel(), Equals, 0)
	c.Assert(conn.IsRollbackOnly(), Equals, false)
}

func (s *TxSuite) TestRollbackOnlySurvivesSavepointRollback(c *C) {
	conn, _ := newFakeConn(c)
	ctx := context.Background()

	c.Assert(conn.Begin(ctx), IsNil)
	c.Assert(conn.Begin(ctx), IsNil)
	c.Assert(conn.SetRollbackOnly(), IsNil)
	c.Assert(conn.Rollback(ctx), IsNil)
	c.Assert(conn.NestingLevel(), Equals, 1)
	c.Assert(conn.IsRollbackOnly(), Equals, true)

	err := conn.Commit(ctx)
	c.Assert(errors.Is(err, datazen.ErrRollbackOnly), Equals, true)
}

func (s *TxSuite) TestNestedTransactionsUnsupported(c *C) {
	drv := &fakeDriver{name: "plain"}
	conn, err := datazen.Connect(drv)
	c.Assert(err, IsNil)
	ctx := context.Background()

	c.Assert(conn.Begin(ctx), IsNil)
	err = conn.Begin(ctx)
	c.Assert(errors.Is(err, datazen.ErrNestedTransactionsNotSupported), Equals, true)
	c.Assert(err, ErrorMatches, `nested transactions are not supported by driver "plain"`)
	// A refused begin must not mutate state.
	c.Assert(conn.NestingLevel(), Equals, 1)
}

func (s *TxSuite) TestFailedBeginLeavesStateUnchanged(c *C) {
	drv := &fakeDriver{name: "fake", failOn: "begin"}
	conn, err := datazen.Connect(&savepointFake{drv})
	c.Assert(err, IsNil)

	err = conn.Begin(context.Background())
	c.Assert(err, ErrorMatches, "begin refused by driver")
	c.Assert(conn.NestingLevel(), Equals, 0)
	c.Assert(conn.IsTransactionActive(), Equals, false)
}

func (s *TxSuite) TestFailedCommitLeavesStateUnchanged(c *C) {
	conn, drv := newFakeConn(c)
	ctx := context.Background()

	c.Assert(conn.Begin(ctx), IsNil)
	drv.failOn = "commit"
	err := conn.Commit(ctx)
	c.Assert(err, ErrorMatches, "commit refused by driver")
	c.Assert(conn.NestingLevel(), Equals, 1)
}

func (s *TxSuite) TestAutoCommitDisabledStartsTransaction(c *C) {
	conn, drv := newFakeConn(c, datazen.WithAutoCommit(false))
	ctx := context.Background()

	c.Assert(conn.NestingLevel(), Equals, 1)
	c.Assert(conn.Commit(ctx), IsNil)
	// With auto-commit disabled the connection re-begins immediately.
	c.Assert(conn.NestingLevel(), Equals, 1)
	c.Assert(conn.Rollback(ctx), IsNil)
	c.Assert(conn.NestingLevel(), Equals, 1)

	c.Assert(drv.calls, DeepEquals, []string{
		"begin",
		"commit", "begin",
		"rollback", "begin",
	})
}

func (s *TxSuite) TestTransactionalCommits(c *C) {
	conn, drv := newFakeConn(c)

	err := conn.Transactional(context.Background(), func(ctx context.Context) error {
		_, err := conn.Exec(ctx, "DELETE FROM t WHERE id = :id",
			datazen.NamedParameters{Values: map[string]any{"id": 1}})
		return err
	})
	c.Assert(err, IsNil)
	c.Assert(drv.calls, DeepEquals, []string{
		"begin",
		"exec:DELETE FROM t WHERE id = ?",
		"commit",
	})
}

func (s *TxSuite) TestTransactionalRollsBackAndReRaises(c *C) {
	conn, drv := newFakeConn(c)
	boom := errors.New("boom")

	err := conn.Transactional(context.Background(), func(ctx context.Context) error {
		return boom
	})
	c.Assert(errors.Is(err, boom), Equals, true)
	c.Assert(drv.calls, DeepEquals, []string{"begin", "rollback"})
	c.Assert(conn.IsTransactionActive(), Equals, false)
}

func (s *TxSuite) TestTransactionalNested(c *C) {
	conn, drv := newFakeConn(c)
	boom := errors.New("boom")

	err := conn.Transactional(context.Background(), func(ctx context.Context) error {
		// The inner failure is contained by the savepoint rollback.
		_ = conn.Transactional(ctx, func(ctx context.Context) error {
			return boom
		})
		return nil
	})
	c.Assert(err, IsNil)
	c.Assert(drv.calls, DeepEquals, []string{
		"begin",
		"savepoint DATAZEN_2",
		"rollback to DATAZEN_2",
		"commit",
	})
}

func (s *TxSuite) TestCloseResetsState(c *C) {
	conn, _ := newFakeConn(c)
	ctx := context.Background()

	c.Assert(conn.Begin(ctx), IsNil)
	c.Assert(conn.Begin(ctx), IsNil)
	c.Assert(conn.Close(), IsNil)
	c.Assert(conn.NestingLevel(), Equals, 0)
	c.Assert(conn.IsTransactionActive(), Equals, false)
}

func (s *TxSuite) TestQueryCompilesForDriverStyle(c *C) {
	drv := &fakeDriver{name: "named", style: datazen.Named}
	conn, err := datazen.Connect(drv)
	c.Assert(err, IsNil)

	_, err = conn.Query(context.Background(),
		"SELECT * FROM t WHERE id = :id",
		datazen.NamedParameters{Values: map[string]any{"id": 1}})
	c.Assert(err, IsNil)
	c.Assert(drv.calls, DeepEquals, []string{"query:SELECT * FROM t WHERE id = @p1"})
}

func (s *TxSuite) TestQueryCompileErrorPropagates(c *C) {
	conn, drv := newFakeConn(c)

	_, err := conn.Query(context.Background(),
		"SELECT * FROM t WHERE id = :id",
		datazen.NamedParameters{})
	c.Assert(errors.Is(err, datazen.ErrMissingNamedParameter), Equals, true)
	c.Assert(drv.calls, HasLen, 0)
}
