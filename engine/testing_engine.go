package engine

import (
	"testing"

	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/config"
	"github.com/jimingkang/mini-pg/transaction/txid"
)

// TestingNewConfig returns config whose data directory is temporary directory
func TestingNewConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.BufferFrames = 16
	cfg.CheckpointWorkers = 2
	return cfg
}

// TestingOpen opens the engine with cfg and closes it at the end of the test
func TestingOpen(t *testing.T, cfg config.Config) *Engine {
	e, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if !e.closed.Load() {
			e.Close()
		}
	})
	return e
}

// TestingNewEngine opens the engine on temporary directory
func TestingNewEngine(t *testing.T) (*Engine, config.Config) {
	cfg := TestingNewConfig(t)
	return TestingOpen(t, cfg), cfg
}

// TestingCreateUsers creates users(id int, name text, age int) in committed transaction
func TestingCreateUsers(t *testing.T, e *Engine) {
	xid, err := e.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateTable(xid, "users", catalog.TestingUsersColumns()); err != nil {
		t.Fatal(err)
	}
	if err := e.Commit(xid); err != nil {
		t.Fatal(err)
	}
}

// TestingCrash stops the engine without aborting transactions in progress and without checkpoint.
// the files keep what has been written until now, like the process is killed
func TestingCrash(e *Engine) {
	e.closed.Store(true)
	e.bm.Close()
	e.closeFiles()
}

// TestingInterrupted returns the transactions interrupted by the last crash and not yet cleaned up
func TestingInterrupted(e *Engine) []txid.TxID {
	return e.txm.Interrupted()
}
