package cmd

import (
	"testing"

	"github.com/dbsmedya/pgrelay/internal/config"
	"github.com/dbsmedya/pgrelay/internal/dbconn"
	"github.com/dbsmedya/pgrelay/internal/pgmeta"
	"github.com/dbsmedya/pgrelay/internal/rules"
	"github.com/dbsmedya/pgrelay/internal/walkers"
	"github.com/dbsmedya/pgrelay/internal/writers"
	"github.com/stretchr/testify/assert"
)

func TestCloneDataCommandStructure(t *testing.T) {
	assert.NotNil(t, cloneDataCmd)
	assert.Equal(t, "clone-data", cloneDataCmd.Use)
	assert.NotNil(t, cloneDataCmd.RunE)
}

func TestCloneDataFlags(t *testing.T) {
	flags := cloneDataCmd.Flags()

	walkerFlag := flags.Lookup("walker")
	assert.NotNil(t, walkerFlag)
	assert.Equal(t, "row_sync", walkerFlag.DefValue)

	writerFlag := flags.Lookup("writer")
	assert.NotNil(t, writerFlag)
	assert.Equal(t, "single_fdw", writerFlag.DefValue)

	dryRunFlag := flags.Lookup("dry-run")
	assert.NotNil(t, dryRunFlag)
	assert.Equal(t, "false", dryRunFlag.DefValue)
}

func TestCloneDataIsAddedToRoot(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "clone-data" {
			found = true
			break
		}
	}
	assert.True(t, found)
}

func TestBuildWalkerAndWriterSingleFDWProducesRowWalker(t *testing.T) {
	restore := cloneDataWalker
	cloneDataWriter, cloneDataWalker = "single_fdw", "row_sync"
	defer func() { cloneDataWalker = restore }()

	cfg := &config.Config{}
	dbManager := dbconn.NewManager(cfg)
	tables := map[string]pgmeta.TableInfo{}
	ruleSet := &rules.RuleSet{}

	w, commitFn, err := buildWalkerAndWriter(cfg, dbManager, tables, ruleSet)
	assert.NoError(t, err)
	assert.Nil(t, commitFn)
	assert.IsType(t, &walkers.RowWalkerSync{}, w)
}

func TestBuildWalkerAndWriterRowConcurrent(t *testing.T) {
	restoreWalker, restoreWriter := cloneDataWalker, cloneDataWriter
	cloneDataWalker, cloneDataWriter = "row_concurrent", "async_fdw"
	defer func() { cloneDataWalker, cloneDataWriter = restoreWalker, restoreWriter }()

	cfg := &config.Config{Concurrency: config.ConcurrencyConfig{ConnectionPoolSize: 7}}
	dbManager := dbconn.NewManager(cfg)
	tables := map[string]pgmeta.TableInfo{}
	ruleSet := &rules.RuleSet{}

	w, commitFn, err := buildWalkerAndWriter(cfg, dbManager, tables, ruleSet)
	assert.NoError(t, err)
	assert.Nil(t, commitFn)
	assert.IsType(t, &walkers.RowWalkerConcurrent{}, w)
}

func TestBuildWalkerAndWriterTableWalkerRequiresTableWalker(t *testing.T) {
	restoreWalker, restoreWriter := cloneDataWalker, cloneDataWriter
	cloneDataWalker, cloneDataWriter = "row_sync", "batch_fdw"
	defer func() { cloneDataWalker, cloneDataWriter = restoreWalker, restoreWriter }()

	cfg := &config.Config{}
	dbManager := dbconn.NewManager(cfg)
	tables := map[string]pgmeta.TableInfo{}
	ruleSet := &rules.RuleSet{}

	_, _, err := buildWalkerAndWriter(cfg, dbManager, tables, ruleSet)
	assert.Error(t, err)
}

func TestBuildWalkerAndWriterBatchFDWWithTableWalker(t *testing.T) {
	restoreWalker, restoreWriter := cloneDataWalker, cloneDataWriter
	cloneDataWalker, cloneDataWriter = "table", "batch_fdw"
	defer func() { cloneDataWalker, cloneDataWriter = restoreWalker, restoreWriter }()

	cfg := &config.Config{}
	dbManager := dbconn.NewManager(cfg)
	tables := map[string]pgmeta.TableInfo{}
	ruleSet := &rules.RuleSet{}

	w, commitFn, err := buildWalkerAndWriter(cfg, dbManager, tables, ruleSet)
	assert.NoError(t, err)
	assert.Nil(t, commitFn)
	assert.IsType(t, &walkers.TableWalker{}, w)
}

func TestBuildWalkerAndWriterUnknownWriterKind(t *testing.T) {
	restoreWalker, restoreWriter := cloneDataWalker, cloneDataWriter
	cloneDataWalker, cloneDataWriter = "row_sync", "nonsense"
	defer func() { cloneDataWalker, cloneDataWriter = restoreWalker, restoreWriter }()

	cfg := &config.Config{}
	dbManager := dbconn.NewManager(cfg)
	_, _, err := buildWalkerAndWriter(cfg, dbManager, map[string]pgmeta.TableInfo{}, &rules.RuleSet{})
	assert.Error(t, err)
}

func TestBuildRowWalkerUnknownWalkerKind(t *testing.T) {
	cfg := &config.Config{}
	dbManager := dbconn.NewManager(cfg)
	restoreWalker := cloneDataWalker
	cloneDataWalker = "bogus"
	defer func() { cloneDataWalker = restoreWalker }()

	w := writers.NewFileWriter()
	_, _, err := buildRowWalker(cfg, dbManager, map[string]pgmeta.TableInfo{}, &rules.RuleSet{}, w)
	assert.Error(t, err)
}

func TestCompatibilityIsCheckedBeforeAnythingElse(t *testing.T) {
	// Mirrors the compatibility matrix runCloneData validates up front.
	assert.True(t, writers.Compatible("row_sync", writers.KindSingleFDW))
	assert.False(t, writers.Compatible("row_sync", writers.KindBatchFDW))
	assert.True(t, writers.Compatible("table", writers.KindBatchFDW))
	assert.False(t, writers.Compatible("table", writers.KindSingleFDW))
}
