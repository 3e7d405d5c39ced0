package store

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reex/reexd/internal/models"
)

func TestAppendThenRecordsOnFreshFolder(t *testing.T) {
	s := setupTestStore(t)
	folderID := uuid.New()

	rec := models.NewExecutionRecord("build", "make all", "done", 0)
	require.NoError(t, s.AppendRecord(folderID, rec))

	records, err := s.Records(folderID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
	assert.Equal(t, "make all", records[0].Command)
	assert.Equal(t, int32(0), records[0].ExitCode)
}

func TestRecordsNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	folderID := uuid.New()

	const n = 5
	var last models.ExecutionRecord
	for i := 0; i < n; i++ {
		last = models.NewExecutionRecord("step", fmt.Sprintf("echo %d", i), "", 0)
		require.NoError(t, s.AppendRecord(folderID, last))
	}

	records, err := s.Records(folderID)
	require.NoError(t, err)
	require.Len(t, records, n)
	assert.Equal(t, last.ID, records[0].ID, "most recent append must be first")
	assert.Equal(t, "echo 0", records[n-1].Command)
}

func TestRecordsCorruptBlobReadsAsEmpty(t *testing.T) {
	s := setupTestStore(t)
	folderID := uuid.New()

	require.NoError(t, s.Save("records_"+folderID.String(), []byte("not json")))

	records, err := s.Records(folderID)
	require.NoError(t, err)
	assert.Empty(t, records)

	// The next append overwrites the corrupt blob.
	require.NoError(t, s.AppendRecord(folderID, models.NewExecutionRecord("ls", "ls", "", 0)))
	records, err = s.Records(folderID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestClearRecords(t *testing.T) {
	s := setupTestStore(t)
	folderID := uuid.New()

	require.NoError(t, s.AppendRecord(folderID, models.NewExecutionRecord("ls", "ls", "", 0)))
	require.NoError(t, s.ClearRecords(folderID))

	records, err := s.Records(folderID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExecutedIDs(t *testing.T) {
	s := setupTestStore(t)
	folderID := uuid.New()

	ids, err := s.ExecutedIDs(folderID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.AddExecutedID(folderID, 7))
	require.NoError(t, s.AddExecutedID(folderID, 7))
	require.NoError(t, s.AddExecutedID(folderID, 12))

	ids, err = s.ExecutedIDs(folderID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.True(t, ids[7])
	assert.True(t, ids[12])
}

func TestDeleteFolderState(t *testing.T) {
	s := setupTestStore(t)
	folderID := uuid.New()

	require.NoError(t, s.AppendRecord(folderID, models.NewExecutionRecord("ls", "ls", "", 0)))
	require.NoError(t, s.AddExecutedID(folderID, 3))

	require.NoError(t, s.DeleteFolderState(folderID))

	records, err := s.Records(folderID)
	require.NoError(t, err)
	assert.Empty(t, records)

	ids, err := s.ExecutedIDs(folderID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFoldersRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	folders, err := s.Folders()
	require.NoError(t, err)
	assert.Empty(t, folders)

	f := models.NewFolder("proj", "/tmp/proj")
	f.Commands = append(f.Commands, models.NewCommand("ping", "ping -c 1 {host}"))
	require.NoError(t, s.SaveFolders([]models.Folder{f}))

	folders, err = s.Folders()
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, f.ID, folders[0].ID)
	require.Len(t, folders[0].Commands, 1)
	assert.Equal(t, "ping -c 1 {host}", folders[0].Commands[0].Cmd)
}
