package store

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/reex/reexd/internal/models"
)

const foldersKey = "folders"

func recordsKey(folderID uuid.UUID) string {
	return "records_" + folderID.String()
}

func executedKey(folderID uuid.UUID) string {
	return "remote_executed_" + folderID.String()
}

// Folders loads the folder collection. An absent or undecodable blob reads
// as an empty collection.
func (s *Store) Folders() ([]models.Folder, error) {
	data, err := s.Load(foldersKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var folders []models.Folder
	if err := json.Unmarshal(data, &folders); err != nil {
		return nil, nil
	}
	return folders, nil
}

// SaveFolders replaces the stored folder collection.
func (s *Store) SaveFolders(folders []models.Folder) error {
	data, err := json.Marshal(folders)
	if err != nil {
		return fmt.Errorf("encode folders: %w", err)
	}
	return s.Save(foldersKey, data)
}

// Records returns a folder's execution records, newest first. Corrupt
// stored data is treated as absent, never as a fault.
func (s *Store) Records(folderID uuid.UUID) ([]models.ExecutionRecord, error) {
	data, err := s.Load(recordsKey(folderID))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var records []models.ExecutionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil
	}
	return records, nil
}

// AppendRecord inserts a record at the front of the folder's log.
// Read-modify-write; the coordinator guarantees one writer per folder.
func (s *Store) AppendRecord(folderID uuid.UUID, record models.ExecutionRecord) error {
	records, err := s.Records(folderID)
	if err != nil {
		return err
	}

	records = append([]models.ExecutionRecord{record}, records...)

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return s.Save(recordsKey(folderID), data)
}

// ClearRecords deletes a folder's execution record log.
func (s *Store) ClearRecords(folderID uuid.UUID) error {
	return s.Delete(recordsKey(folderID))
}

// ExecutedIDs returns the set of remote task ids already delivered to
// execution for the folder.
func (s *Store) ExecutedIDs(folderID uuid.UUID) (map[int]bool, error) {
	data, err := s.Load(executedKey(folderID))
	if err != nil {
		return nil, err
	}

	ids := make(map[int]bool)
	if data == nil {
		return ids, nil
	}

	var list []int
	if err := json.Unmarshal(data, &list); err != nil {
		return ids, nil
	}
	for _, id := range list {
		ids[id] = true
	}
	return ids, nil
}

// AddExecutedID marks a remote task id as delivered. Ids are never removed.
func (s *Store) AddExecutedID(folderID uuid.UUID, id int) error {
	ids, err := s.ExecutedIDs(folderID)
	if err != nil {
		return err
	}
	if ids[id] {
		return nil
	}
	ids[id] = true

	list := make([]int, 0, len(ids))
	for v := range ids {
		list = append(list, v)
	}

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode executed ids: %w", err)
	}
	return s.Save(executedKey(folderID), data)
}

// DeleteFolderState removes the record log and the dedup set for a folder.
// Called when the folder itself is deleted.
func (s *Store) DeleteFolderState(folderID uuid.UUID) error {
	if err := s.Delete(recordsKey(folderID)); err != nil {
		return err
	}
	return s.Delete(executedKey(folderID))
}
