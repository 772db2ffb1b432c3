package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store persists annotation records as one JSON array file per job key.
// Writes are atomic (temp file + rename) so readers never observe a
// half-written array.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily on
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the output file for a job key.
func (s *Store) Path(jobKey string) string {
	return filepath.Join(s.dir, jobKey+"_annotated.json")
}

// WriteRecords replaces the stored record set for jobKey.
func (s *Store) WriteRecords(jobKey string, recs []AnnotationRecord) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if recs == nil {
		recs = []AnnotationRecord{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	target := s.Path(jobKey)
	tmp, err := os.CreateTemp(s.dir, jobKey+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace output file: %w", err)
	}
	return nil
}

// ReadRecords loads the stored record set for jobKey. A missing file is not
// an error; it returns an empty slice.
func (s *Store) ReadRecords(jobKey string) ([]AnnotationRecord, error) {
	data, err := os.ReadFile(s.Path(jobKey))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read records: %w", err)
	}
	var recs []AnnotationRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	return recs, nil
}
