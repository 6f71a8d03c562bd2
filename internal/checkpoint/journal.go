package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const journalName = "checkpoints.json.zst"

var (
	journalEncoder, _ = zstd.NewWriter(nil)
	journalDecoder, _ = zstd.NewReader(nil)
)

// loadJournal reads the metadata journal next to the hidden repository.
// A missing journal is an empty history, not an error.
func (s *Store) loadJournal() ([]Metadata, error) {
	compressed, err := os.ReadFile(filepath.Join(s.repoDir, journalName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint journal: %w", err)
	}

	raw, err := journalDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress checkpoint journal: %w", err)
	}

	var entries []Metadata
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint journal: %w", err)
	}
	return entries, nil
}

// saveJournal rewrites the metadata journal with the current entries.
func (s *Store) saveJournal() error {
	raw, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("marshal checkpoint journal: %w", err)
	}

	compressed := journalEncoder.EncodeAll(raw, nil)
	path := filepath.Join(s.repoDir, journalName)
	if err := os.WriteFile(path, compressed, 0644); err != nil {
		return fmt.Errorf("write checkpoint journal: %w", err)
	}
	return nil
}
