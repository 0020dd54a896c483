// Package store implements the on-disk persistence layer described in
// spec.md §4.4: a temp-file-then-rename atomic write primitive, a path
// builder over the <state_dir>/tasks/<task_id_hex>/ layout, and the two
// sibling stores (ArtifactStore, EvidenceStore) built on top of both.
package store

import (
	"encoding/json"
	"os"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic writes data to path via a temp-file-then-rename
// procedure in the same directory, so path either does not exist, holds
// its prior complete value, or holds the new complete value — never a
// partial write, matching spec.md §4.4's atomic-write contract.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}

// WriteJSONAtomic marshals v and writes it atomically to path.
func WriteJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o644)
}

// AppendJSONLine opens path for append (creating it if absent) and writes
// v as one JSON object followed by '\n', matching spec.md §4.4's append
// safety contract for timeline.jsonl and events.jsonl: appends use
// O_APPEND semantics, never a rewrite.
func AppendJSONLine(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}
