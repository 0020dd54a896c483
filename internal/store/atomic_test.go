package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	if err := WriteFileAtomic(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic() error: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("content = %q, want %q", got, "hello")
	}
}

func TestWriteFileAtomic_OverwritesWithNewCompleteValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("first WriteFileAtomic() error: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second-longer-value"), 0o644); err != nil {
		t.Fatalf("second WriteFileAtomic() error: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != "second-longer-value" {
		t.Errorf("content = %q, want %q (never a partial value)", got, "second-longer-value")
	}
}

func TestWriteJSONAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	type payload struct {
		Name string `json:"name"`
	}
	if err := WriteJSONAtomic(path, payload{Name: "task"}); err != nil {
		t.Fatalf("WriteJSONAtomic() error: %v", err)
	}

	var got payload
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.Name != "task" {
		t.Errorf("Name = %q, want %q", got.Name, "task")
	}
}

func TestAppendJSONLine_AppendsOneLinePerCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timeline.jsonl")

	type event struct {
		Stage string `json:"stage"`
	}
	if err := AppendJSONLine(path, event{Stage: "intake"}); err != nil {
		t.Fatalf("AppendJSONLine() error: %v", err)
	}
	if err := AppendJSONLine(path, event{Stage: "planning"}); err != nil {
		t.Fatalf("AppendJSONLine() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	var first event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if first.Stage != "intake" {
		t.Errorf("first.Stage = %q, want %q", first.Stage, "intake")
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("AppendJSONLine should terminate each line with \\n")
	}
}
