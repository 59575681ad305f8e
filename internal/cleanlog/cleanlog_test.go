package cleanlog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppend_CreatesDirAndHeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "logs", "cleaning_log.csv")
	l := New(path)

	if err := l.Append(Entry{ChunkIndex: 1, ExcludedCount: 2, SampleReason: "missing_timestamps;invalid_duration"}); err != nil {
		t.Fatalf("Append #1: %v", err)
	}
	if err := l.Append(Entry{ChunkIndex: 3, ExcludedCount: 1, SampleReason: "invalid_fare"}); err != nil {
		t.Fatalf("Append #2: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "chunk_index,excluded_count,sample_reason\n" +
		"1,2,missing_timestamps;invalid_duration\n" +
		"3,1,invalid_fare\n"
	if string(got) != want {
		t.Fatalf("log content\n got: %q\nwant: %q", got, want)
	}
}

func TestAppend_ExistingFileGetsNoSecondHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cleaning_log.csv")
	prior := "chunk_index,excluded_count,sample_reason\n7,4,invalid_distance\n"
	if err := os.WriteFile(path, []byte(prior), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := New(path).Append(Entry{ChunkIndex: 1, ExcludedCount: 1, SampleReason: "unrealistic_speed"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, _ := os.ReadFile(path)
	if want := prior + "1,1,unrealistic_speed\n"; string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAppend_EmptyFileGetsHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cleaning_log.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := New(path).Append(Entry{ChunkIndex: 2, ExcludedCount: 5}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, _ := os.ReadFile(path)
	if want := "chunk_index,excluded_count,sample_reason\n2,5,\n"; string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNew_DefaultPath(t *testing.T) {
	t.Parallel()

	if got := New("").Path; got != DefaultPath {
		t.Fatalf("Path = %q, want %q", got, DefaultPath)
	}
}
