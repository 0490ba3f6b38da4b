package replay

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSinkPersistsMetadataAndFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.json")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := sink.WriteMetadata(Metadata{LandID: "land-1", LandType: "room"}); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if err := sink.AppendFrames([]FrameRecord{{TickID: 1, StateHash: "a"}}); err != nil {
		t.Fatalf("AppendFrames: %v", err)
	}
	if err := sink.AppendFrames([]FrameRecord{{TickID: 2, StateHash: "b"}}); err != nil {
		t.Fatalf("AppendFrames: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("reopen NewFileSink: %v", err)
	}
	defer reopened.Close()

	if reopened.doc.Metadata.LandID != "land-1" {
		t.Fatalf("LandID = %q, want land-1", reopened.doc.Metadata.LandID)
	}
	if len(reopened.doc.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(reopened.doc.Frames))
	}
	if reopened.doc.Frames[1].StateHash != "b" {
		t.Fatalf("Frames[1].StateHash = %q, want b", reopened.doc.Frames[1].StateHash)
	}
}

func TestFileSinkLoadDocumentRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.json")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := sink.WriteMetadata(Metadata{LandID: "land-2"}); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if err := sink.AppendFrames([]FrameRecord{{TickID: 1}}); err != nil {
		t.Fatalf("AppendFrames: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	doc, err := LoadDocument(f)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if doc.Metadata.LandID != "land-2" {
		t.Fatalf("LandID = %q, want land-2", doc.Metadata.LandID)
	}
	if len(doc.Frames) != 1 {
		t.Fatalf("len(Frames) = %d, want 1", len(doc.Frames))
	}
}
