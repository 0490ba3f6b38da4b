package replay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// FileSink persists a Document as a single JSON file
// ({metadata, frames: [RecordingFrame]}), rewritten atomically on every
// flush via write-to-temp-then-rename so a crash mid-write never corrupts
// the previous, fully-flushed recording.
type FileSink struct {
	path string

	mu   sync.Mutex
	doc  Document
	file *os.File // handle opened by NewFileSink and closed by Close; takes no lock on path
}

// NewFileSink opens (or creates) path for recording. If path already holds
// a Document, its frames are loaded so AppendFrames continues the same
// recording rather than starting a new one.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	s := &FileSink{path: path, file: f}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() > 0 {
		dec := json.NewDecoder(f)
		if err := dec.Decode(&s.doc); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

// WriteMetadata implements Sink.
func (s *FileSink) WriteMetadata(meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Metadata = meta
	return s.writeLocked()
}

// AppendFrames implements Sink.
func (s *FileSink) AppendFrames(frames []FrameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Frames = append(s.doc.Frames, frames...)
	return s.writeLocked()
}

func (s *FileSink) writeLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(s.doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Close implements Sink.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
