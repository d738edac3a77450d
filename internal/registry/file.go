package registry

import (
	"context"
	"os"
)

// FileStore reads a YAML Document from the local filesystem.  The file
// is read on every query so edits show up without a restart.
type FileStore struct {
	Path string
}

// NewFileStore returns a store reading path.
func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

func (s *FileStore) load() (*Document, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return ParseDocument(data)
}

func (s *FileStore) Hosts(context.Context) ([]string, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.HostIDs(), nil
}

func (s *FileStore) Rules(context.Context) ([]string, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.RuleIDs(), nil
}

func (s *FileStore) Close() error { return nil }
