package scipindex

import (
	"fmt"
	"os"
	"path/filepath"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"nixlsp/internal/errors"
)

// Write stores index at path. The file is replaced atomically.
func Write(path string, index *scippb.Index) error {
	data, err := proto.Marshal(index)
	if err != nil {
		return errors.New(errors.InternalError, "cannot encode SCIP index", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(errors.IOFailure, "cannot create "+dir, err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.New(errors.IOFailure, "cannot write "+tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.New(errors.IOFailure, "cannot replace "+path, err)
	}
	return nil
}

// Read loads an index written by Write or any other SCIP producer.
func Read(path string) (*scippb.Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.NotFound, fmt.Sprintf("SCIP index not found at %s", path), err)
		}
		return nil, errors.New(errors.IOFailure, fmt.Sprintf("Failed to read SCIP index from %s", path), err)
	}
	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, errors.New(errors.CacheCorrupt, fmt.Sprintf("Failed to parse SCIP index from %s", path), err)
	}
	return &index, nil
}
