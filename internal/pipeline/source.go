package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cvscreen/internal/errors"
	"cvscreen/internal/utils"
)

// Source is a document waiting to be read. Name identifies it within a
// batch and decides its format; Load is only called when the document's
// turn comes.
type Source struct {
	Name string
	Load func(ctx context.Context) ([]byte, error)
}

// FileSource reads a document from disk. The document is named after the
// file's base name.
func FileSource(path string) Source {
	return NamedFileSource(filepath.Base(path), path)
}

// NamedFileSource reads a document from disk under an explicit name, for
// folders walked recursively where base names may repeat.
func NamedFileSource(name, path string) Source {
	return Source{
		Name: name,
		Load: func(ctx context.Context) ([]byte, error) {
			if err := ctx.Err(); err != nil {
				return nil, errors.NewKindError(errors.KindExtractionFailed, "read canceled", err)
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, errors.NewKindError(errors.KindExtractionFailed,
					fmt.Sprintf("failed to read file: %s", path), err).
					WithCode(errors.ErrCodeFileNotReadable)
			}
			return content, nil
		},
	}
}

// BytesSource wraps content that is already in memory
func BytesSource(name string, content []byte) Source {
	return Source{
		Name: name,
		Load: func(context.Context) ([]byte, error) {
			return content, nil
		},
	}
}

// checkSize rejects documents above limit. A limit of 0 disables the check.
func checkSize(name string, content []byte, limit int64) error {
	if limit <= 0 || int64(len(content)) <= limit {
		return nil
	}
	return errors.NewKindError(errors.KindExtractionFailed,
		fmt.Sprintf("file too large: %s (max %s)", utils.FormatFileSize(int64(len(content))), utils.FormatFileSize(limit)), nil).
		WithCode(errors.ErrCodeFileTooLarge).
		WithContext("document", name)
}
