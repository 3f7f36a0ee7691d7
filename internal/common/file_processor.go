package common

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"cvscreen/internal/errors"
	"cvscreen/internal/pipeline"
	"cvscreen/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &FileProcessor{logger: logger}
}

// ReadFile reads content from a file with proper error handling
func (fp *FileProcessor) ReadFile(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}

	return string(content), nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	if err := utils.EnsureOutputDir(filename); err != nil {
		return errors.NewIOError("DIRECTORY_CREATE_FAILED",
			fmt.Sprintf("Cannot create directory for: %s", filename), err)
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// CollectSources turns command line paths into pipeline sources. Folders
// contribute the pdf and docx files inside them, sorted by path; with
// recursive set, subfolders are walked too and documents are named by
// their path relative to the folder. Explicit files are passed through
// as given so the pipeline can report the ones it rejects.
func (fp *FileProcessor) CollectSources(paths []string, recursive, skipHidden bool) ([]pipeline.Source, error) {
	var sources []pipeline.Source

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
					fmt.Sprintf("File not found: %s", path), err)
			}
			return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
				fmt.Sprintf("Cannot access: %s", path), err)
		}

		if !info.IsDir() {
			sources = append(sources, pipeline.FileSource(path))
			continue
		}

		found, err := fp.collectFolder(path, recursive, skipHidden)
		if err != nil {
			return nil, err
		}
		fp.logger.Debug("Collected folder", "folder", path, "documents", len(found))
		sources = append(sources, found...)
	}

	return sources, nil
}

func (fp *FileProcessor) collectFolder(root string, recursive, skipHidden bool) ([]pipeline.Source, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || (skipHidden && utils.IsHidden(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.IsDocumentFile(d.Name()) && !(skipHidden && utils.IsHidden(d.Name())) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read folder: %s", root), err)
	}
	slices.Sort(files)

	sources := make([]pipeline.Source, len(files))
	for i, path := range files {
		name := filepath.Base(path)
		if recursive {
			if rel, err := filepath.Rel(root, path); err == nil {
				name = filepath.ToSlash(rel)
			}
		}
		sources[i] = pipeline.NamedFileSource(name, path)
	}
	return sources, nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if info, err := os.Stat(filename); err == nil && info.IsDir() {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename),
			fmt.Errorf("path is a directory"))
	}

	return nil
}
