package common

import (
	"fmt"
	"slices"
	"strings"

	"cvscreen/internal/errors"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// GetSupportedFormats returns the list of supported formats
func GetSupportedFormats(supportedFormats []string) []string {
	return supportedFormats
}

// ResolveJobDescription picks the job description from --jd-text or the
// contents of --jd. Setting both is an error; setting neither yields "".
func ResolveJobDescription(fp *FileProcessor, jdFile, jdText string) (string, error) {
	if jdFile != "" && jdText != "" {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"use either --jd or --jd-text, not both", nil)
	}
	if jdText != "" {
		return jdText, nil
	}
	if jdFile == "" {
		return "", nil
	}

	content, err := fp.ReadFile(jdFile)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("job description file is empty: %s", jdFile), nil)
	}
	return content, nil
}
