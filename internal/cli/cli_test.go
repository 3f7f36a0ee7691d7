package cli

import (
	"bytes"
	"testing"

	"cvscreen/internal/config"
	"cvscreen/internal/errors"
	"cvscreen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCandidates(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			name:  "screening report",
			input: `{"batchId":"b-1","records":[{"name":"Jane","filename":"jane.pdf"},{"name":"Bob"}]}`,
			want:  []string{"Jane", "Bob"},
		},
		{
			name:  "bare array",
			input: "\n  [{\"name\":\"Jane\"}]",
			want:  []string{"Jane"},
		},
		{name: "report without records", input: `{"batchId":"b-1"}`, want: []string{}},
		{name: "not json", input: "name,skills", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := decodeCandidates([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			names := make([]string, 0, len(records))
			for _, rec := range records {
				names = append(names, rec.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestNewBackendsRequiresServiceURL(t *testing.T) {
	cfg := &config.Config{}

	_, err := newBackends(cfg, errors.NewNopLogger(), false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))

	cfg.Client.BaseURL = "http://localhost:8080"
	cfg.Client.Timeout = 1
	backends, err := newBackends(cfg, errors.NewNopLogger(), false)
	require.NoError(t, err)
	assert.NotNil(t, backends.Analyzer)
	assert.NotNil(t, backends.Ranker)
	assert.NoError(t, backends.Close())
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	progressPrinter(&buf)(types.DocumentStatus{
		Document: "scan.pdf",
		Stage:    types.StageError,
		Message:  "Not enough text",
		Kind:     errors.KindEmptyDocument,
	})
	assert.Equal(t, "[Error     ] scan.pdf: Not enough text (EmptyDocument)\n", buf.String())
}
