package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminal(t *testing.T) {
	tests := []struct {
		status UploadStatus
		want   bool
	}{
		{UploadInitiated, false},
		{UploadUploading, false},
		{UploadCompleted, true},
		{UploadAborted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			s := &UploadSession{Status: tt.status}
			assert.Equal(t, tt.want, s.Terminal())
		})
	}
}
