package cmd

import (
	"testing"

	"github.com/dbsmedya/pgrelay/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestResolveDBConfig(t *testing.T) {
	cfg := &config.Config{
		Source: config.DatabaseConfig{Database: "src_db"},
		Target: config.DatabaseConfig{Database: "tgt_db"},
	}

	tests := []struct {
		name    string
		which   string
		want    string
		wantErr bool
	}{
		{name: "source", which: "source", want: "src_db"},
		{name: "target", which: "target", want: "tgt_db"},
		{name: "invalid", which: "bogus", wantErr: true},
		{name: "empty", which: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveDBConfig(cfg, tt.which)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got.Database)
		})
	}
}
