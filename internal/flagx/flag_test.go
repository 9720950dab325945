package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-d", "postgres://db", "-x", "1"},
			allowed: []string{"-d"},
			want:    []string{"-d", "postgres://db"},
		},
		{
			name:    "equals form",
			args:    []string{"--config=alt.json", "-a", ":8080"},
			allowed: []string{"--config"},
			want:    []string{"--config=alt.json"},
		},
		{
			name:    "order preserved across several flags",
			args:    []string{"-a", ":8080", "create-account", "-s", "k", "-u", "alice"},
			allowed: []string{"-s", "-a"},
			want:    []string{"-a", ":8080", "-s", "k"},
		},
		{
			name:    "flag at end without value",
			args:    []string{"-s"},
			allowed: []string{"-s"},
			want:    []string{"-s"},
		},
		{
			name:    "dash token is not a value",
			args:    []string{"-s", "-t", "5"},
			allowed: []string{"-s"},
			want:    []string{"-s"},
		},
		{
			name:    "unknown flags dropped",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "empty",
			args:    nil,
			allowed: []string{"-c"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigFilePath(t *testing.T) {
	assert.Equal(t, "conf.json", ConfigFilePath([]string{"-a", ":1", "-c", "conf.json"}))
	assert.Equal(t, "alt.json", ConfigFilePath([]string{"-config=alt.json"}))
	assert.Equal(t, "", ConfigFilePath([]string{"-a", ":1"}))
	assert.Equal(t, "", ConfigFilePath(nil))
}
