package cmd_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"parley/cmd"
	"parley/signal"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    signal.Config
		wantErr bool
	}{
		{
			name: "given valid args when parsed then return config",
			args: []string{"-port=8080", "-secret=hunter2", "-key=/path/to/key.pem", "-cert=/path/to/cert.pem"},
			want: signal.Config{Port: 8080, Secret: "hunter2", KeyFile: "/path/to/key.pem", CertFile: "/path/to/cert.pem"},
		},
		{
			name: "given missing port when parsed then return config with default port",
			args: []string{"-secret=hunter2"},
			want: signal.Config{Port: signal.DefaultPort, Secret: "hunter2"},
		},
		{
			name: "given no args when parsed then return config",
			args: []string{},
			want: signal.Config{Port: signal.DefaultPort},
		},
		{
			name:    "given extra args when parsed then return error",
			args:    []string{"-port=8080", "extra"},
			wantErr: true,
		},
		{
			name:    "given invalid flag format when parsed then return error",
			args:    []string{"-extra"},
			wantErr: true,
		},
		{
			name:    "given port flag without value when parsed then return error",
			args:    []string{"-port"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			got, err := cmd.Parse(&output, tt.args)
			if tt.wantErr {
				assert.Errorf(t, err, "parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Truef(t, got.IsSame(tt.want), "parse() = %v, want %v", got, tt.want)
		})
	}
}

func TestParseConfigFile(t *testing.T) {
	file, err := os.CreateTemp("", "config-*.yaml")
	assert.NoError(t, err)
	defer func() {
		_ = os.Remove(file.Name())
	}()
	_, err = file.WriteString("port: 9000\nsecret: from-file\ndebug: true\n")
	assert.NoError(t, err)
	assert.NoError(t, file.Close())

	t.Run("given config file when parsed then its values apply", func(t *testing.T) {
		var output bytes.Buffer
		got, err := cmd.Parse(&output, []string{"-config=" + file.Name()})
		assert.NoError(t, err)
		assert.Equal(t, 9000, got.Port)
		assert.Equal(t, "from-file", got.Secret)
		assert.True(t, got.Debug)
	})

	t.Run("given config file and flags when parsed then flags win", func(t *testing.T) {
		var output bytes.Buffer
		got, err := cmd.Parse(&output, []string{"-config=" + file.Name(), "-port=8080", "-secret=from-flag"})
		assert.NoError(t, err)
		assert.Equal(t, 8080, got.Port)
		assert.Equal(t, "from-flag", got.Secret)
	})

	t.Run("given missing config file when parsed then return error", func(t *testing.T) {
		var output bytes.Buffer
		_, err := cmd.Parse(&output, []string{"-config=/non/existent/config.yaml"})
		assert.Error(t, err)
	})
}

// Helper function to create a temporary file and return its path
func createTempFile() (string, error) {
	tmpFile, err := os.CreateTemp("", "testfile")
	if err != nil {
		return "", err
	}
	if closeErr := tmpFile.Close(); closeErr != nil {
		return "", closeErr
	}
	return tmpFile.Name(), nil
}

func TestSetupConfig(t *testing.T) {
	keyFile, err := createTempFile()
	assert.NoError(t, err)
	certFile, err := createTempFile()
	assert.NoError(t, err)
	defer func() {
		_ = os.Remove(keyFile)
		_ = os.Remove(certFile)
	}()

	tests := []struct {
		name     string
		args     []string
		expected signal.Config
		wantErr  bool
	}{
		{
			name: "given valid args when setup config then return valid config",
			args: []string{"-port=8080", "-secret=hunter2", "-key=" + keyFile, "-cert=" + certFile},
			expected: signal.Config{
				Port:     8080,
				Secret:   "hunter2",
				KeyFile:  keyFile,
				CertFile: certFile,
			},
		},
		{
			name: "given no cert files when setup config then return valid config",
			args: []string{"-port=8080", "-secret=hunter2"},
			expected: signal.Config{
				Port:   8080,
				Secret: "hunter2",
			},
		},
		{
			name:    "given no secret when setup config then return error",
			args:    []string{"-port=8080"},
			wantErr: true,
		},
		{
			name:    "given invalid port value when setup config then return error",
			args:    []string{"-port=70000", "-secret=hunter2"},
			wantErr: true,
		},
		{
			name:    "given non-existent cert file when setup config then return error",
			args:    []string{"-port=8080", "-secret=hunter2", "-key=" + keyFile, "-cert=/non/existent/cert.pem"},
			wantErr: true,
		},
		{
			name:    "given non-existent key file when setup config then return error",
			args:    []string{"-port=8080", "-secret=hunter2", "-cert=" + certFile, "-key=/non/existent/key.pem"},
			wantErr: true,
		},
		{
			name:    "given cert file without key file when setup config then return error",
			args:    []string{"-port=8080", "-secret=hunter2", "-cert=" + certFile},
			wantErr: true,
		},
		{
			name:    "given invalid flag format when setup config then return error",
			args:    []string{"-extra"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			config, err := cmd.SetupConfig(&output, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Truef(t, config.IsSame(tt.expected), "SetupConfig() = %v, expected %v", config, tt.expected)
		})
	}
}
