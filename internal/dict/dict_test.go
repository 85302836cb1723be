package dict

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	d, err := Load("", "")
	require.NoError(t, err)

	assert.Contains(t, d.Usernames(), "admin")
	assert.Contains(t, d.Passwords(), "12345")
	assert.Contains(t, d.Routes(), "live.sdp")
	assert.Equal(t, "/", d.Routes()[0])
}

func TestLoadCredentials(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		usernames []string
		passwords []string
		wantErr   bool
	}{
		{
			name:      "json",
			content:   `{"usernames": ["admin", "root"], "passwords": ["123456", "admin"]}`,
			usernames: []string{"admin", "root"},
			passwords: []string{"123456", "admin"},
		},
		{
			name:      "yaml",
			content:   "usernames:\n  - admin\npasswords:\n  - \"\"\n  - admin\n",
			usernames: []string{"admin"},
			passwords: []string{"", "admin"},
		},
		{
			name:      "legacy keys",
			content:   `{"username": ["root"], "password": ["pass"]}`,
			usernames: []string{"root"},
			passwords: []string{"pass"},
		},
		{
			name:    "empty file",
			content: "  \n",
			wantErr: true,
		},
		{
			name:    "no passwords",
			content: `{"usernames": ["admin"]}`,
			wantErr: true,
		},
		{
			name:    "malformed",
			content: `{"usernames": [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "credentials.json", tt.content)
			usernames, passwords, err := LoadCredentials(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.usernames, usernames)
			assert.Equal(t, tt.passwords, passwords)
		})
	}
}

func TestLoadCredentials_EmptyIsErrEmptyDictionary(t *testing.T) {
	_, _, err := LoadCredentials(writeFile(t, "credentials.json", ""))
	assert.ErrorIs(t, err, ErrEmptyDictionary)
}

func TestLoadCredentials_MissingFile(t *testing.T) {
	_, _, err := LoadCredentials(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRoutes(t *testing.T) {
	t.Run("lines", func(t *testing.T) {
		path := writeFile(t, "routes", "# comment\nlive.sdp\n\n  h264  \ncam/realmonitor?channel=1&subtype=0\n")
		routes, err := LoadRoutes(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"live.sdp", "h264", "cam/realmonitor?channel=1&subtype=0"}, routes)
	})

	t.Run("json", func(t *testing.T) {
		path := writeFile(t, "routes.json", `{"urls": ["live", "stream1"]}`)
		routes, err := LoadRoutes(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"live", "stream1"}, routes)
	})

	t.Run("only comments", func(t *testing.T) {
		_, err := LoadRoutes(writeFile(t, "routes", "# nothing\n\n"))
		assert.ErrorIs(t, err, ErrEmptyDictionary)
	})

	t.Run("empty json", func(t *testing.T) {
		_, err := LoadRoutes(writeFile(t, "routes.json", `{"urls": []}`))
		assert.ErrorIs(t, err, ErrEmptyDictionary)
	})
}

func TestNew_PreservesOrder(t *testing.T) {
	d := New([]string{"b", "a"}, []string{"2", "1"}, []string{"y", "x"})
	assert.Equal(t, []string{"b", "a"}, d.Usernames())
	assert.Equal(t, []string{"2", "1"}, d.Passwords())
	assert.Equal(t, []string{"y", "x"}, d.Routes())
}
