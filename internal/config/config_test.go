package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
[settings]
bgp_url    = "https://bgp.tools/table.txt"
user_agent = "prefixgen-test/1.0 (mailto:ops@example.com)"
timeout    = "90s"

[sets.chinanet]
asns   = [56040, 4134]
output = "data/cn.txt"
merged = true

[sets.arelion]
asns   = [1299]
output = "data/arelion.txt"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefixgen.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://bgp.tools/table.txt", cfg.Settings.BGPURL)
	assert.Equal(t, 90*time.Second, cfg.FetchTimeout())

	sets := cfg.TargetSets()
	require.Len(t, sets, 2)
	// stable name order, independent of map iteration
	assert.Equal(t, "arelion", sets[0].Name)
	assert.Equal(t, "chinanet", sets[1].Name)
	assert.True(t, sets[1].Merged)
	assert.Equal(t, "data/cn.txt", sets[1].Output)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing url",
			content: `
[settings]
user_agent = "x"
[sets.a]
asns = [1]
output = "a.txt"
`,
			wantErr: "bgp_url",
		},
		{
			name: "missing user agent",
			content: `
[settings]
bgp_url = "https://example.com/t.txt"
[sets.a]
asns = [1]
output = "a.txt"
`,
			wantErr: "user_agent",
		},
		{
			name: "no sets",
			content: `
[settings]
bgp_url = "https://example.com/t.txt"
user_agent = "x"
`,
			wantErr: "at least one",
		},
		{
			name: "empty asns",
			content: `
[settings]
bgp_url = "https://example.com/t.txt"
user_agent = "x"
[sets.a]
asns = []
output = "a.txt"
`,
			wantErr: "asns must not be empty",
		},
		{
			name: "missing output",
			content: `
[settings]
bgp_url = "https://example.com/t.txt"
user_agent = "x"
[sets.a]
asns = [1]
`,
			wantErr: "output is required",
		},
		{
			name: "duplicate output",
			content: `
[settings]
bgp_url = "https://example.com/t.txt"
user_agent = "x"
[sets.a]
asns = [1]
output = "same.txt"
[sets.b]
asns = [2]
output = "same.txt"
`,
			wantErr: "already used",
		},
		{
			name: "bad timeout",
			content: `
[settings]
bgp_url = "https://example.com/t.txt"
user_agent = "x"
timeout = "soon"
[sets.a]
asns = [1]
output = "a.txt"
`,
			wantErr: "timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFetchTimeoutDefault(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 120*time.Second, cfg.FetchTimeout())
}

func TestSortedASNs(t *testing.T) {
	set := TargetSet{ASNs: []uint32{56040, 4134, 9929}}
	assert.Equal(t, []uint32{4134, 9929, 56040}, set.SortedASNs())
	// the accessor must not reorder the original slice
	assert.Equal(t, []uint32{56040, 4134, 9929}, set.ASNs)
}

func TestASNList(t *testing.T) {
	set := TargetSet{ASNs: []uint32{56040, 4134}}
	assert.Equal(t, "4134, 56040", set.ASNList())
}
