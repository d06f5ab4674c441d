package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	testOwner    = "0x1111111111111111111111111111111111111111"
	testTreasury = "0x2222222222222222222222222222222222222222"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := Load(path); err == nil {
		t.Fatal("missing owner in generated default must surface an error")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file should have been created: %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
RPCAddress = ":9000"
DataDir = "/tmp/benevault-test"
VaultCount = 3
Owner = "`+testOwner+`"
Treasury = "`+testTreasury+`"

[[Genesis]]
Address = "`+testOwner+`"
Balance = "1000000000000000000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9000" || cfg.VaultCount != 3 {
		t.Fatalf("config fields wrong: %+v", cfg)
	}
	if cfg.OwnerAddress() == ([20]byte{}) || cfg.TreasuryAddress() == ([20]byte{}) {
		t.Fatal("parsed addresses must not be zero")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
Owner = "`+testOwner+`"
Treasury = "`+testTreasury+`"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress == "" || cfg.DataDir == "" || cfg.VaultCount == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing owner",
			body: `Treasury = "` + testTreasury + `"`,
			want: "Owner",
		},
		{
			name: "malformed owner",
			body: `Owner = "not-an-address"
Treasury = "` + testTreasury + `"`,
			want: "Owner",
		},
		{
			name: "missing treasury",
			body: `Owner = "` + testOwner + `"`,
			want: "Treasury",
		},
		{
			name: "vault count too large",
			body: `VaultCount = 100000
Owner = "` + testOwner + `"
Treasury = "` + testTreasury + `"`,
			want: "VaultCount",
		},
		{
			name: "bad genesis balance",
			body: `Owner = "` + testOwner + `"
Treasury = "` + testTreasury + `"

[[Genesis]]
Address = "` + testOwner + `"
Balance = "-5"`,
			want: "Balance",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
