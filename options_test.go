package exthash

import (
	"testing"

	"github.com/npillmayer/schuko/schukonf/testconfig"
)

func TestOptionsFromConfiguration(t *testing.T) {
	tests := []struct {
		conf testconfig.Conf
		want Options
	}{
		{testconfig.Conf{}, Options{PageSize: 4096, MaxDepth: 24, Seed: 1, DirSize: 128}},
		{testconfig.Conf{
			"exthash.pagesize":    "1001",
			"exthash.maxdepth":    "40",
			"exthash.seed":        "7",
			"exthash.checkgroups": "true",
		}, Options{PageSize: 1000, MaxDepth: 32, Seed: 7, CheckGroups: true, DirSize: 31}},
		{testconfig.Conf{
			"exthash.pagesize": 100,
			"exthash.maxdepth": "0",
			"exthash.dirsize":  "64",
		}, Options{PageSize: 512, MaxDepth: 1, Seed: 1, DirSize: 64}},
		{testconfig.Conf{"exthash.pagesize": "1000000"}, Options{PageSize: 65536, MaxDepth: 24, Seed: 1, DirSize: 2048}},
	}
	for i, tt := range tests {
		if got := OptionsFromConfiguration(tt.conf); got != tt.want {
			t.Fatalf("case %d: got %+v, want %+v", i, got, tt.want)
		}
	}
}

func TestNewNormalizesOptions(t *testing.T) {
	tbl := New(Options{})
	opts := tbl.Options()
	if opts.PageSize != 512 || opts.MaxDepth != 1 || opts.DirSize != 16 {
		t.Fatalf("options not normalized: %+v", opts)
	}
}
