package exthash

import (
	"github.com/npillmayer/exthash/page"
	"github.com/npillmayer/schuko"
)

// Options configure a Table.
type Options struct {
	PageSize    int    // bytes per page, multiple of 8 in [512, 65536]
	MaxDepth    uint32 // limit for the directory depth, at most 32
	Seed        int64  // seed for the probe step shuffling
	CheckGroups bool   // verify on every insert that hashes reach the right page
	DirSize     uint32 // directory slots of the initial page; 0 derives it from PageSize
}

// DefaultOptions returns options for 4 KB pages and a directory of at most
// 2^24 entries.
func DefaultOptions() Options {
	return Options{
		PageSize: 4096,
		MaxDepth: 24,
		Seed:     1,
	}
}

// Configuration keys read by OptionsFromConfiguration.
const (
	ConfPageSize    = "exthash.pagesize"
	ConfMaxDepth    = "exthash.maxdepth"
	ConfSeed        = "exthash.seed"
	ConfCheckGroups = "exthash.checkgroups"
	ConfDirSize     = "exthash.dirsize"
)

// OptionsFromConfiguration reads table options from an application
// configuration. Keys which are not set keep their default values; illegal
// values are corrected.
func OptionsFromConfiguration(conf schuko.Configuration) Options {
	opts := DefaultOptions()
	if conf.IsSet(ConfPageSize) {
		opts.PageSize = conf.GetInt(ConfPageSize)
	}
	if conf.IsSet(ConfMaxDepth) {
		opts.MaxDepth = uint32(max(0, conf.GetInt(ConfMaxDepth)))
	}
	if conf.IsSet(ConfSeed) {
		opts.Seed = int64(conf.GetInt(ConfSeed))
	}
	if conf.IsSet(ConfCheckGroups) {
		opts.CheckGroups = conf.GetBool(ConfCheckGroups)
	}
	if conf.IsSet(ConfDirSize) {
		opts.DirSize = uint32(max(0, conf.GetInt(ConfDirSize)))
	}
	return opts.normalize()
}

// normalize corrects illegal option values.
func (opts Options) normalize() Options {
	if size := opts.PageSize &^ (page.Align - 1); size != opts.PageSize {
		tracer().Errorf("page size %d is not a multiple of %d", opts.PageSize, page.Align)
		opts.PageSize = size
	}
	if opts.PageSize < page.MinPageSize {
		tracer().Errorf("page size %d raised to %d", opts.PageSize, page.MinPageSize)
		opts.PageSize = page.MinPageSize
	} else if opts.PageSize > page.MaxPageSize {
		tracer().Errorf("page size %d lowered to %d", opts.PageSize, page.MaxPageSize)
		opts.PageSize = page.MaxPageSize
	}
	if opts.MaxDepth < 1 {
		opts.MaxDepth = 1
	} else if opts.MaxDepth > page.MaxDepth {
		opts.MaxDepth = page.MaxDepth
	}
	if opts.DirSize == 0 {
		opts.DirSize = uint32(opts.PageSize / 32)
	}
	return opts
}
