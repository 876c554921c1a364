package exthash

import (
	"github.com/npillmayer/exthash/page"
	"github.com/pingcap/errors"
)

// Errors returned by Table operations. They are returned annotated;
// compare with errors.Cause.
var (
	// ErrFull is returned if a record cannot be placed because its page is
	// full and cannot be split any further.
	ErrFull = errors.New("page full")
	// ErrWrongGroup signals a hash routed to a page of a different hash
	// group. It is only detected with Options.CheckGroups set.
	ErrWrongGroup = errors.New("hash routed to wrong page")
	// ErrAllocation is returned if the directory would have to grow beyond
	// Options.MaxDepth. The table is left unchanged.
	ErrAllocation = errors.New("directory cannot grow")
	// ErrRecordTooLarge is returned for records which would not fit into an
	// empty page.
	ErrRecordTooLarge = errors.New("record too large")
	// ErrStaleHandle is returned for handles obtained before their page was
	// reorganized, or for handles which never pointed to a record.
	ErrStaleHandle = errors.New("stale handle")
	// ErrCorrupt flags a table or snapshot which fails validation.
	ErrCorrupt = page.ErrCorrupt
)
