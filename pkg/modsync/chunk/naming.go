package chunk

import (
	"fmt"
	"regexp"
	"strconv"
)

// MaxChunks bounds the number of fragments a single file may be split into.
const MaxChunks = 9999

var fragmentPattern = regexp.MustCompile(`\.part[0-9]{2,}$`)

// FragmentName returns the name of fragment index (1-based) of count for a
// file named base: "<base>.partNN". The index is zero padded to two digits,
// or to the width of count when count has more than two digits, so that
// every fragment of one file has the same width.
func FragmentName(base string, index, count int) string {
	width := len(strconv.Itoa(count))
	if width < 2 {
		width = 2
	}
	return fmt.Sprintf("%s.part%0*d", base, width, index)
}

// IsFragmentName reports whether name looks like a fragment produced by Split.
func IsFragmentName(name string) bool {
	return fragmentPattern.MatchString(name)
}

// chunkCount returns ceil(size / chunkSize).
func chunkCount(size, chunkSize uint64) uint64 {
	if size == 0 {
		return 0
	}
	return (size + chunkSize - 1) / chunkSize
}
