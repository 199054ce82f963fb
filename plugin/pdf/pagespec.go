package pdf

import (
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// ParsePageSpec turns a spec such as "2-4,6" into sorted, distinct 1-based
// page numbers: [2 3 4 6]. Parts may be separated by commas or whitespace.
// Parts that are not numbers or ranges, or that contain a page below 1, are
// ignored.
func ParsePageSpec(spec string) []int {
	parts := strings.FieldsFunc(spec, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	var pages []int
	for _, part := range parts {
		if from, to, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(from)
			end, err2 := strconv.Atoi(to)
			if err1 != nil || err2 != nil || start < 1 || end < 1 {
				continue
			}
			for p := start; p <= end; p++ {
				pages = append(pages, p)
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil || p < 1 {
			continue
		}
		pages = append(pages, p)
	}

	slices.Sort(pages)
	return slices.Compact(pages)
}
