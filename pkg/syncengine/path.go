package syncengine

import (
	"sort"
	"strconv"
)

func sortStrings(s []string) { sort.Strings(s) }

func indexSegment(i int) string { return strconv.Itoa(i) }
