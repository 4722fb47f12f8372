package client

import "strconv"

func seedString(seed uint64) string {
	return strconv.FormatUint(seed, 10)
}

func parseSeed(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
