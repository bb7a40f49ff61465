package main

import (
	"fmt"
	"strconv"
)

func parseIntArg(arg, valueName string) (int, error) {
	value, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}
	return value, nil
}

func formatRaw(p *int) string {
	if p == nil {
		return "unknown"
	}
	return strconv.Itoa(*p)
}
