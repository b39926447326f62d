package commands

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// locator is a parsed file[:line[:col]] argument.
type locator struct {
	File   string
	Line   int
	Column int
}

func parseLocator(arg string) (locator, error) {
	parts := strings.Split(arg, ":")
	loc := locator{File: parts[0]}

	if len(parts) > 3 || loc.File == "" {
		return loc, errors.Errorf("invalid location %q, expected file[:line[:col]]", arg)
	}

	var err error
	if len(parts) >= 2 {
		loc.Line, err = strconv.Atoi(parts[1])
		if err != nil || loc.Line <= 0 {
			return loc, errors.Errorf("invalid line number %q", parts[1])
		}
	}
	if len(parts) == 3 {
		loc.Column, err = strconv.Atoi(parts[2])
		if err != nil || loc.Column <= 0 {
			return loc, errors.Errorf("invalid column number %q", parts[2])
		}
	}
	return loc, nil
}
