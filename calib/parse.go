package calib

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ParseFile reads the calibration file at path and builds a Calibration from it.
func ParseFile(path string) (*Calibration, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening calibration file")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return Parse(f)
}

// Parse builds a Calibration from calibration text.
func Parse(r io.Reader) (*Calibration, error) {
	values, err := ReadValues(r)
	if err != nil {
		return nil, err
	}
	return New(values)
}

// ReadValues reads `KEY: v0 v1 ...` lines into named vectors. Lines without a colon or with any value
// that is not a float (such as `calib_time: 2011-09-28 13:09:52`) are skipped.
func ReadValues(r io.Reader) (map[string][]float64, error) {
	values := make(map[string][]float64)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		vec, ok := parseFloats(rest)
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading calibration")
	}
	return values, nil
}

func parseFloats(s string) ([]float64, bool) {
	fields := strings.Fields(s)
	vec := make([]float64, 0, len(fields))
	for _, field := range fields {
		f, err := strconv.ParseFloat(field, 64)
		// Out of range values come back as +/-Inf, which is kept.
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, false
		}
		vec = append(vec, f)
	}
	return vec, true
}
