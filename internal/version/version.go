package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidFormat  = errors.New("invalid version format")
	ErrNegativeResult = errors.New("version calculation resulted in negative number")
)

var versionRe = regexp.MustCompile(`^([a-zA-Z]*)(\d+)$`)

// Version is a resource version like "v885": an optional alphabetic prefix
// followed by a decimal number.
type Version struct {
	Prefix string `json:"prefix"`
	Number int    `json:"number"`
}

func Parse(s string) (*Version, error) {
	m := versionRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil, fmt.Errorf("%w: %q (expected format: v123 or 123)", ErrInvalidFormat, s)
	}

	n, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidFormat, s, err)
	}

	return &Version{
		Prefix: m[1],
		Number: n,
	}, nil
}

func MustParse(s string) *Version {
	v, err := Parse(s)
	if err != nil {
		return &Version{}
	}

	return v
}

// Validate reports whether s is a well-formed version string.
func Validate(s string) bool {
	_, err := Parse(s)

	return err == nil
}

// Sub returns a new version with the number decreased by offset.
func (v Version) Sub(offset int) (*Version, error) {
	n := v.Number - offset

	if n < 0 {
		return nil, fmt.Errorf("%w: %s - %d = %d", ErrNegativeResult, v, offset, n)
	}

	return &Version{
		Prefix: v.Prefix,
		Number: n,
	}, nil
}

func (v Version) String() string {
	return v.Prefix + strconv.Itoa(v.Number)
}

// Decrement parses s and returns its string form with the number
// decreased by offset, e.g. Decrement("v885", 2) == "v883".
func Decrement(s string, offset int) (string, error) {
	v, err := Parse(s)
	if err != nil {
		return "", err
	}

	res, err := v.Sub(offset)
	if err != nil {
		return "", err
	}

	return res.String(), nil
}
