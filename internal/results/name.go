package results

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultExtension is the suffix the benchmark pipeline gives its result files.
const DefaultExtension = ".data"

// DateLayout matches the date and time prefix of a structured result filename.
const DateLayout = "2006-01-02.15:04:05"

var (
	ErrInvalidName = errors.New("invalid result file name")
	ErrNotFound    = errors.New("result file not found")
)

var (
	reName   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})\.([0-9:]+)-([a-f0-9]+)-(.+?)$`)
	reCommit = regexp.MustCompile(`^[a-f0-9]+$`)
)

// Name is a result file identifier parsed from a URL segment or directory entry.
// Structured names look like 2024-01-01.12:00:00-deadbeef-main.data; legacy
// names are a bare commit hash whose file is <commit><ext>.
type Name struct {
	File   string
	Year   string
	Month  string
	Day    string
	Time   string
	Commit string
	Branch string
	Legacy bool
}

// ParseName parses a structured result filename carrying the given extension.
func ParseName(segment, ext string) (Name, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	stem, ok := strings.CutSuffix(segment, ext)
	if !ok || stem == "" {
		return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, segment)
	}
	m := reName.FindStringSubmatch(stem)
	if m == nil {
		return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, segment)
	}
	return Name{
		File:   segment,
		Year:   m[1],
		Month:  m[2],
		Day:    m[3],
		Time:   m[4],
		Commit: m[5],
		Branch: m[6],
	}, nil
}

// ParseCommit accepts a bare hex commit hash as used by the older URL scheme.
func ParseCommit(segment, ext string) (Name, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	if !reCommit.MatchString(segment) {
		return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, segment)
	}
	return Name{File: segment + ext, Commit: segment, Legacy: true}, nil
}

// Date returns the embedded date and time exactly as written in the filename.
func (n Name) Date() string {
	if n.Legacy {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s.%s", n.Year, n.Month, n.Day, n.Time)
}

// Timestamp parses Date. Legacy names carry no date.
func (n Name) Timestamp() (time.Time, error) {
	if n.Legacy {
		return time.Time{}, fmt.Errorf("%w: %q has no embedded date", ErrInvalidName, n.File)
	}
	return time.ParseInLocation(DateLayout, n.Date(), time.Local)
}

// ShortCommit returns the first eight characters of the commit hash.
func (n Name) ShortCommit() string {
	return ShortCommit(n.Commit)
}

func (n Name) String() string {
	return n.File
}

// ShortCommit truncates a commit hash to eight characters.
func ShortCommit(commit string) string {
	if len(commit) <= 8 {
		return commit
	}
	return commit[:8]
}
