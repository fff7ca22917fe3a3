package extractors

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/threatlens/threatlens/internal/models"
)

// ErrNoRecords reports that no line of the input matched the record pattern.
var ErrNoRecords = errors.New("no log entries matched the expected format")

var (
	linePattern     = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})\s+(\S+)\s+(\S+):\s+\[(\d+)\]\s+(.*)$`)
	severityPattern = regexp.MustCompile(`error|critical|warning|fatal`)
	securityPattern = regexp.MustCompile(`unauthorized|failure|crash|error`)
)

const specialChars = `!@#$%^&*(),.?":{}|<>`

// LogsExtractor turns raw log text into feature-bearing records.
type LogsExtractor struct {
	logger *slog.Logger
}

// NewLogsExtractor constructs a log feature extractor.
func NewLogsExtractor(logger *slog.Logger) *LogsExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogsExtractor{logger: logger}
}

// Extract parses every line of text and returns the matching records in input order.
// Lines that do not match are dropped silently; an empty result is logged, not returned as an error.
func (e *LogsExtractor) Extract(text string) []models.LogRecord {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	records := make([]models.LogRecord, 0, len(lines))
	for _, line := range lines {
		if record, ok := ParseLine(strings.TrimSuffix(line, "\r")); ok {
			records = append(records, record)
		}
	}
	if len(records) == 0 {
		e.logger.Warn("no log entries matched the expected format", slog.Int("lines", len(lines)))
	}
	return records
}

// ExtractStrict is Extract but reports ErrNoRecords when nothing matched.
func (e *LogsExtractor) ExtractStrict(text string) ([]models.LogRecord, error) {
	records := e.Extract(text)
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// ParseLine matches a single line against the record pattern.
func ParseLine(line string) (models.LogRecord, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return models.LogRecord{}, false
	}
	record := models.LogRecord{
		Timestamp: m[1],
		Source:    m[2],
		Process:   m[3],
		PID:       m[4],
		Message:   m[5],
	}
	f := MessageFeatures(record.Message)
	record.Feature1, record.Feature2, record.Feature3, record.Feature4, record.Feature5 = f[0], f[1], f[2], f[3], f[4]
	return record, true
}

// MessageFeatures derives the five model features from a log message.
func MessageFeatures(message string) [5]float64 {
	lower := strings.ToLower(message)

	var upper, special int
	for _, r := range message {
		if r >= 'A' && r <= 'Z' {
			upper++
		}
		if strings.ContainsRune(specialChars, r) {
			special++
		}
	}

	security := 0.0
	if countWords(securityPattern, lower) > 0 {
		security = 1
	}

	return [5]float64{
		float64(utf8.RuneCountInString(message)),
		float64(countWords(severityPattern, lower)),
		float64(upper),
		float64(special),
		security,
	}
}

// countWords counts matches of pattern that stand as whole words. RE2's \b only knows ASCII,
// so the neighbouring runes are checked against Unicode letters, numbers and '_'.
func countWords(pattern *regexp.Regexp, text string) int {
	n := 0
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		before, _ := utf8.DecodeLastRuneInString(text[:loc[0]])
		after, _ := utf8.DecodeRuneInString(text[loc[1]:])
		if loc[0] > 0 && isWordRune(before) {
			continue
		}
		if loc[1] < len(text) && isWordRune(after) {
			continue
		}
		n++
	}
	return n
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
