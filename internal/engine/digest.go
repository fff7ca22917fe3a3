package engine

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/threatlens/threatlens/internal/models"
)

const (
	noMetadataInfo  = "No EXIF metadata found in the image"
	metadataFailure = "Failed to process image metadata"
)

// Baseline reports whether a digest belongs to the reference table.
type Baseline interface {
	Contains(digest string) bool
}

// DigestReporter fingerprints uploaded files and images.
type DigestReporter struct {
	logger   *slog.Logger
	baseline Baseline
}

// NewDigestReporter builds a reporter over the reference digest table.
func NewDigestReporter(baseline Baseline, logger *slog.Logger) *DigestReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DigestReporter{logger: logger, baseline: baseline}
}

// Digest is the lowercase hex SHA-256 of content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// File reports "Yes" for any digest missing from the reference table.
func (r *DigestReporter) File(content []byte) models.DigestReport {
	digest := Digest(content)
	verdict := models.TamperingYes
	if r.baseline != nil && r.baseline.Contains(digest) {
		verdict = models.TamperingNone
	}
	return models.DigestReport{Digest: digest, TamperingDetected: verdict}
}

// Image digests content and collects its EXIF tags. Tampering is never reported.
func (r *DigestReporter) Image(content []byte) models.DigestReport {
	return models.DigestReport{
		Digest:            Digest(content),
		Metadata:          r.imageMetadata(content),
		TamperingDetected: models.TamperingNone,
	}
}

func (r *DigestReporter) imageMetadata(content []byte) (metadata map[string]string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("image metadata", slog.Any("panic", rec))
			metadata = map[string]string{"error": metadataFailure}
		}
	}()

	if _, _, err := image.DecodeConfig(bytes.NewReader(content)); err != nil {
		r.logger.Error("image metadata", slog.Any("error", err))
		return map[string]string{"error": metadataFailure}
	}

	x, err := exif.Decode(bytes.NewReader(content))
	if x == nil {
		if err != nil {
			r.logger.Debug("no exif block", slog.Any("error", err))
		}
		return map[string]string{"info": noMetadataInfo}
	}

	tags := tagCollector{}
	if err := x.Walk(tags); err != nil {
		r.logger.Error("image metadata", slog.Any("error", err))
		return map[string]string{"error": metadataFailure}
	}
	if len(tags) == 0 {
		return map[string]string{"info": noMetadataInfo}
	}
	return tags
}

type tagCollector map[string]string

func (c tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag.Format() == tiff.StringVal {
		if s, err := tag.StringVal(); err == nil {
			c[string(name)] = strings.TrimRight(s, "\x00")
			return nil
		}
	}
	c[string(name)] = tag.String()
	return nil
}
