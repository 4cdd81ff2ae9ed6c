package image_storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyImage   = errors.New("empty image data")
	ErrInvalidImage = errors.New("invalid image data")
)

// ImageStore saves generated images. The returned reference is a path relative to the store root.
type ImageStore interface {
	SaveBase64(ctx context.Context, data, subdir, filename string) (string, error)
	Path(reference string) string
}

type Config struct {
	Dir string
}

type storeImpl struct {
	dir string
}

func New(cfg Config) (ImageStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("missing images directory")
	}

	err := os.MkdirAll(cfg.Dir, 0o755)
	if err != nil {
		return nil, err
	}

	return &storeImpl{dir: cfg.Dir}, nil
}

func (s *storeImpl) SaveBase64(ctx context.Context, data, subdir, filename string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if data == "" {
		return "", ErrEmptyImage
	}

	// Some backends prefix the payload with a data URL header.
	if _, payload, found := strings.Cut(data, ";base64,"); found {
		data = payload
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	if len(decoded) == 0 {
		return "", ErrEmptyImage
	}

	extension := mimetype.Detect(decoded).Extension()
	if extension == "" {
		extension = ".png"
	}

	subdir = safeName(subdir)
	reference := filepath.Join(subdir, safeName(filename)+extension)
	fullPath := filepath.Join(s.dir, reference)

	err = os.MkdirAll(filepath.Dir(fullPath), 0o755)
	if err != nil {
		return "", err
	}

	err = os.WriteFile(fullPath, decoded, 0o644)
	if err != nil {
		log.Error().Err(err).Str("path", fullPath).Msg("Error saving image")

		return "", err
	}

	log.Info().Str("path", fullPath).Int("bytes", len(decoded)).Msg("Saved image")

	return filepath.ToSlash(reference), nil
}

func (s *storeImpl) Path(reference string) string {
	return filepath.Join(s.dir, filepath.FromSlash(reference))
}

func safeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}

		return r
	}, name)

	name = strings.Trim(name, ".")
	if name == "" {
		return "unnamed"
	}

	return name
}
