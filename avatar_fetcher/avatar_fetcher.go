package avatar_fetcher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingAvatar  = errors.New("character has no avatar")
	ErrFetchFailed    = errors.New("avatar fetch failed")
	ErrNotAnImage     = errors.New("avatar is not an image")
	ErrAvatarTooLarge = errors.New("avatar exceeds size limit")
)

const defaultMaxBytes = 10 << 20

// AvatarFetcher downloads a character avatar and returns it base64 encoded, ready to embed in a backend request.
type AvatarFetcher interface {
	FetchBase64(ctx context.Context, avatarURL string) (string, error)
}

type Config struct {
	Timeout  time.Duration
	MaxBytes int64
}

type fetcherImpl struct {
	client   *resty.Client
	maxBytes int64
}

func New(cfg Config) (AvatarFetcher, error) {
	if cfg.Timeout <= 0 {
		return nil, errors.New("missing timeout")
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	return &fetcherImpl{
		client:   resty.New().SetTimeout(cfg.Timeout),
		maxBytes: maxBytes,
	}, nil
}

func (f *fetcherImpl) FetchBase64(ctx context.Context, avatarURL string) (string, error) {
	avatarURL = strings.TrimSpace(avatarURL)
	if avatarURL == "" {
		return "", ErrMissingAvatar
	}

	resp, err := f.client.R().SetContext(ctx).Get(avatarURL)
	if err != nil {
		log.Warn().Err(err).Str("url", avatarURL).Msg("Error fetching avatar")

		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("%w: %d", ErrFetchFailed, resp.StatusCode())
	}

	data := resp.Body()

	if int64(len(data)) > f.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrAvatarTooLarge, len(data))
	}

	mimeType := mimetype.Detect(data)
	if !strings.HasPrefix(mimeType.String(), "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotAnImage, mimeType.String())
	}

	return base64.StdEncoding.EncodeToString(data), nil
}
