package notifier

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
)

var photoHTTP = &http.Client{Timeout: 20 * time.Second}

// MergePhotos downloads the feedback photos and pastes them side by side
// into one PNG strip for a single-attachment notification.
func MergePhotos(ctx context.Context, urls []string) ([]byte, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no photos to merge")
	}

	images := make([]image.Image, 0, len(urls))
	for _, u := range urls {
		img, err := downloadImage(ctx, u)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	totalWidth := 0
	maxHeight := 0
	for _, img := range images {
		bounds := img.Bounds()
		totalWidth += bounds.Dx()
		if bounds.Dy() > maxHeight {
			maxHeight = bounds.Dy()
		}
	}

	merged := imaging.New(totalWidth, maxHeight, color.White)
	xOffset := 0
	for _, img := range images {
		merged = imaging.Paste(merged, img, image.Pt(xOffset, 0))
		xOffset += img.Bounds().Dx()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, merged, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func downloadImage(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := photoHTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo download failed: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return imaging.Decode(bytes.NewReader(data))
}
