// Package storage uploads menu images to Cloudinary.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

var ErrNotConfigured = errors.New("image storage is not configured")

// Image is a stored image.
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// ImageStore stores and deletes images.
type ImageStore interface {
	Upload(ctx context.Context, file io.Reader, name string) (Image, error)
	Delete(ctx context.Context, publicID string) error
}

// Cloudinary is an ImageStore backed by Cloudinary.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinary(cloudName, apiKey, apiSecret, folder string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld, folder: folder}, nil
}

// Upload stores the image under the configured folder, square-cropped for
// the kiosk grid.
func (c *Cloudinary) Upload(ctx context.Context, file io.Reader, name string) (Image, error) {
	res, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:         c.folder,
		PublicID:       name,
		ResourceType:   "image",
		Transformation: "c_fill,w_800,h_800,q_auto",
	})
	if err != nil {
		return Image{}, fmt.Errorf("upload image: %w", err)
	}
	if res.Error.Message != "" {
		return Image{}, fmt.Errorf("upload image: %s", res.Error.Message)
	}
	return Image{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	if _, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// Disabled is used when no Cloudinary credentials are configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, io.Reader, string) (Image, error) {
	return Image{}, ErrNotConfigured
}

func (Disabled) Delete(context.Context, string) error { return nil }

// New returns a Cloudinary store, or Disabled when cloudName is empty.
func New(cloudName, apiKey, apiSecret, folder string) (ImageStore, error) {
	if cloudName == "" {
		return Disabled{}, nil
	}
	return NewCloudinary(cloudName, apiKey, apiSecret, folder)
}
