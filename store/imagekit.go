package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path"

	"github.com/imagekit-developer/imagekit-go"
	"github.com/imagekit-developer/imagekit-go/api/uploader"
	"github.com/use-agent/tokscrape/config"
)

// ImageKitObjects uploads blobs to an ImageKit media library. Keys map to
// folders below the configured root folder.
type ImageKitObjects struct {
	client *imagekit.ImageKit
	folder string
}

// NewImageKitObjects builds the client from cfg. Callers check
// cfg.Enabled and validate the keys beforehand.
func NewImageKitObjects(cfg config.ImageKitConfig) *ImageKitObjects {
	ik := imagekit.NewFromParams(imagekit.NewParams{
		PrivateKey:  cfg.PrivateKey,
		PublicKey:   cfg.PublicKey,
		UrlEndpoint: cfg.URLEndpoint,
	})
	return &ImageKitObjects{client: ik, folder: cfg.Folder}
}

func (o *ImageKitObjects) Name() string { return "imagekit" }

func (o *ImageKitObjects) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	dir, name := path.Split(key)
	folder := path.Join("/", o.folder, dir)

	resp, err := o.client.Uploader.Upload(ctx, base64.StdEncoding.EncodeToString(data), uploader.UploadParam{
		FileName: name,
		Folder:   folder,
	})
	if err != nil {
		return "", fmt.Errorf("imagekit upload %s: %w", key, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("imagekit upload %s failed: %s", key, resp.ParseError())
	}
	return resp.Data.Url, nil
}
