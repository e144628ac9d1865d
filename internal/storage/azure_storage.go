package storage

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "go-endoqa/internal/errors"
)

// blobDownloader opens a blob for reading
type blobDownloader func(ctx context.Context, container, blob string) (io.ReadCloser, error)

// AzureFrameSource reads frames from Azure blob storage.
// References look like azblob://<container>/<blob path>.
type AzureFrameSource struct {
	download blobDownloader
}

// NewAzureFrameSource creates a blob frame source using shared key credentials
func NewAzureFrameSource(accountName string, accountKey string) (*AzureFrameSource, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}

	return newAzureFrameSource(func(ctx context.Context, container, blob string) (io.ReadCloser, error) {
		resp, err := client.DownloadStream(ctx, container, blob, nil)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}), nil
}

func newAzureFrameSource(download blobDownloader) *AzureFrameSource {
	return &AzureFrameSource{download: download}
}

// ParseBlobRef splits an azblob:// reference into container and blob name
func ParseBlobRef(ref string) (container, blob string, err error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", "", apperrors.NewValidationError("invalid blob reference", err).WithDetails(ref)
	}
	if u.Scheme != "azblob" {
		return "", "", apperrors.NewValidationError("blob reference must use the azblob scheme", nil).WithDetails(ref)
	}

	container = u.Host
	blob = strings.TrimPrefix(u.Path, "/")
	if container == "" || blob == "" {
		return "", "", apperrors.NewValidationError("blob reference needs a container and a blob name", nil).WithDetails(ref)
	}
	return container, blob, nil
}

// FetchFrame downloads and decodes the blob named by ref
func (s *AzureFrameSource) FetchFrame(ctx context.Context, ref string) (*image.Gray, error) {
	container, blob, err := ParseBlobRef(ref)
	if err != nil {
		return nil, err
	}

	body, err := s.download(ctx, container, blob)
	if err != nil {
		return nil, apperrors.NewNetworkError("blob download failed", err).WithDetails(ref)
	}
	defer body.Close()

	return DecodeFrame(body, ref)
}
