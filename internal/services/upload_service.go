package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

const MaxImageBytes = 5 << 20

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageStore persists an uploaded image and returns its public URL.
type ImageStore interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
}

// LocalStore writes into Dir; files are served under URLPrefix.
type LocalStore struct {
	Dir       string
	URLPrefix string
}

func (s LocalStore) Put(_ context.Context, name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return strings.TrimRight(s.URLPrefix, "/") + "/" + name, nil
}

// CloudinaryStore uploads to Cloudinary using a CLOUDINARY_URL.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	Folder string
}

func NewCloudinaryStore(url, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	return &CloudinaryStore{cld: cld, Folder: folder}, nil
}

func (s *CloudinaryStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	res, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID: strings.TrimSuffix(name, filepath.Ext(name)),
		Folder:   s.Folder,
	})
	if err != nil {
		return "", err
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

type UploadService struct {
	Store ImageStore
}

func NewUploadService(store ImageStore) *UploadService { return &UploadService{Store: store} }

// Image sniffs the content type, enforces the size cap and stores the file
// under a random name.
func (s *UploadService) Image(ctx context.Context, size int64, r io.Reader) (string, error) {
	if size <= 0 {
		return "", BadRequest("empty file")
	}
	if size > MaxImageBytes {
		return "", BadRequest("image exceeds 5 MB")
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", BadRequest("unreadable file")
	}
	head = head[:n]
	ext, ok := imageExt[http.DetectContentType(head)]
	if !ok {
		return "", BadRequest("only jpeg, png, gif and webp images are accepted")
	}
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), MaxImageBytes)
	return s.Store.Put(ctx, uuid.NewString()+ext, body)
}
