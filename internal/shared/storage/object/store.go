package object

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Object describes a stored image.
type Object struct {
	Key         string
	URL         string
	Size        int64
	ContentType string
}

// Store saves analysis inputs such as profile photos.
type Store interface {
	Put(ctx context.Context, userID, fileName, contentType string, data []byte) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

var ErrInvalidName = errors.New("invalid file name")

// NewKey returns "<hashed user>/<uuid>_<file name>".
func NewKey(userID, fileName string) (string, error) {
	name, err := SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join(HashUserKey(userID), fmt.Sprintf("%s_%s", uuid.NewString(), name)), nil
}

// ContentType returns declared when it is an image type, otherwise sniffs data.
func ContentType(declared string, data []byte) string {
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return http.DetectContentType(data)
}

// HashUserKey returns a path-safe identifier for a user ID.
func HashUserKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	s := strings.TrimSpace(name)
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(s)
	if s == "" {
		return "", ErrInvalidName
	}
	return s, nil
}
