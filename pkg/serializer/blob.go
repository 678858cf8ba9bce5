package serializer

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sptgo/gameserver/pkg/blobstore"
	"github.com/sptgo/gameserver/pkg/mongoid"
)

// ImageSerializer streams image files addressed by the request path.
type ImageSerializer struct {
	Marker
	store blobstore.Store
}

// NewImageSerializer serves images from store for routes returning "IMAGE".
func NewImageSerializer(store blobstore.Store) *ImageSerializer {
	return &ImageSerializer{Marker: MarkerImage, store: store}
}

// Name implements Serializer.
func (s *ImageSerializer) Name() string { return "image" }

// Serialize implements Serializer.
func (s *ImageSerializer) Serialize(_ mongoid.ID, r *http.Request, w http.ResponseWriter, _ string) error {
	return sendBlob(s.store, r.URL.Path, "", r, w)
}

// BundleSerializer streams mod asset bundles from /files/bundle/<key>.
type BundleSerializer struct {
	Marker
	store blobstore.Store
}

// NewBundleSerializer serves bundles from store for routes returning "BUNDLE".
func NewBundleSerializer(store blobstore.Store) *BundleSerializer {
	return &BundleSerializer{Marker: MarkerBundle, store: store}
}

// Name implements Serializer.
func (s *BundleSerializer) Name() string { return "bundle" }

// Serialize implements Serializer.
func (s *BundleSerializer) Serialize(_ mongoid.ID, r *http.Request, w http.ResponseWriter, _ string) error {
	key := strings.TrimPrefix(r.URL.Path, "/files/bundle/")
	if key == r.URL.Path {
		http.NotFound(w, r)
		return nil
	}
	return sendBlob(s.store, "bundles/"+key, "application/octet-stream", r, w)
}

func sendBlob(store blobstore.Store, key, contentType string, r *http.Request, w http.ResponseWriter) error {
	obj, err := store.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) || errors.Is(err, blobstore.ErrInvalidKey) {
			http.NotFound(w, r)
			return nil
		}
		return err
	}
	defer obj.Body.Close()

	if contentType == "" {
		contentType = obj.ContentType
	}
	h := w.Header()
	h.Set("Content-Type", contentType)
	if obj.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if !obj.ModTime.IsZero() {
		h.Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	_, err = io.Copy(w, obj.Body)
	return err
}
