package gqlrequest

import (
	"context"
	"mime/multipart"
)

// Upload is one file part collected from a multipart request.
type Upload struct {
	File        multipart.File
	Filename    string
	Size        int64
	ContentType string
}

// Uploads is the side-table of file parts keyed by multipart field name.
// Resolvers receive it through the execution context and resolve bare string
// argument values that match a field name into the corresponding upload.
type Uploads map[string]*Upload

// Lookup resolves a bare string argument value to an upload.
func (u Uploads) Lookup(name string) (*Upload, bool) {
	upload, ok := u[name]
	return upload, ok
}

// Close releases all open file parts.
func (u Uploads) Close() {
	for _, upload := range u {
		if upload != nil && upload.File != nil {
			_ = upload.File.Close()
		}
	}
}

type uploadsContextKey struct{}

// WithUploads stores the upload side-table in the execution context.
func WithUploads(ctx context.Context, uploads Uploads) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, uploadsContextKey{}, uploads)
}

// UploadsFromContext retrieves the upload side-table, nil when absent.
func UploadsFromContext(ctx context.Context) Uploads {
	if ctx == nil {
		return nil
	}
	uploads, _ := ctx.Value(uploadsContextKey{}).(Uploads)
	return uploads
}
