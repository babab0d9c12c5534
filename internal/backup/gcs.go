package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gstorage "google.golang.org/api/storage/v1"

	applog "financier/internal/log"
)

// SnapshotStore is the outbound port for snapshot object storage.
type SnapshotStore interface {
	Upload(ctx context.Context, key, localPath string) error
	Download(ctx context.Context, key, localPath string) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// GCSStore keeps snapshots in a Google Cloud Storage bucket.
type GCSStore struct {
	svc    *gstorage.Service
	bucket string
}

var _ SnapshotStore = (*GCSStore)(nil)

// NewGCSStore creates a snapshot store backed by the given bucket, using
// service account credentials from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("missing backup bucket name")
	}

	credentialsJSON, err := readCredentials()
	if err != nil {
		return nil, err
	}

	svc, err := gstorage.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gstorage.DevstorageReadWriteScope))
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}

	slog.InfoContext(ctx, "Cloud Storage snapshot store ready",
		applog.FieldComponent, applog.ComponentBackup, "bucket", bucket)
	return &GCSStore{svc: svc, bucket: bucket}, nil
}

func readCredentials() ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	if inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	credentialsJSON, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return credentialsJSON, nil
}

func (g *GCSStore) Upload(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open snapshot %s: %w", localPath, err)
	}
	defer f.Close()

	obj := &gstorage.Object{Name: key}
	if _, err := g.svc.Objects.Insert(g.bucket, obj).Media(f).Context(ctx).Do(); err != nil {
		return fmt.Errorf("upload snapshot %s: %w", key, err)
	}
	return nil
}

func (g *GCSStore) Download(ctx context.Context, key, localPath string) error {
	resp, err := g.svc.Objects.Get(g.bucket, key).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("download snapshot %s: %w", key, err)
	}
	defer resp.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("write snapshot %s: %w", localPath, err)
	}
	return f.Sync()
}

func (g *GCSStore) List(ctx context.Context) ([]string, error) {
	var keys []string
	call := g.svc.Objects.List(g.bucket).Prefix(SnapshotPrefix)
	err := call.Pages(ctx, func(page *gstorage.Objects) error {
		for _, obj := range page.Items {
			keys = append(keys, obj.Name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return keys, nil
}

func (g *GCSStore) Delete(ctx context.Context, key string) error {
	if err := g.svc.Objects.Delete(g.bucket, key).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	return nil
}
