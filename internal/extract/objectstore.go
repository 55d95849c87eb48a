package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"bondfeed-etl/internal/config"
	"bondfeed-etl/internal/etl"
	"bondfeed-etl/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultMaxObjectSize caps a single CSV shard at 100 MiB.
const DefaultMaxObjectSize = 100 << 20

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStoreClient is the object-store capability used by the extractor.
type ObjectStoreClient interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Download(ctx context.Context, key, destPath string) error
}

// rowProducer parses one downloaded file into source records. Families
// plug their CSV dialect and conversion rules in here.
type rowProducer func(logger *zap.Logger, r io.Reader) ([]models.SourceRecord, error)

// objectStoreExtractor runs the five-phase object-store pipeline:
// select, download, parse, convert, return.
type objectStoreExtractor struct {
	name          string
	category      string
	client        ObjectStoreClient
	workDir       string
	dateFormat    string // layout of the date segment in the object prefix
	maxObjectSize int64
	limiter       *rate.Limiter
	produce       rowProducer
	logger        *zap.Logger

	dayDir string // populated in Setup, removed in Cleanup
}

func (e *objectStoreExtractor) Name() string     { return e.name }
func (e *objectStoreExtractor) Category() string { return e.category }

func (e *objectStoreExtractor) Setup(ctx context.Context, ec *etl.Context) error {
	day := etl.FormatBusinessDate(ec.CurrentDate())
	e.dayDir = filepath.Join(e.workDir, day, e.category)
	if err := os.MkdirAll(e.dayDir, 0o755); err != nil {
		return fmt.Errorf("%s: failed to create work dir: %w", e.name, err)
	}
	return nil
}

func (e *objectStoreExtractor) ValidateSource(ec *etl.Context) error {
	if e.client == nil {
		return fmt.Errorf("%s: no object store client", e.name)
	}
	if e.dayDir == "" {
		return fmt.Errorf("%s: setup not run", e.name)
	}
	return nil
}

func (e *objectStoreExtractor) Extract(ctx context.Context, ec *etl.Context) ([]models.SourceRecord, error) {
	date := ec.CurrentDate()
	prefix := fmt.Sprintf("%s/%s/", e.category, date.Format(e.dateFormat))

	// 1. Select.
	objects, err := e.client.List(ctx, prefix)
	if err != nil {
		return nil, etl.NewError(etl.KindExtract, etl.SubprocessExtract, date,
			fmt.Sprintf("%s: failed to list %s", e.name, prefix), err)
	}
	for _, obj := range objects {
		if obj.Size > e.maxObjectSize {
			return nil, etl.NewError(etl.KindExtract, etl.SubprocessExtract, date,
				fmt.Sprintf("%s: object %s exceeds max size (%d > %d)", e.name, obj.Key, obj.Size, e.maxObjectSize), nil)
		}
	}
	if len(objects) == 0 {
		e.logger.Info("no objects for day",
			zap.String("extractor", e.name),
			zap.String("prefix", prefix))
		return nil, nil
	}

	// 2. Download concurrently into the per-day directory.
	paths := make([]string, len(objects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(objects), 2*runtime.GOMAXPROCS(0)))
	for i, obj := range objects {
		i, obj := i, obj
		g.Go(func() error {
			if e.limiter != nil {
				if err := e.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			dest := filepath.Join(e.dayDir, filepath.Base(obj.Key))
			if err := e.client.Download(gctx, obj.Key, dest); err != nil {
				return etl.NewError(etl.KindDownloadFailed, etl.SubprocessExtract, date,
					fmt.Sprintf("%s: failed to download %s", e.name, obj.Key), err)
			}
			paths[i] = dest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 3-5. Parse, convert, and validate file by file.
	var records []models.SourceRecord
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, etl.NewError(etl.KindExtract, etl.SubprocessExtract, date,
				fmt.Sprintf("%s: failed to open %s", e.name, path), err)
		}
		parsed, err := e.produce(e.logger, f)
		f.Close()
		if err != nil {
			return nil, etl.NewError(etl.KindParse, etl.SubprocessExtract, date,
				fmt.Sprintf("%s: failed to parse %s", e.name, filepath.Base(path)), err)
		}
		for _, rec := range parsed {
			if verr := rec.Validate(); verr != nil {
				e.logger.Warn("skipping invalid record",
					zap.String("extractor", e.name),
					zap.String("file", filepath.Base(path)),
					zap.Error(verr))
				continue
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func (e *objectStoreExtractor) Cleanup() {
	if e.dayDir == "" {
		return
	}
	if err := os.RemoveAll(e.dayDir); err != nil {
		e.logger.Warn("failed to remove downloaded files",
			zap.String("extractor", e.name),
			zap.String("dir", e.dayDir),
			zap.Error(err))
	}
}

// minioStore adapts a minio client to one bucket.
type minioStore struct {
	client *minio.Client
	bucket string
}

func newMinioStore(src config.SourceConfig) (*minioStore, error) {
	opts := &minio.Options{
		Region: src.Properties["region"],
		Secure: src.Property("secure", "true") == "true",
	}
	if ak := src.Properties["access_key"]; ak != "" {
		opts.Creds = credentials.NewStaticV4(ak, src.Properties["secret_key"], "")
	} else {
		// Anonymous mode.
		opts.Creds = credentials.NewStaticV4("", "", "")
	}
	client, err := minio.New(src.Properties["endpoint"], opts)
	if err != nil {
		return nil, fmt.Errorf("source %s: failed to build object store client: %w", src.Name, err)
	}
	return &minioStore{client: client, bucket: src.Properties["bucket"]}, nil
}

func (m *minioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size})
	}
	return out, nil
}

func (m *minioStore) Download(ctx context.Context, key, destPath string) error {
	return m.client.FGetObject(ctx, m.bucket, key, destPath, minio.GetObjectOptions{})
}
