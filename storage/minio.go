package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"PlaylistInsight/config"
	"PlaylistInsight/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64     `json:"totalObjects"`
	TotalSize    int64     `json:"totalSize"`
	LastModified time.Time `json:"lastModified"`
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	ContentType  string    `json:"contentType,omitempty"`
	ETag         string    `json:"etag,omitempty"`
}

// ArtifactStore 封装 MinIO 客户端，保存每次运行的产出文件
type ArtifactStore struct {
	client *minio.Client
	bucket string
	region string
}

// NewArtifactStore 根据配置创建 MinIO 客户端，不发起网络请求
func NewArtifactStore(cfg *config.Config) (*ArtifactStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}
	return &ArtifactStore{client: client, bucket: cfg.MinioBucket, region: cfg.MinioRegion}, nil
}

// Bucket returns the bucket name.
func (s *ArtifactStore) Bucket() string { return s.bucket }

// EnsureBucket 检查存储桶，不存在时创建
func (s *ArtifactStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("成功创建存储桶", logger.String("bucket", s.bucket))
	return nil
}

// ObjectKey is the key of a run artifact: runs/<runID>/<file name>.
func ObjectKey(runID, file string) string {
	return path.Join("runs", runID, filepath.Base(file))
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Upload 上传一个本地文件到 runs/<runID>/ 下
func (s *ArtifactStore) Upload(ctx context.Context, runID, file string) (ObjectInfo, error) {
	key := ObjectKey(runID, file)
	info, err := s.client.FPutObject(ctx, s.bucket, key, file, minio.PutObjectOptions{
		ContentType: contentType(file),
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("上传 %s 失败: %w", key, err)
	}
	logger.Debug("上传产出文件", logger.String("key", key), logger.Int64("size", info.Size))
	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ContentType:  contentType(file),
		ETag:         info.ETag,
	}, nil
}

// List 列出前缀下的所有对象，按 key 排序
func (s *ArtifactStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Stats 统计前缀下的对象数量与大小
func (s *ArtifactStore) Stats(ctx context.Context, prefix string) (*BucketStats, error) {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return Summarize(objects), nil
}

// Summarize computes bucket statistics over listed objects.
func Summarize(objects []ObjectInfo) *BucketStats {
	stats := &BucketStats{}
	for _, o := range objects {
		stats.TotalObjects++
		stats.TotalSize += o.Size
		if o.LastModified.After(stats.LastModified) {
			stats.LastModified = o.LastModified
		}
	}
	return stats
}
