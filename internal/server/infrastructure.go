package server

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/vecinal/certdesk/modules/certificates"
	"github.com/vecinal/certdesk/modules/certificates/infrastructure/cache"
	"github.com/vecinal/certdesk/modules/certificates/infrastructure/registry"
	"github.com/vecinal/certdesk/pkg/application"
	"github.com/vecinal/certdesk/pkg/configuration"
	"github.com/vecinal/certdesk/pkg/storage"
	"github.com/vecinal/certdesk/pkg/storage/fs"
	"github.com/vecinal/certdesk/pkg/storage/s3"
)

// NewStore builds the artifact store selected by STORAGE_DRIVER. The fs
// driver also returns the controller serving its files under /uploads.
func NewStore(ctx context.Context, conf *configuration.Configuration) (storage.Store, application.Controller, error) {
	switch conf.Storage.Driver {
	case "s3":
		store, err := s3.New(ctx, s3.Config{
			Bucket:          conf.Storage.S3Bucket,
			Region:          conf.Storage.S3Region,
			Endpoint:        conf.Storage.S3Endpoint,
			Prefix:          conf.Storage.S3Prefix,
			AccessKeyID:     conf.Storage.S3AccessKey,
			SecretAccessKey: conf.Storage.S3SecretKey,
			PathStyle:       conf.Storage.S3UsePathStyle,
			PublicURL:       conf.Storage.PublicURL,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "s3 store")
		}
		return store, nil, nil
	default:
		store, err := fs.New(conf.Storage.UploadsPath, conf.PublicStorageURL())
		if err != nil {
			return nil, nil, errors.Wrap(err, "fs store")
		}
		return store, fs.NewController("/uploads", store), nil
	}
}

// Infrastructure is what the certificate module needs from outside the
// database pool. Close releases it.
type Infrastructure struct {
	Store      storage.Store
	Controller application.Controller
	Module     *certificates.ModuleOptions

	closers []func() error
}

func (i *Infrastructure) Close() {
	for _, c := range i.closers {
		_ = c()
	}
}

// NewInfrastructure wires storage, the member registry and the optional
// verification cache. Registry and cache failures are logged and the
// feature disabled; storage failures are fatal.
func NewInfrastructure(ctx context.Context, conf *configuration.Configuration, logger *logrus.Logger) (*Infrastructure, error) {
	store, controller, err := NewStore(ctx, conf)
	if err != nil {
		return nil, err
	}
	infra := &Infrastructure{Store: store, Controller: controller}
	opts := &certificates.ModuleOptions{
		Config:          conf.Certificates,
		Store:           store,
		Logger:          logger,
		Location:        conf.Location(),
		RequestIDHeader: conf.RequestIDHeader,
		MaxUploadSize:   conf.MaxUploadSize,
		MaxUploadMemory: conf.MaxUploadMemory,
	}

	reg, err := registry.Open(conf.Registry.DSN, conf.Registry.Table)
	if err != nil {
		logger.WithError(err).Warn("member registry unavailable; phone backfill disabled")
	} else {
		opts.Registry = reg
		infra.closers = append(infra.closers, reg.Close)
	}

	if conf.RedisURL != "" {
		client, err := cache.Connect(ctx, conf.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable; verification cache disabled")
		} else {
			opts.Cache = cache.NewVerifyCache(client, conf.Certificates.VerifyCacheTTL)
			infra.closers = append(infra.closers, client.Close)
		}
	}

	infra.Module = opts
	return infra, nil
}
