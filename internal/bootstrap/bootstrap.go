// Package bootstrap wires the concrete adapters named in configuration
// into the Deps struct every entrypoint command depends on. There is no
// dynamic plugin loading: job types are a statically compiled table, keyed
// by the same name used in the `[plugins.<name>]` config section.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/TUD-CERT/docleaner/internal/clock"
	"github.com/TUD-CERT/docleaner/internal/config"
	"github.com/TUD-CERT/docleaner/internal/dispatcher"
	"github.com/TUD-CERT/docleaner/internal/fileid"
	"github.com/TUD-CERT/docleaner/internal/jobservice"
	"github.com/TUD-CERT/docleaner/internal/jobtype"
	"github.com/TUD-CERT/docleaner/internal/plugins/pdf"
	"github.com/TUD-CERT/docleaner/internal/repository"
	"github.com/TUD-CERT/docleaner/internal/repository/blobstore"
	"github.com/TUD-CERT/docleaner/internal/repository/sqlrepo"
	"github.com/TUD-CERT/docleaner/internal/sandbox"
	"github.com/TUD-CERT/docleaner/internal/sessionservice"
)

// pluginFactories maps a `[plugins.<name>]` section name to the jobtype.Type
// constructor it configures. Adding a job type means adding an entry here,
// not loading code at runtime.
var pluginFactories = map[string]func(image string) jobtype.Type{
	"pdf": pdf.Type,
}

// Deps holds every wired collaborator an entrypoint command needs, passed
// explicitly rather than reached for through package-level globals.
type Deps struct {
	DB         repository.Repository
	Blobs      blobstore.Store
	Registry   *jobtype.Registry
	Dispatcher *dispatcher.Dispatcher
	Jobs       *jobservice.Service
	Sessions   *sessionservice.Service
}

// New builds Deps from the process configuration: a sqlite-backed
// repository, the blobstore selected by buildBlobstore, a containerized
// sandbox dialed at cfg.PodmanURI, and a single dispatcher admitting as
// many concurrent jobs as the host has CPUs.
func New(cfg config.Config, dbPath, blobDir string) (*Deps, error) {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	sdb, err := sqlrepo.Open(dbPath)
	if err != nil {
		return nil, err
	}
	blobs, err := buildBlobstore(cfg, blobDir)
	if err != nil {
		return nil, err
	}
	clk := clock.System{}
	repo := sqlrepo.New(sdb, blobs, clk)

	sb, err := sandbox.NewContainerized(cfg.PodmanURI)
	if err != nil {
		return nil, err
	}

	maxConcurrent := runtime.NumCPU()
	disp := dispatcher.New(repo, blobs, registry, sb, maxConcurrent)

	jobs := &jobservice.Service{
		Repo:     repo,
		Blobs:    blobs,
		Queue:    disp,
		FileID:   fileid.Magic{},
		Registry: registry,
		Clock:    clk,
	}
	sessions := &sessionservice.Service{Repo: repo, Wait: disp}

	return &Deps{
		DB:         repo,
		Blobs:      blobs,
		Registry:   registry,
		Dispatcher: disp,
		Jobs:       jobs,
		Sessions:   sessions,
	}, nil
}

// buildBlobstore selects the payload backend named by cfg.BlobBackend.
// The "s3" backend reads its access/secret key from the environment
// (populated by main's optional .env load) rather than the INI file, so
// credentials never sit in a config file on disk.
func buildBlobstore(cfg config.Config, blobDir string) (blobstore.Store, error) {
	switch cfg.BlobBackend {
	case "", "fs":
		return blobstore.NewFS(blobDir)
	case "s3":
		return blobstore.NewS3(context.Background(), blobstore.S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			AccessKey:    os.Getenv("DOCLEANER_S3_ACCESS_KEY"),
			SecretKey:    os.Getenv("DOCLEANER_S3_SECRET_KEY"),
		})
	default:
		return nil, fmt.Errorf("bootstrap: unknown blob backend %q", cfg.BlobBackend)
	}
}

func buildRegistry(cfg config.Config) (*jobtype.Registry, error) {
	var types []jobtype.Type
	for _, p := range cfg.Plugins {
		factory, ok := pluginFactories[p.Name]
		if !ok {
			return nil, fmt.Errorf("bootstrap: no job type registered for plugin %q", p.Name)
		}
		types = append(types, factory(p.ContainerizedImage))
	}
	return jobtype.NewRegistry(types...), nil
}
