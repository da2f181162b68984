// Package config loads docleaner's INI-style configuration, mandatory via
// an environment variable pointing at the file path, mirroring the
// teacher's package-level Keys + Init(path) pattern.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"
)

// EnvVar names the environment variable carrying the config file path.
const EnvVar = "DOCLEANER_CONFIG"

// Plugin is one `[plugins.<name>]` section.
type Plugin struct {
	Name               string
	ContainerizedImage string `validate:"required"`
}

// S3Blobstore is the `[blobstore.s3]` section, consulted when BlobBackend
// is "s3". AccessKey/SecretKey are deliberately not part of this struct:
// they are secret overrides loaded straight from the environment (via an
// optional .env file), never written to the INI file on disk.
type S3Blobstore struct {
	Bucket       string // required when BlobBackend is "s3"
	Region       string // defaults to "us-east-1" if empty
	Endpoint     string // optional, for S3-compatible non-AWS endpoints
	UsePathStyle bool
}

// Config is the decoded, validated configuration. Keys holds the
// process-wide instance once Init has run.
type Config struct {
	PodmanURI   string `validate:"required"`
	LogToSyslog string // "host:proto:port", optional
	Contact     string // optional display string
	BlobBackend string // "fs" (default) or "s3"
	S3          S3Blobstore
	Plugins     []Plugin
}

// Keys is the process-wide configuration, populated by Init.
var Keys Config

// Init reads the INI file named by the DOCLEANER_CONFIG environment
// variable, decodes it and validates required fields. It is fatal to call
// any docleaner component before Init has succeeded.
func Init() error {
	path := os.Getenv(EnvVar)
	if path == "" {
		return fmt.Errorf("config: %s is not set", EnvVar)
	}
	return Load(path)
}

// Load reads and validates the INI file at path, storing the result in
// Keys. Exposed separately from Init so tests can point at a fixture file
// directly without setting the environment variable.
func Load(path string) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var decoded Config
	main := cfg.Section("docleaner")
	decoded.PodmanURI = main.Key("podman_uri").String()
	decoded.LogToSyslog = main.Key("log_to_syslog").String()
	decoded.Contact = main.Key("contact").String()
	decoded.BlobBackend = main.Key("blob_backend").MustString("fs")

	s3 := cfg.Section("blobstore.s3")
	decoded.S3 = S3Blobstore{
		Bucket:       s3.Key("bucket").String(),
		Region:       s3.Key("region").String(),
		Endpoint:     s3.Key("endpoint").String(),
		UsePathStyle: s3.Key("path_style").MustBool(false),
	}

	for _, section := range cfg.Sections() {
		name := section.Name()
		if !strings.HasPrefix(name, "plugins.") {
			continue
		}
		decoded.Plugins = append(decoded.Plugins, Plugin{
			Name:               strings.TrimPrefix(name, "plugins."),
			ContainerizedImage: section.Key("containerized.image").String(),
		})
	}

	if err := validate(decoded); err != nil {
		return err
	}

	Keys = decoded
	return nil
}

func validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(cfg.Plugins) == 0 {
		return fmt.Errorf("config: at least one [plugins.*] section is required")
	}
	for _, p := range cfg.Plugins {
		if err := v.Struct(p); err != nil {
			return fmt.Errorf("config: plugin %q: %w", p.Name, err)
		}
	}
	switch cfg.BlobBackend {
	case "", "fs":
	case "s3":
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("config: blob_backend = s3 requires [blobstore.s3] bucket")
		}
	default:
		return fmt.Errorf("config: unknown blob_backend %q", cfg.BlobBackend)
	}
	return nil
}
