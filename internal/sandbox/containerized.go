package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/pkg/log"
)

// stopTimeout bounds how long a finished container is given to shut down
// cleanly before the runtime kills it outright.
const stopTimeout = 10 * time.Second

const (
	pathSource = "/tmp/source"
	pathParams = "/tmp/params"
	pathMetaSrc = "/tmp/meta_src"
	pathMetaResult = "/tmp/meta_result"
	pathResult = "/tmp/result"
)

// Containerized is the production Sandbox: every job runs in a fresh,
// network-isolated, auto-removed container built from the job type's
// configured image.
type Containerized struct {
	cli *client.Client
}

// NewContainerized dials the container runtime at uri (a Docker-Engine-API
// compatible socket; a rootless podman.sock works unmodified).
func NewContainerized(uri string) (*Containerized, error) {
	cli, err := client.NewClientWithOpts(client.WithHost(uri), client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("sandbox: dial container runtime: %w", err)
	}
	return &Containerized{cli: cli}, nil
}

func (c *Containerized) Process(ctx context.Context, image string, src []byte, params job.Params) (Result, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: marshal params: %w", err)
	}

	created, err := c.cli.ContainerCreate(ctx, &container.Config{
		Image: image,
		Tty:   false,
	}, &container.HostConfig{
		NetworkMode: "none",
		AutoRemove:  true,
	}, nil, nil, "")
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: create container: %w", err)
	}
	id := created.ID

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout+2*time.Second)
		defer cancel()
		timeout := int(stopTimeout.Seconds())
		if err := c.cli.ContainerStop(stopCtx, id, container.StopOptions{Timeout: &timeout}); err != nil {
			log.Warnf("sandbox: stop container %s: %v", id, err)
		}
	}()

	if err := c.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("sandbox: start container: %w", err)
	}

	upload := newTarArchive(map[string][]byte{
		"source": src,
		"params": paramsJSON,
	})
	if err := c.cli.CopyToContainer(ctx, id, "/tmp", upload, container.CopyToContainerOptions{}); err != nil {
		return Result{}, fmt.Errorf("sandbox: upload source: %w", err)
	}

	var runLog []string

	if code, out, err := c.exec(ctx, id, []string{"/opt/analyze", pathSource, pathMetaSrc, pathParams}); err != nil {
		return Result{}, err
	} else {
		runLog = append(runLog, out...)
		if code != 0 {
			return Result{Success: false, Log: append(runLog, fmt.Sprintf("analyze(source) exited %d", code))}, nil
		}
	}

	if code, out, err := c.exec(ctx, id, []string{"/opt/process", pathSource, pathResult, pathParams}); err != nil {
		return Result{}, err
	} else {
		runLog = append(runLog, out...)
		if code != 0 {
			return Result{Success: false, Log: append(runLog, fmt.Sprintf("process exited %d", code))}, nil
		}
	}

	if code, out, err := c.exec(ctx, id, []string{"/opt/analyze", pathResult, pathMetaResult, pathParams}); err != nil {
		return Result{}, err
	} else {
		runLog = append(runLog, out...)
		if code != 0 {
			return Result{Success: false, Log: append(runLog, fmt.Sprintf("analyze(result) exited %d", code))}, nil
		}
	}

	resultBytes, err := c.downloadFile(ctx, id, pathResult)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: download result: %w", err)
	}
	metaSrcBytes, err := c.downloadFile(ctx, id, pathMetaSrc)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: download meta_src: %w", err)
	}
	metaResultBytes, err := c.downloadFile(ctx, id, pathMetaResult)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: download meta_result: %w", err)
	}

	if err := validateMeta(metaSrcBytes); err != nil {
		return Result{Success: false, Log: append(runLog, "meta_src: "+err.Error())}, nil
	}
	if err := validateMeta(metaResultBytes); err != nil {
		return Result{Success: false, Log: append(runLog, "meta_result: "+err.Error())}, nil
	}

	var metaSrc, metaResult RawMetadata
	if err := json.Unmarshal(metaSrcBytes, &metaSrc); err != nil {
		return Result{}, fmt.Errorf("sandbox: decode meta_src: %w", err)
	}
	if err := json.Unmarshal(metaResultBytes, &metaResult); err != nil {
		return Result{}, fmt.Errorf("sandbox: decode meta_result: %w", err)
	}

	return Result{
		Success:        true,
		Result:         resultBytes,
		MetadataSrc:    metaSrc,
		MetadataResult: metaResult,
		Log:            runLog,
	}, nil
}

// exec runs one command inside container id to completion, returning its
// exit code and combined stdout/stderr split into lines.
func (c *Containerized) exec(ctx context.Context, id string, cmd []string) (int, []string, error) {
	execCfg := container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	}
	created, err := c.cli.ContainerExecCreate(ctx, id, execCfg)
	if err != nil {
		return 0, nil, fmt.Errorf("sandbox: exec create %v: %w", cmd, err)
	}
	attach, err := c.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return 0, nil, fmt.Errorf("sandbox: exec attach %v: %w", cmd, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return 0, nil, fmt.Errorf("sandbox: exec read %v: %w", cmd, err)
	}
	out := append(stdout.Bytes(), stderr.Bytes()...)

	inspect, err := c.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("sandbox: exec inspect %v: %w", cmd, err)
	}

	return inspect.ExitCode, splitLines(out), nil
}

func (c *Containerized) downloadFile(ctx context.Context, id, path string) ([]byte, error) {
	rc, _, err := c.cli.CopyFromContainer(ctx, id, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	if _, err := tr.Next(); err != nil {
		return nil, fmt.Errorf("read tar header for %s: %w", path, err)
	}
	return io.ReadAll(tr)
}

func newTarArchive(files map[string][]byte) io.Reader {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		hdr := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		_ = tw.WriteHeader(hdr)
		_, _ = tw.Write(content)
	}
	_ = tw.Close()
	return &buf
}

func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	var lines []string
	for _, l := range bytes.Split(b, []byte("\n")) {
		if len(l) == 0 {
			continue
		}
		lines = append(lines, string(l))
	}
	return lines
}
