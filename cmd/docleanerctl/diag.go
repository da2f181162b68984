package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/TUD-CERT/docleaner/internal/bootstrap"
	"github.com/TUD-CERT/docleaner/internal/clock"
	"github.com/TUD-CERT/docleaner/internal/config"
	"github.com/TUD-CERT/docleaner/internal/dispatcher"
	"github.com/TUD-CERT/docleaner/internal/fileid"
	"github.com/TUD-CERT/docleaner/internal/job"
	"github.com/TUD-CERT/docleaner/internal/jobservice"
	"github.com/TUD-CERT/docleaner/internal/jobtype"
	"github.com/TUD-CERT/docleaner/internal/metadata"
	"github.com/TUD-CERT/docleaner/internal/repository"
	"github.com/TUD-CERT/docleaner/internal/repository/blobstore"
	"github.com/TUD-CERT/docleaner/internal/sandbox"
)

var diagErrCmd = &cobra.Command{
	Use:   "diag-err",
	Short: "Run one synthetic job through a forced-failure sandbox to exercise the ERROR path",
	RunE: func(cmd *cobra.Command, args []string) error {
		clk := clock.System{}
		blobs := blobstore.NewMemory()
		repo := repository.NewMemory(clk, blobs)
		return runDiag(repo, blobs, clk, &sandbox.Dummy{Fail: true})
	},
}

var flagDiagRunFile string

var diagRunCmd = &cobra.Command{
	Use:   "diag-run",
	Short: "Run a local file through the real configured sandbox for its job type",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := bootstrap.New(config.Keys, flagDBPath, flagBlobDir)
		if err != nil {
			return err
		}
		defer deps.Dispatcher.Shutdown()

		data, err := os.ReadFile(flagDiagRunFile)
		if err != nil {
			return fmt.Errorf("diag-run: read %s: %w", flagDiagRunFile, err)
		}

		id, jt, err := deps.Jobs.Create(data, flagDiagRunFile, job.Params{}, "")
		if err != nil {
			return err
		}
		fmt.Printf("diag-run: job %s created as type %s\n", id, jt)

		result, err := deps.Jobs.Await(id)
		if err != nil {
			return err
		}
		printDiagResult(result)
		return nil
	},
}

func init() {
	diagRunCmd.Flags().StringVar(&flagDiagRunFile, "file", "", "local file to run through the sandbox")
	_ = diagRunCmd.MarkFlagRequired("file")
}

// diagProcess is the trivial metadata processor used by the diag-err job
// type: it carries no real document, so there is nothing to group or tag.
func diagProcess(raw sandbox.RawMetadata) metadata.Document {
	return metadata.NewDocument()
}

// runDiag wires a minimal standalone job service around the given sandbox
// and drives one job through it end to end, using a random document name
// so repeated runs are distinguishable in the log.
func runDiag(repo repository.Repository, blobs blobstore.Store, clk clock.Clock, sb sandbox.Sandbox) error {
	registry := jobtype.NewRegistry(jobtype.Type{
		Name:      "diag",
		Image:     "diag:unused",
		MimeTypes: []string{"application/x-empty"},
		Process:   diagProcess,
	})
	disp := dispatcher.New(repo, blobs, registry, sb, 1)
	defer disp.Shutdown()

	svc := &jobservice.Service{
		Repo:     repo,
		Blobs:    blobs,
		Queue:    disp,
		FileID:   fileid.Magic{},
		Registry: registry,
		Clock:    clk,
	}

	name := "diag-" + uuid.NewString()
	id, jt, err := svc.Create(nil, name, job.Params{}, "")
	if err != nil {
		return err
	}
	fmt.Printf("diag-err: job %s created as type %s\n", id, jt)

	result, err := svc.Await(id)
	if err != nil {
		return err
	}
	printDiagResult(result)
	return nil
}

func printDiagResult(j *job.Job) {
	fmt.Printf("diag: finished with status %s\n", j.Status)
	for _, line := range j.Log {
		fmt.Println("  " + line)
	}
}
