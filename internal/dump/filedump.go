package dump

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"dbdump/internal/errors"
	"dbdump/internal/logging"

	"github.com/spf13/afero"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o640
)

// successFunc judges a finished run from its trimmed stderr and the process error
type successFunc func(stderr string, runErr error) bool

// fileDumper streams a command's stdout through a codec into the plan's file
// and removes the file again when the attempt fails.
type fileDumper struct {
	fs          afero.Fs
	runner      CommandRunner
	compression Compression
	logger      *logging.Logger
}

func (d *fileDumper) ensureDirectory(path string) error {
	dir := filepath.Dir(path)
	if err := d.fs.MkdirAll(dir, dirPerm); err != nil {
		return errors.NewAppError(errors.ErrorTypeDirectoryCreationFailed,
			"could not create backup directory "+dir, err).
			WithContext("directory", dir)
	}
	return nil
}

func (d *fileDumper) run(ctx context.Context, plan *Plan, cmd Command, succeeded successFunc) (*Result, error) {
	path := plan.BackupPath

	if err := d.ensureDirectory(path); err != nil {
		return nil, err
	}

	file, err := d.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return nil, errors.WrapError(err, "could not create backup file "+path)
	}

	codec, err := d.compression.NewWriter(file)
	if err != nil {
		file.Close()
		return nil, d.fail(path, errors.WrapError(err, "could not initialise compression"))
	}

	var stderr bytes.Buffer
	cmd.Stdout = codec
	cmd.Stderr = &stderr

	d.logger.LogCommand(ctx, cmd.Name, cmd.Args)
	runErr := d.runner.Run(ctx, cmd)

	codecErr := codec.Close()
	fileErr := file.Close()
	output := strings.TrimSpace(stderr.String())

	switch {
	case ctx.Err() != nil:
		return nil, d.fail(path, errors.WrapError(ctx.Err(), "dump of "+plan.Connection.Identifier()+" was interrupted"))
	case didNotRun(runErr):
		return nil, d.fail(path, errors.NewAppError(errors.ErrorTypeCommandFailed,
			"could not run "+cmd.Name, runErr).WithContext("output", output))
	case codecErr != nil:
		return nil, d.fail(path, errors.WrapError(codecErr, "could not finish compressed stream"))
	case fileErr != nil:
		return nil, d.fail(path, errors.WrapError(fileErr, "could not close backup file"))
	}

	result := &Result{Success: succeeded(output, runErr), Output: output}
	if !result.Success {
		if err := d.removeFaultyBackup(path); err != nil {
			return result, err
		}
	}
	return result, nil
}

// fail removes the partial file; a failed removal outranks cause
func (d *fileDumper) fail(path string, cause error) error {
	if err := d.removeFaultyBackup(path); err != nil {
		return err
	}
	return cause
}

func (d *fileDumper) removeFaultyBackup(path string) error {
	err := d.fs.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	d.logger.WithField("backup_path", path).WithField("error", err.Error()).Error("Could not remove faulty backup")
	return errors.NewAppError(errors.ErrorTypeBackupDeletionFailed,
		"could not remove faulty backup "+path, err).
		WithContext("backup_path", path)
}
