package dump

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDidNotRun(t *testing.T) {
	assert.False(t, didNotRun(nil))
	assert.False(t, didNotRun(exitError{code: 2}))
	assert.True(t, didNotRun(&exec.Error{Name: "mysqldump", Err: exec.ErrNotFound}))
	assert.True(t, didNotRun(errors.New("short write")))
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	var stdout, stderr bytes.Buffer
	err := ExecRunner{}.Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", `printf out; printf "$DBDUMP_TEST_VALUE" >&2; exit 3`},
		Env:    []string{"DBDUMP_TEST_VALUE=err"},
		Stdout: &stdout,
		Stderr: &stderr,
	})

	require.Error(t, err)
	assert.False(t, didNotRun(err), "a non-zero exit still ran")
	assert.Equal(t, "out", stdout.String())
	assert.Equal(t, "err", stderr.String())

	err = ExecRunner{}.Run(context.Background(), Command{
		Name:   "dbdump-no-such-binary",
		Stdout: &stdout,
		Stderr: &stderr,
	})
	assert.True(t, didNotRun(err))
}
