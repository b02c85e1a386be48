package utils

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// RunCommand runs given command with given arguments on given CWD. The
// child inherits the calling process's environment (so PATH, HOME, SSH
// agent sockets and any git credential helper the operator has configured
// all work normally); extra envs are appended and override inherited ones
// of the same name per exec.Cmd semantics.
func RunCommand(ctx context.Context, log *slog.Logger, envs []string, cwd string, command string, args ...string) (string, error) {

	cmdStr := command + " " + strings.Join(args, " ")
	log.Log(ctx, -8, "running command", "cwd", cwd, "cmd", cmdStr)

	cmd := exec.CommandContext(ctx, command, args...)
	// force kill git & child process 5 seconds after sending it sigterm (when ctx is cancelled/timed out)
	cmd.WaitDelay = 5 * time.Second
	if cwd != "" {
		cmd.Dir = cwd
	}
	outbuf := bytes.NewBuffer(nil)
	errbuf := bytes.NewBuffer(nil)
	cmd.Stdout = outbuf
	cmd.Stderr = errbuf

	if len(envs) > 0 {
		cmd.Env = append(cmd.Environ(), envs...)
	}

	start := time.Now()
	err := cmd.Run()
	runTime := time.Since(start)

	stdout := strings.TrimSpace(outbuf.String())
	stderr := strings.TrimSpace(errbuf.String())
	if ctx.Err() == context.DeadlineExceeded {
		err = ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("Run(%s): err:%w { stdout: %q, stderr: %q }", cmdStr, err, stdout, stderr)
	}
	log.Log(ctx, -8, "command result", "stdout", stdout, "stderr", stderr, "time", runTime)

	return stdout, nil
}
