package prediction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/apex/log"

	"waterlog/metrics"
)

const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

// ValidateDate checks that date is a calendar date in YYYY-MM-DD form, so it
// is safe to pass as a script argument.
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// ScriptError is a non-zero exit of the prediction script.
type ScriptError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("prediction script exited with code %d: %v", e.ExitCode, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// Runner invokes the external batch job that writes predictions for a date.
type Runner struct {
	python  string
	script  string
	timeout time.Duration
}

func NewRunner(python, script string, timeout time.Duration) *Runner {
	return &Runner{python: python, script: script, timeout: timeout}
}

// Run executes `<python> <script> <date>` and returns its stdout.
func (r *Runner) Run(ctx context.Context, date string) (string, error) {
	if err := ValidateDate(date); err != nil {
		return "", err
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.python, r.script, date)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Stop waiting on output of children that outlive a killed script.
	cmd.WaitDelay = time.Second

	start := time.Now()
	log.Infof("Generating predictions for %s using %s", date, r.python)
	err := cmd.Run()
	if err != nil {
		metrics.PredictionRunsTotal.WithLabelValues("error").Inc()
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return stdout.String(), &ScriptError{ExitCode: code, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	metrics.PredictionRunsTotal.WithLabelValues("ok").Inc()
	log.Infof("Predictions for %s generated in %s", date, time.Since(start).Round(time.Millisecond))
	return stdout.String(), nil
}
