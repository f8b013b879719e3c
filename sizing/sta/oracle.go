// Package sta implements sizing.TimingOracle on top of the OpenSTA command-line tool.
//
// Every call runs in its own scratch directory: the candidate netlist, the derate
// snippet and the run script are written there, the tool is run with a hard
// timeout, and the WNS, TNS and detailed path reports are parsed back. The
// directory is removed afterwards; failed calls can be preserved for inspection.
package sta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	cp "github.com/otiai10/copy"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/gatesizer/sizing"
	"github.com/inference-sim/gatesizer/sizing/netlist"
)

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 60 * time.Second

// maxOutput caps the captured tool output kept for error messages and logs.
const maxOutput = 64 * 1024

// Options configures the OpenSTA oracle.
type Options struct {
	Binary     string
	Timeout    time.Duration
	WorkDir    string // parent of the per-call scratch dirs; os.TempDir() when empty
	KeepDir    string // failed scratch dirs are copied here when set
	PathCount  int
	Classifier sizing.CellClassifier
}

// OptionsFromConfig builds Options from the run configuration.
func OptionsFromConfig(cfg sizing.Config) Options {
	return Options{
		Binary:     cfg.Oracle.Binary,
		Timeout:    cfg.Oracle.Timeout,
		WorkDir:    cfg.Oracle.WorkDir,
		KeepDir:    cfg.Oracle.KeepDir,
		Classifier: cfg.Classifier,
	}
}

// Oracle runs OpenSTA as a subprocess. Safe for concurrent use: calls share no files.
type Oracle struct {
	opts Options
}

// New creates an Oracle.
func New(opts Options) *Oracle {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Oracle{opts: opts}
}

// Evaluate implements sizing.TimingOracle. Every error is an *sizing.OracleFailure.
func (o *Oracle) Evaluate(ctx context.Context, nl *netlist.Netlist, cons sizing.Constraints, d sizing.Derate) (*sizing.TimingResult, error) {
	in, err := o.resolveInputs(cons)
	if err != nil {
		return nil, err
	}

	parent := o.opts.WorkDir
	if parent == "" {
		parent = os.TempDir()
	}
	dir := filepath.Join(parent, "sta-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &sizing.OracleFailure{Reason: sizing.FailureProcess, Detail: "creating scratch dir", Err: err}
	}

	res, err := o.run(ctx, dir, nl, in, d)
	if err != nil {
		o.keep(dir)
	}
	if rmErr := os.RemoveAll(dir); rmErr != nil {
		logrus.Warnf("sta: removing scratch dir %s: %v", dir, rmErr)
	}
	return res, err
}

func (o *Oracle) resolveInputs(cons sizing.Constraints) (ScriptInputs, error) {
	in := ScriptInputs{Design: cons.Design, PathCount: o.opts.PathCount}
	required := []struct {
		kind string
		path string
		dst  *string
	}{
		{"liberty", cons.Liberty, &in.Liberty},
		{"sdc", cons.SDC, &in.SDC},
	}
	for _, r := range required {
		abs, err := existing(r.path)
		if err != nil {
			return in, &sizing.OracleFailure{Reason: sizing.FailureMissingInput, Detail: r.kind + " file", Err: err}
		}
		*r.dst = abs
	}
	if cons.SPEF != "" {
		abs, err := existing(cons.SPEF)
		if err != nil {
			logrus.Warnf("sta: SPEF file %s not found, running without parasitics", cons.SPEF)
		} else {
			in.SPEF = abs
		}
	}
	return in, nil
}

func existing(path string) (string, error) {
	if path == "" {
		return "", errors.New("not provided")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func (o *Oracle) run(ctx context.Context, dir string, nl *netlist.Netlist, in ScriptInputs, d sizing.Derate) (*sizing.TimingResult, error) {
	in.Netlist = filepath.Join(dir, netlistFile)
	in.Derate = filepath.Join(dir, derateFile)
	if err := nl.WriteFile(in.Netlist); err != nil {
		return nil, &sizing.OracleFailure{Reason: sizing.FailureProcess, Detail: "writing candidate netlist", Err: err}
	}
	if err := writeFileWith(in.Derate, func(w io.Writer) error { return WriteDerate(w, d) }); err != nil {
		return nil, &sizing.OracleFailure{Reason: sizing.FailureProcess, Detail: "writing derate script", Err: err}
	}
	if err := writeFileWith(filepath.Join(dir, scriptFile), func(w io.Writer) error { return WriteScript(w, in) }); err != nil {
		return nil, &sizing.OracleFailure{Reason: sizing.FailureProcess, Detail: "writing run script", Err: err}
	}

	if err := o.execute(ctx, dir); err != nil {
		return nil, err
	}

	wnsText, err := os.ReadFile(filepath.Join(dir, wnsReport))
	if err != nil {
		return nil, &sizing.OracleFailure{Reason: sizing.FailureUnparsable, Detail: "missing WNS report", Err: err}
	}
	tnsText, err := os.ReadFile(filepath.Join(dir, tnsReport))
	if err != nil {
		return nil, &sizing.OracleFailure{Reason: sizing.FailureUnparsable, Detail: "missing TNS report", Err: err}
	}
	wns, err := ParseWNS(string(wnsText))
	if err != nil {
		return nil, &sizing.OracleFailure{Reason: sizing.FailureUnparsable, Err: err}
	}
	tns, err := ParseTNS(string(tnsText))
	if err != nil {
		return nil, &sizing.OracleFailure{Reason: sizing.FailureUnparsable, Err: err}
	}
	res := &sizing.TimingResult{WNS: wns, TNS: tns}

	f, err := os.Open(filepath.Join(dir, timingReport))
	if err != nil {
		logrus.Debugf("sta: no detailed report: %v", err)
		return res, nil
	}
	defer f.Close()
	samples, err := ParseDetailed(f, nl, o.opts.Classifier)
	if err != nil {
		logrus.Debugf("sta: detailed report unusable: %v", err)
		return res, nil
	}
	res.Samples = samples
	return res, nil
}

// execute runs the tool in dir with the per-call timeout.
func (o *Oracle) execute(ctx context.Context, dir string) error {
	runCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, o.opts.Binary, scriptFile)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	var out limitedBuffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	if writeErr := os.WriteFile(filepath.Join(dir, logFile), out.buf.Bytes(), 0o644); writeErr != nil {
		logrus.Debugf("sta: writing log: %v", writeErr)
	}
	logrus.Debugf("sta: %s finished in %v", o.opts.Binary, time.Since(start).Round(time.Millisecond))

	switch {
	case ctx.Err() != nil:
		return &sizing.OracleFailure{Reason: sizing.FailureCanceled, Err: ctx.Err()}
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return &sizing.OracleFailure{Reason: sizing.FailureTimeout, Detail: fmt.Sprintf("exceeded %v", o.opts.Timeout)}
	case err != nil:
		return &sizing.OracleFailure{Reason: sizing.FailureProcess, Detail: tail(out.buf.String(), 5), Err: err}
	}
	return nil
}

// keep copies a failed scratch dir into KeepDir.
func (o *Oracle) keep(dir string) {
	if o.opts.KeepDir == "" {
		return
	}
	dst := filepath.Join(o.opts.KeepDir, filepath.Base(dir))
	if err := cp.Copy(dir, dst); err != nil {
		logrus.Warnf("sta: keeping failed run %s: %v", dir, err)
		return
	}
	logrus.Infof("sta: failed run kept in %s", dst)
}

// tail returns the last n non-empty lines of s joined by " | ".
func tail(s string, n int) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// limitedBuffer keeps at most maxOutput bytes and silently drops the rest.
type limitedBuffer struct {
	buf bytes.Buffer
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := maxOutput - l.buf.Len(); room > 0 {
		l.buf.Write(p[:min(len(p), room)])
	}
	return len(p), nil
}
