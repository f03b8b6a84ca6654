// Package validate inspects a provisioned infrastructure repository and
// reports whether it is in a deployable state.
//
// The engine runs a fixed ordered registry of named checks. A failing
// critical check fails the whole report; a failing advisory check only
// downgrades it to a warning. Checks never abort later checks and never
// mutate state, so the engine is safe to run arbitrarily often, including
// concurrently with provisioning.
package validate

import (
	"context"
	"fmt"
	"io"

	"github.com/platformeng/infrarepo/awsregistry"
	"github.com/platformeng/infrarepo/githost"
	"github.com/sirupsen/logrus"
)

// Verdict is the outcome of one check, or of the whole report.
type Verdict string

const (
	Pass Verdict = "pass"
	Warn Verdict = "warn"
	Fail Verdict = "fail"
)

// Severity decides what a check failure does to the report.
type Severity int

const (
	// Critical failures fail the whole report.
	Critical Severity = iota
	// Advisory failures only downgrade the report to a warning.
	Advisory
)

// CheckResult is one check's recorded outcome.
type CheckResult struct {
	Name        string
	Verdict     Verdict
	Remediation string
}

// Report is the ordered outcome of one engine run. It is recomputed fresh
// on every invocation and never persisted.
type Report struct {
	Results []CheckResult

	Passed int
	Warned int
	Failed int
}

// Overall is fail iff any check failed, else warn iff any check warned,
// else pass.
func (r *Report) Overall() Verdict {
	switch {
	case r.Failed > 0:
		return Fail
	case r.Warned > 0:
		return Warn
	default:
		return Pass
	}
}

func (r *Report) record(name string, severity Severity, ok bool, remediation string) {
	verdict := Pass
	if !ok {
		verdict = Warn
		if severity == Critical {
			verdict = Fail
		}
	}

	result := CheckResult{Name: name, Verdict: verdict}
	if !ok {
		result.Remediation = remediation
	}

	switch verdict {
	case Pass:
		r.Passed++
	case Warn:
		r.Warned++
	case Fail:
		r.Failed++
	}

	r.Results = append(r.Results, result)
}

// Target is what one engine run inspects: a working tree, and optionally
// the remote repository and the AWS organization.
type Target struct {
	// Dir is the root of the provisioned working tree.
	Dir string

	// Org and Repo identify the repository on the host.
	// Used only when Host is set.
	Org  string
	Repo string

	// Host enables the remote checks (branches, environments, secrets).
	// When nil those checks are skipped.
	Host githost.Host

	// Registry enables the advisory account-status check.
	// When nil it is skipped.
	Registry awsregistry.Registry
}

// Check is one named rule of the registry.
type Check struct {
	Name     string
	Severity Severity

	// Remote checks are skipped when the target has no host access.
	Remote bool

	// RequiresRegistry checks are skipped when the target has no AWS
	// organization access.
	RequiresRegistry bool

	// Run reports whether the check holds, and if not, what to do about it.
	// A returned error counts as a failure of the check, not of the engine.
	Run func(ctx context.Context, t *Target) (bool, string, error)
}

// Engine runs the check registry against a target.
type Engine struct {
	Checks []Check

	Log *logrus.Logger
}

// New returns an engine with the default registry.
func New() *Engine {
	return &Engine{Checks: Registry()}
}

// Run executes every applicable check in order and returns the report.
func (e *Engine) Run(ctx context.Context, t *Target) *Report {
	log := e.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	report := &Report{}

	for _, c := range e.Checks {
		if c.Remote && t.Host == nil {
			continue
		}
		if c.RequiresRegistry && t.Registry == nil {
			continue
		}

		ok, remediation, err := c.Run(ctx, t)
		if err != nil {
			log.WithField("check", c.Name).WithError(err).Debug("check errored")
			ok = false
			if remediation == "" {
				remediation = err.Error()
			}
		}

		report.record(c.Name, c.Severity, ok, remediation)
	}

	return report
}

// Write renders the report for humans.
func Write(w io.Writer, r *Report) {
	for _, res := range r.Results {
		mark := map[Verdict]string{Pass: "ok", Warn: "warn", Fail: "FAIL"}[res.Verdict]
		fmt.Fprintf(w, "[%-4s] %s\n", mark, res.Name)
		if res.Remediation != "" {
			fmt.Fprintf(w, "       %s\n", res.Remediation)
		}
	}

	fmt.Fprintf(w, "\n%d passed, %d warnings, %d failures: %s\n",
		r.Passed, r.Warned, r.Failed, r.Overall())
}
