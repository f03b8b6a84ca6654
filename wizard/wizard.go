// Package wizard collects a provisioning request interactively. Each huh
// form validates its inputs on entry, so by the time Run returns, the
// request passes the same predicates the non-interactive path enforces.
package wizard

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/platformeng/infrarepo/config"
	"github.com/platformeng/infrarepo/githost"
	"github.com/platformeng/infrarepo/provision"
)

var (
	appNameRegexp   = regexp.MustCompile(`^[a-z0-9-]+$`)
	accountIDRegexp = regexp.MustCompile(`^[0-9]{12}$`)
)

// Run fills the missing fields of the request by prompting. Fields already
// supplied (via flags or a request file) are not asked again.
func Run(ctx context.Context, req *config.Request) error {
	if err := runIdentityGroup(ctx, req); err != nil {
		return fmt.Errorf("application identity: %w", err)
	}

	if err := runAccountsGroup(ctx, req); err != nil {
		return fmt.Errorf("aws accounts: %w", err)
	}

	if err := runApproversGroup(ctx, req); err != nil {
		return fmt.Errorf("approvers: %w", err)
	}

	if err := runRegionGroup(ctx, req); err != nil {
		return fmt.Errorf("region: %w", err)
	}

	*req = req.WithDefaults()

	return nil
}

func runIdentityGroup(ctx context.Context, req *config.Request) error {
	var fields []huh.Field

	if req.AppName == "" {
		fields = append(fields, huh.NewInput().
			Title("Application Name").
			Description("Lowercase alphanumeric characters and hyphens").
			Placeholder("my-web-app").
			Value(&req.AppName).
			Validate(validateAppName))
	}

	if req.Org == "" {
		fields = append(fields, huh.NewInput().
			Title("GitHub Organization").
			Value(&req.Org).
			Validate(required("organization")))
	}

	if req.RepoName == "" {
		fields = append(fields, huh.NewInput().
			Title("Repository Name (Optional)").
			Description("Defaults to <app-name>"+config.RepoNameSuffix).
			Value(&req.RepoName))
	}

	if len(fields) == 0 {
		return nil
	}

	return huh.NewForm(
		huh.NewGroup(fields...).Title("Application"),
	).RunWithContext(ctx)
}

func runAccountsGroup(ctx context.Context, req *config.Request) error {
	if req.Accounts == nil {
		req.Accounts = map[string]string{}
	}

	inputs := map[string]*string{}
	var fields []huh.Field

	for _, env := range config.EnvNames {
		if req.Accounts[env] != "" {
			continue
		}

		var v string
		inputs[env] = &v

		fields = append(fields, huh.NewInput().
			Title(fmt.Sprintf("%s AWS Account ID", strings.ToUpper(env[:1])+env[1:])).
			Description("12-digit account identifier").
			Placeholder("123456789012").
			Value(&v).
			Validate(validateAccountID))
	}

	if len(fields) == 0 {
		return nil
	}

	if err := huh.NewForm(
		huh.NewGroup(fields...).Title("AWS Accounts"),
	).RunWithContext(ctx); err != nil {
		return err
	}

	for env, v := range inputs {
		req.Accounts[env] = *v
	}

	return nil
}

func runApproversGroup(ctx context.Context, req *config.Request) error {
	var staging, prod string
	var fields []huh.Field

	if len(req.StagingApprovers) == 0 {
		fields = append(fields, huh.NewInput().
			Title("Staging Approvers").
			Description("Comma-separated GitHub handles. Leaving this empty is allowed but leaves staging ungated.").
			Placeholder("john, jane").
			Value(&staging))
	}

	if len(req.ProdApprovers) == 0 {
		fields = append(fields, huh.NewInput().
			Title("Production Approvers").
			Description("Comma-separated GitHub handles. Leaving this empty is allowed but leaves production ungated.").
			Placeholder("lee, kim").
			Value(&prod))
	}

	if len(fields) == 0 {
		return nil
	}

	if err := huh.NewForm(
		huh.NewGroup(fields...).Title("Approvers"),
	).RunWithContext(ctx); err != nil {
		return err
	}

	if staging != "" {
		req.StagingApprovers = config.ParseApprovers(staging)
	}
	if prod != "" {
		req.ProdApprovers = config.ParseApprovers(prod)
	}

	return nil
}

func runRegionGroup(ctx context.Context, req *config.Request) error {
	if req.Region != "" {
		return nil
	}

	req.Region = config.DefaultRegion

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("AWS Region").
				Value(&req.Region).
				Validate(required("region")),
			huh.NewInput().
				Title("Team Contacts (Optional)").
				Description("Notification channel or contact handle").
				Value(&req.Contacts),
		).Title("Region & Contacts"),
	).RunWithContext(ctx)
}

// Confirm is the final gate before any external side effect occurs.
func Confirm(ctx context.Context, req config.Request) (bool, error) {
	proceed := false

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Provision %s/%s?", req.Org, req.RepoName)).
				Description(summary(req)).
				Affirmative("Provision").
				Negative("Cancel").
				Value(&proceed),
		),
	).RunWithContext(ctx)

	return proceed, err
}

// Decider prompts the operator when the target repository already exists.
func Decider(ctx context.Context) provision.DecisionFunc {
	return func(repo *githost.Repository, existence githost.Existence) (provision.Decision, error) {
		decision := provision.Abort

		err := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[provision.Decision]().
					Title(fmt.Sprintf("Repository %s already exists (%s)", repo.FullName(), existence)).
					Options(
						huh.NewOption("Abort", provision.Abort),
						huh.NewOption("Continue with the existing repository", provision.Proceed),
						huh.NewOption("Continue and overwrite its contents", provision.Recreate),
					).
					Value(&decision),
			),
		).RunWithContext(ctx)

		return decision, err
	}
}

func summary(req config.Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "app: %s\n", req.AppName)
	for _, env := range config.EnvNames {
		fmt.Fprintf(&b, "%s account: %s\n", env, req.Accounts[env])
	}
	fmt.Fprintf(&b, "staging approvers: %s\n", strings.Join(req.StagingApprovers, ", "))
	fmt.Fprintf(&b, "prod approvers: %s\n", strings.Join(req.ProdApprovers, ", "))
	fmt.Fprintf(&b, "region: %s", req.Region)

	return b.String()
}

func validateAppName(s string) error {
	if !appNameRegexp.MatchString(s) {
		return fmt.Errorf("must be lowercase alphanumeric characters and hyphens")
	}
	return nil
}

func validateAccountID(s string) error {
	if !accountIDRegexp.MatchString(s) {
		return fmt.Errorf("must be a 12-digit AWS account ID")
	}
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
