package template

// Bodies of the generated README and example files. They carry the
// per-environment parameters so that teams only have to copy an example
// and fill in the workload-specific values.

const environmentsDocBody = `# Environments

Deployment environments for {{ .AppName }}. This file is generated by the
provisioning tool and rewritten on every run; the same configuration is
applied to the repository's deployment environments on the host.

| Environment | Branch | AWS account | Approvers | Wait timer |
|-------------|--------|-------------|-----------|------------|
| dev | dev | {{ index .Accounts "dev" }} | none | none |
| staging | staging | {{ index .Accounts "staging" }} | {{ if .StagingApprovers }}{{ join ", " .StagingApprovers }}{{ else }}none{{ end }} | none |
| production | production | {{ index .Accounts "prod" }} | {{ if .ProdApprovers }}{{ join ", " .ProdApprovers }}{{ else }}none{{ end }} | 5 minutes |

Deployments to staging and production require approval from the listed
reviewers. To change a list, re-run provisioning with the new approvers.
`

const tfvarsReadmeBody = `# tfvars

Environment-specific Terraform variable files for {{ .AppName }}.

This directory is intentionally populated with ` + "`.example`" + ` files only.
Copy the example for an environment and fill in your workload values:

    cp dev-terraform.tfvars.example dev-terraform.tfvars

The deployment pipeline for a branch picks up ` + "`<env>-terraform.tfvars`" + `.
Nothing deploys until at least one of these files exists.
`

const tfvarsExampleBody = `# Terraform variables for the {{ .Env }} environment of {{ .AppName }}.
# Copy to {{ .Env }}-terraform.tfvars and adjust before deploying.

app_name       = "{{ .AppName }}"
environment    = "{{ .Env }}"
aws_account_id = "{{ .AccountID }}"
aws_region     = "{{ .Region }}"

instance_type = "t3.micro"
min_size      = 1
max_size      = 2
`

const userdataReadmeBody = `# userdata

Instance bootstrap scripts for {{ .AppName }}, one per environment and OS.

This directory is intentionally populated with ` + "`.example`" + ` files only.
Copy the example matching your environment and OS, drop the ` + "`.example`" + `
suffix, and edit it to bootstrap your workload.
`

const userdataLinuxExampleBody = `#!/bin/bash
# Bootstrap script for {{ .AppName }} ({{ .Env }}, Linux).
# Copy to {{ .Env }}-linux.sh and adjust before deploying.
set -euo pipefail

echo "bootstrapping {{ .AppName }} in {{ .Env }} (account {{ .AccountID }})"
`

const userdataWindowsExampleBody = `# Bootstrap script for {{ .AppName }} ({{ .Env }}, Windows).
# Copy to {{ .Env }}-windows.ps1 and adjust before deploying.

Write-Host "bootstrapping {{ .AppName }} in {{ .Env }} (account {{ .AccountID }})"
`
