package envvar

const (
	// Prefix is the prefix of the environment variables used by infrarepo.
	// All the environment variables used by infrarepo start with this prefix,
	// except for the ones that are defined by the platforms we integrate with,
	// like GITHUB_TOKEN.
	Prefix = "INFRAREPO_"

	// GitHubToken authenticates both the GitHub API calls and the git pushes.
	GitHubToken = "GITHUB_TOKEN"

	// GitHubBaseURL overrides the GitHub API base URL.
	// Mainly for swapping out api.github.com in tests,
	// but also useful for GitHub Enterprise.
	GitHubBaseURL = Prefix + "GITHUB_BASE_URL"

	// GitRoot is the directory under which the provisioned repository is
	// cloned and materialized before being committed and pushed.
	// If empty, a temporary directory is used.
	GitRoot = Prefix + "GIT_ROOT"

	GitCommitAuthorName  = Prefix + "COMMIT_AUTHOR_NAME"
	GitCommitAuthorEmail = Prefix + "COMMIT_AUTHOR_EMAIL"

	// TemplateRoot is the directory that contains the repository template
	// copied into every provisioned repository.
	TemplateRoot = Prefix + "TEMPLATE_ROOT"
)
