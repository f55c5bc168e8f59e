package parser

import (
	"regexp"
	"strings"
)

// CI metadata extraction never fails: absent metadata simply yields no
// overrides, and unrecognized environments pass through unchanged.

// Branch-bearing variables in precedence order; the first non-empty wins.
var branchKeys = []string{
	"GITHUB_HEAD_REF",
	"GITHUB_REF_NAME",
	"BRANCH",
	"GIT_BRANCH",
	"CI_COMMIT_BRANCH",
}

var (
	ticketKeyPattern  = regexp.MustCompile(`^[A-Z]+-\d+`)
	pullNumberPattern = regexp.MustCompile(`/pull/(\d+)$`)
)

// Environment alias table. Matching is case-insensitive on the input.
var environmentAliases = map[string]string{
	"preview": "development",
	"dev":     "development",
	"prod":    "production",
	"stage":   "staging",
	"test":    "testing",
}

// DetectBranch infers the branch name from CI-provider metadata. After
// the well-known variables it falls back to a leading ticket key in the
// PR title, then to a synthesized pr-<number> from the PR link. An empty
// result means the caller-supplied branch stands.
func DetectBranch(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}

	for _, key := range branchKeys {
		if value := strings.TrimSpace(meta[key]); value != "" {
			return value
		}
	}

	if ticket := ticketKeyPattern.FindString(meta["prTitle"]); ticket != "" {
		return ticket
	}
	if match := pullNumberPattern.FindStringSubmatch(meta["prHref"]); match != nil {
		return "pr-" + match[1]
	}
	return ""
}

// NormalizeEnvironment maps well-known environment aliases to their
// canonical names. Unrecognized names pass through unchanged.
func NormalizeEnvironment(env string) string {
	if canonical, ok := environmentAliases[strings.ToLower(env)]; ok {
		return canonical
	}
	return env
}
