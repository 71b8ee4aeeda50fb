package secrets

import (
	"regexp"

	"fip/internal/finding"
)

// Pattern defines a secret detection pattern. When Regex has a capture
// group, the first group is the secret value.
type Pattern struct {
	Name        string
	Type        SecretType
	Severity    finding.Severity
	Regex       *regexp.Regexp
	MinEntropy  float64
	Description string
}

// specific reports whether the pattern matches a provider-issued format
// rather than a key/value heuristic.
func (p Pattern) specific() bool {
	switch p.Type {
	case SecretTypeGenericAPIKey, SecretTypeGenericSecret, SecretTypePasswordInURL:
		return false
	}
	return true
}

// BuiltinPatterns contains the builtin detection patterns.
var BuiltinPatterns = []Pattern{
	{
		Name:        "aws_access_key_id",
		Type:        SecretTypeAWSAccessKey,
		Severity:    finding.SeverityCritical,
		Regex:       regexp.MustCompile(`(?:^|[^A-Z0-9])((?:AKIA|ABIA|ACCA|ASIA)[A-Z0-9]{16})(?:[^A-Z0-9]|$)`),
		Description: "AWS Access Key ID",
	},
	{
		Name:        "aws_secret_key",
		Type:        SecretTypeAWSSecretKey,
		Severity:    finding.SeverityCritical,
		Regex:       regexp.MustCompile(`(?i)(?:aws[_-]?)?secret[_-]?(?:access[_-]?)?key['":\s=]+['"]?([A-Za-z0-9/+=]{40})['"]?`),
		MinEntropy:  3.5,
		Description: "AWS Secret Access Key",
	},
	{
		Name:        "github_pat",
		Type:        SecretTypeGitHubPAT,
		Severity:    finding.SeverityCritical,
		Regex:       regexp.MustCompile(`ghp_[A-Za-z0-9]{36,}`),
		Description: "GitHub Personal Access Token",
	},
	{
		Name:        "github_oauth",
		Type:        SecretTypeGitHubOAuth,
		Severity:    finding.SeverityCritical,
		Regex:       regexp.MustCompile(`gho_[A-Za-z0-9]{36,}`),
		Description: "GitHub OAuth Access Token",
	},
	{
		Name:        "stripe_live_secret",
		Type:        SecretTypeStripeLiveKey,
		Severity:    finding.SeverityCritical,
		Regex:       regexp.MustCompile(`[sr]k_live_[A-Za-z0-9]{24,}`),
		Description: "Stripe Live Key",
	},
	{
		Name:        "stripe_test_secret",
		Type:        SecretTypeStripeTestKey,
		Severity:    finding.SeverityLow,
		Regex:       regexp.MustCompile(`sk_test_[A-Za-z0-9]{24,}`),
		Description: "Stripe Test Key",
	},
	{
		Name:        "slack_token",
		Type:        SecretTypeSlackToken,
		Severity:    finding.SeverityHigh,
		Regex:       regexp.MustCompile(`xox[bp]-[0-9]{10,13}-[0-9]{10,13}-[A-Za-z0-9-]{24,}`),
		Description: "Slack Token",
	},
	{
		Name:        "slack_webhook",
		Type:        SecretTypeSlackWebhook,
		Severity:    finding.SeverityMedium,
		Regex:       regexp.MustCompile(`https://hooks\.slack\.com/services/T[A-Z0-9]{8,}/B[A-Z0-9]{8,}/[A-Za-z0-9]{24}`),
		Description: "Slack Webhook URL",
	},
	{
		Name:        "private_key",
		Type:        SecretTypePrivateKey,
		Severity:    finding.SeverityCritical,
		Regex:       regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`),
		Description: "Private Key",
	},
	{
		Name:        "jwt_token",
		Type:        SecretTypeJWT,
		Severity:    finding.SeverityMedium,
		Regex:       regexp.MustCompile(`eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`),
		MinEntropy:  3.0,
		Description: "JSON Web Token",
	},
	{
		Name:        "google_api_key",
		Type:        SecretTypeGoogleAPIKey,
		Severity:    finding.SeverityHigh,
		Regex:       regexp.MustCompile(`AIza[A-Za-z0-9_-]{35}`),
		Description: "Google API Key",
	},
	{
		Name:        "npm_token",
		Type:        SecretTypeNPMToken,
		Severity:    finding.SeverityHigh,
		Regex:       regexp.MustCompile(`npm_[A-Za-z0-9]{36}`),
		Description: "NPM Access Token",
	},
	{
		Name:        "generic_api_key",
		Type:        SecretTypeGenericAPIKey,
		Severity:    finding.SeverityMedium,
		Regex:       regexp.MustCompile(`(?i)(?:api[_-]?key|apikey)['":\s=]+['"]?([A-Za-z0-9_-]{20,64})['"]?`),
		MinEntropy:  3.5,
		Description: "Generic API Key",
	},
	{
		Name:        "generic_secret",
		Type:        SecretTypeGenericSecret,
		Severity:    finding.SeverityMedium,
		Regex:       regexp.MustCompile(`(?i)(?:secret|password|passwd|pwd|token)['":\s=]+['"]?([A-Za-z0-9!@#$%^&*()_+\-=]{8,64})['"]?`),
		MinEntropy:  3.0,
		Description: "Generic Secret or Password",
	},
	{
		Name:        "password_in_url",
		Type:        SecretTypePasswordInURL,
		Severity:    finding.SeverityHigh,
		Regex:       regexp.MustCompile(`://[^:/\s]+:([^@\s]{3,})@[^/\s]+`),
		MinEntropy:  2.5,
		Description: "Password in URL",
	},
}

// PatternByName returns the builtin pattern with name, or nil.
func PatternByName(name string) *Pattern {
	for i := range BuiltinPatterns {
		if BuiltinPatterns[i].Name == name {
			return &BuiltinPatterns[i]
		}
	}
	return nil
}
