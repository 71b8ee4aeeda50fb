// Package secrets scans source files for exposed credentials and reports
// them as security findings.
package secrets

import "fip/internal/finding"

// SecretType identifies the kind of secret detected.
type SecretType string

const (
	SecretTypeAWSAccessKey  SecretType = "aws_access_key"
	SecretTypeAWSSecretKey  SecretType = "aws_secret_key"
	SecretTypeGitHubPAT     SecretType = "github_pat"
	SecretTypeGitHubOAuth   SecretType = "github_oauth"
	SecretTypeStripeLiveKey SecretType = "stripe_live_key"
	SecretTypeStripeTestKey SecretType = "stripe_test_key"
	SecretTypeSlackToken    SecretType = "slack_token"
	SecretTypeSlackWebhook  SecretType = "slack_webhook"
	SecretTypePrivateKey    SecretType = "private_key"
	SecretTypeJWT           SecretType = "jwt"
	SecretTypeGoogleAPIKey  SecretType = "google_api_key"
	SecretTypeNPMToken      SecretType = "npm_token"
	SecretTypeGenericAPIKey SecretType = "generic_api_key"
	SecretTypeGenericSecret SecretType = "generic_secret"
	SecretTypePasswordInURL SecretType = "password_in_url"
)

// Finding types emitted by the scanner. Both map to HARDCODED_SECRET.
const (
	TypeAPIKeyExposed = "API_KEY_EXPOSED"
	TypeSecretExposed = "SECRET_EXPOSED"
)

// Metadata keys set on emitted findings.
const (
	MetaRule       = "rule"
	MetaSecretType = "secretType"
	MetaEntropy    = "entropy"
	MetaMatch      = "match"
)

// Options tunes a scan.
type Options struct {
	// MinEntropy applies to patterns that have no threshold of their own.
	MinEntropy    float64
	// MaxFileSize skips larger files. Zero means 10MB.
	MaxFileSize   int64
	// MaxLineLength skips longer lines, which are usually minified. Zero means 1000.
	MaxLineLength int
	// Severity floor; findings below it are dropped.
	MinSeverity   finding.Severity
}

// DefaultOptions returns the scanner defaults.
func DefaultOptions() Options {
	return Options{
		MinEntropy:    3.5,
		MaxFileSize:   10 << 20,
		MaxLineLength: 1000,
		MinSeverity:   finding.SeverityLow,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinEntropy <= 0 {
		o.MinEntropy = d.MinEntropy
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = d.MaxFileSize
	}
	if o.MaxLineLength <= 0 {
		o.MaxLineLength = d.MaxLineLength
	}
	if !o.MinSeverity.Valid() {
		o.MinSeverity = d.MinSeverity
	}
	return o
}
