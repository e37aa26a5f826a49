package agent

import "regexp"

// builtinSecretPatterns are pre-compiled patterns for common secret shapes.
// Applied to every tool result before it is appended to the conversation,
// regardless of which tool produced it; a handler has no way to opt out.
var builtinSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[\w-]{20,}['"]?`),
	regexp.MustCompile(`(?i)bearer\s+[\w-\.]+`),
	regexp.MustCompile(`(?i)(aws|amazon).*?(key|secret|token)\s*[:=]\s*['"]?[\w/+=]{20,}['"]?`),
	regexp.MustCompile(`(?i)(password|passwd|secret|token)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
}

const redactionText = "[REDACTED]"

// redactSecrets scans tool output for common secret shapes (API keys,
// bearer tokens, AWS credentials, PEM private keys) before the result is
// appended to the conversation. A handler may have echoed an environment
// variable or a file's contents verbatim; this is the one place every tool
// result passes through regardless of which handler produced it.
func redactSecrets(content string) string {
	for _, re := range builtinSecretPatterns {
		content = re.ReplaceAllString(content, redactionText)
	}
	return content
}
