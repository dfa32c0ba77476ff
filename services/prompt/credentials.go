package prompt

import (
	"regexp"
	"sort"
	"strings"
)

// CredentialType identifies the kind of credential found in a message
type CredentialType string

const (
	CredentialOpenRouter  CredentialType = "openrouter_key"
	CredentialHuggingFace CredentialType = "huggingface_token"
	CredentialOpenAI      CredentialType = "openai_key"
	CredentialAnthropic   CredentialType = "anthropic_key"
	CredentialGitHub      CredentialType = "github_token"
	CredentialAWS         CredentialType = "aws_key"
	CredentialJWT         CredentialType = "jwt"
	CredentialPrivateKey  CredentialType = "private_key"
	CredentialBearer      CredentialType = "bearer_token"
)

// CredentialDetection is one match inside a message
type CredentialDetection struct {
	Type     CredentialType
	StartPos int
	EndPos   int
}

type credentialPattern struct {
	kind    CredentialType
	pattern *regexp.Regexp
}

// Ordered from most to least specific; overlapping matches keep the first.
var credentialPatterns = []credentialPattern{
	{CredentialOpenRouter, regexp.MustCompile(`\bsk-or-v1-[A-Za-z0-9]{32,}\b`)},
	{CredentialAnthropic, regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_\-]{32,}`)},
	{CredentialOpenAI, regexp.MustCompile(`\bsk-(?:proj-)?[A-Za-z0-9_\-]{32,}`)},
	{CredentialHuggingFace, regexp.MustCompile(`\bhf_[A-Za-z0-9]{30,}\b`)},
	{CredentialGitHub, regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{CredentialAWS, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{CredentialJWT, regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+`)},
	{CredentialPrivateKey, regexp.MustCompile(`-----BEGIN\s+(?:RSA\s+|OPENSSH\s+|EC\s+|DSA\s+)?PRIVATE\s+KEY-----`)},
	{CredentialBearer, regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-\.]{20,}`)},
}

// DetectCredentials returns every credential found in text, ordered by position
func DetectCredentials(text string) []CredentialDetection {
	var detections []CredentialDetection

	for _, p := range credentialPatterns {
		for _, match := range p.pattern.FindAllStringIndex(text, -1) {
			if overlaps(detections, match[0], match[1]) {
				continue
			}
			detections = append(detections, CredentialDetection{
				Type:     p.kind,
				StartPos: match[0],
				EndPos:   match[1],
			})
		}
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].StartPos < detections[j].StartPos
	})
	return detections
}

// providerKeyTypes are the key formats accepted by the chat providers
var providerKeyTypes = map[CredentialType]bool{
	CredentialOpenRouter:  true,
	CredentialHuggingFace: true,
}

// ContainsProviderKey reports whether text holds an OpenRouter or Hugging Face key.
// Other token shapes (JWTs, bearer headers, cloud keys) are common in questions
// and are only redacted from logs.
func ContainsProviderKey(text string) bool {
	for _, d := range DetectCredentials(text) {
		if providerKeyTypes[d.Type] {
			return true
		}
	}
	return false
}

// RedactCredentials replaces every detected credential with a type marker
func RedactCredentials(text string) string {
	detections := DetectCredentials(text)
	if len(detections) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, d := range detections {
		b.WriteString(text[last:d.StartPos])
		b.WriteString("[REDACTED_" + strings.ToUpper(string(d.Type)) + "]")
		last = d.EndPos
	}
	b.WriteString(text[last:])
	return b.String()
}

func overlaps(detections []CredentialDetection, start, end int) bool {
	for _, d := range detections {
		if start < d.EndPos && end > d.StartPos {
			return true
		}
	}
	return false
}
