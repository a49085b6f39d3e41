package deckgen

import (
	"strings"
)

// State is the normalized job state.
type State string

const (
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

var (
	DefaultSuccessStatuses = []string{"completed", "done", "success", "succeeded", "finished"}
	DefaultFailureStatuses = []string{"failed", "error", "cancelled", "canceled"}

	// ArtifactAliases lists the field names the backend has used for the
	// downloadable artifact, highest priority first.
	ArtifactAliases = []string{"pdfUrl", "exportUrl", "fileUrl", "downloadUrl", "url", "gammaUrl"}

	nestedContainers = []string{"output", "result"}
	jobIDAliases     = []string{"generationId", "id", "jobId"}
)

// StatusSet classifies raw provider status strings. Anything it does not
// recognize is pending.
type StatusSet struct {
	success map[string]bool
	failure map[string]bool
}

func NewStatusSet(success, failure []string) StatusSet {
	if len(success) == 0 {
		success = DefaultSuccessStatuses
	}
	if len(failure) == 0 {
		failure = DefaultFailureStatuses
	}
	s := StatusSet{success: map[string]bool{}, failure: map[string]bool{}}
	for _, v := range success {
		if k := normalizeStatus(v); k != "" {
			s.success[k] = true
		}
	}
	for _, v := range failure {
		if k := normalizeStatus(v); k != "" {
			s.failure[k] = true
		}
	}
	return s
}

func (s StatusSet) Classify(raw string) State {
	k := normalizeStatus(raw)
	switch {
	case s.success[k]:
		return StateSucceeded
	case s.failure[k]:
		return StateFailed
	default:
		return StatePending
	}
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ExtractArtifactURL returns the first non-empty alias field, checking the top
// level before the nested output and result objects.
func ExtractArtifactURL(body map[string]any) string {
	if v := firstString(body, ArtifactAliases); v != "" {
		return v
	}
	for _, key := range nestedContainers {
		nested, ok := body[key].(map[string]any)
		if !ok {
			continue
		}
		if v := firstString(nested, ArtifactAliases); v != "" {
			return v
		}
	}
	return ""
}

func extractJobID(body map[string]any) string {
	return firstString(body, jobIDAliases)
}

func extractStatus(body map[string]any) string {
	if v := firstString(body, []string{"status", "state"}); v != "" {
		return v
	}
	for _, key := range nestedContainers {
		if nested, ok := body[key].(map[string]any); ok {
			if v := firstString(nested, []string{"status", "state"}); v != "" {
				return v
			}
		}
	}
	return ""
}

func extractMessage(body map[string]any) string {
	switch e := body["error"].(type) {
	case string:
		if strings.TrimSpace(e) != "" {
			return strings.TrimSpace(e)
		}
	case map[string]any:
		if v := firstString(e, []string{"message", "detail"}); v != "" {
			return v
		}
	}
	return firstString(body, []string{"message", "detail", "reason"})
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}
