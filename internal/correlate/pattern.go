package correlate

import (
	"sort"
	"strings"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// maxPatternWords caps the common-word fallback of a message pattern.
const maxPatternWords = 5

// extractPattern derives what the members of a cluster share: labels
// identical across every member, the distinct service names, and a
// template of their messages. Identical clusters always produce
// identical patterns.
func extractPattern(cluster []model.AlertRecord) model.Pattern {
	if len(cluster) == 0 {
		return model.Pattern{MessagePattern: "pattern_detected"}
	}

	common := make(map[string]string, len(cluster[0].Labels))
	for k, v := range cluster[0].Labels {
		common[k] = v
	}
	serviceSet := make(map[string]struct{})
	messages := make([]string, len(cluster))
	for i := range cluster {
		alert := &cluster[i]
		messages[i] = alert.Message
		if svc := alert.Labels["service"]; svc != "" {
			serviceSet[svc] = struct{}{}
		}
		if i == 0 {
			continue
		}
		for k, v := range common {
			if alert.Labels[k] != v {
				delete(common, k)
			}
		}
	}

	services := make([]string, 0, len(serviceSet))
	for svc := range serviceSet {
		services = append(services, svc)
	}
	sort.Strings(services)

	return model.Pattern{
		Services:       services,
		CommonLabels:   common,
		MessagePattern: messagePattern(messages),
	}
}

// messagePattern reduces a set of messages to a template. Identical
// messages pass through unchanged; otherwise a long shared prefix or
// suffix becomes a wildcard template; otherwise the words common to
// every message (sorted, capped) stand in; and when nothing is shared
// an opaque token marks that a pattern exists but could not be named.
func messagePattern(messages []string) string {
	if len(messages) == 0 {
		return "pattern_detected"
	}
	allEqual := true
	for _, m := range messages[1:] {
		if m != messages[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return messages[0]
	}

	if prefix := commonPrefix(messages); len([]rune(prefix)) > 10 {
		return prefix + "*"
	}
	if suffix := commonSuffix(messages); len([]rune(suffix)) > 10 {
		return "*" + suffix
	}

	wordSet := make(map[string]int)
	for _, m := range messages {
		seen := make(map[string]struct{})
		for _, w := range strings.Fields(m) {
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			wordSet[w]++
		}
	}
	var shared []string
	for w, n := range wordSet {
		if n == len(messages) {
			shared = append(shared, w)
		}
	}
	if len(shared) > 0 {
		sort.Strings(shared)
		if len(shared) > maxPatternWords {
			shared = shared[:maxPatternWords]
		}
		return strings.Join(shared, " ")
	}
	return "pattern_detected"
}

func commonPrefix(messages []string) string {
	prefix := []rune(messages[0])
	for _, m := range messages[1:] {
		runes := []rune(m)
		if len(runes) < len(prefix) {
			prefix = prefix[:len(runes)]
		}
		for i := range prefix {
			if runes[i] != prefix[i] {
				prefix = prefix[:i]
				break
			}
		}
		if len(prefix) == 0 {
			break
		}
	}
	return string(prefix)
}

func commonSuffix(messages []string) string {
	suffix := []rune(messages[0])
	for _, m := range messages[1:] {
		runes := []rune(m)
		n := len(suffix)
		if len(runes) < n {
			n = len(runes)
		}
		matched := 0
		for matched < n && runes[len(runes)-1-matched] == suffix[len(suffix)-1-matched] {
			matched++
		}
		suffix = suffix[len(suffix)-matched:]
		if matched == 0 {
			break
		}
	}
	return string(suffix)
}
