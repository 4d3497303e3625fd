package job

import (
	"strings"

	"github.com/scribeq/scribeq/workflow"
)

// DefaultType is the job type assumed when neither the job nor its
// workflow configuration names one.
const DefaultType = "transcription"

// typeKeywords are matched, in order, against each workflow node's type.
// The first keyword contained in any node's lowercased type wins.
var typeKeywords = []string{"transcription", "translation", "diarization"}

// InferType resolves the effective type of a job. An explicit job type
// always wins. Otherwise the workflow nodes are scanned in configuration
// order and the first node whose type contains a known keyword decides.
// With no workflow or no matching node, the default type is used.
func InferType(j *Job, cfg *workflow.Config) string {
	if j.Type != "" {
		return j.Type
	}
	if cfg == nil {
		return DefaultType
	}
	for _, node := range cfg.Nodes {
		nodeType := strings.ToLower(node.Type)
		for _, kw := range typeKeywords {
			if strings.Contains(nodeType, kw) {
				return kw
			}
		}
	}
	return DefaultType
}

// NodeParams extracts the data of the first workflow node whose type
// contains the given job type, letting handlers pick up per-node options
// like model size or language. It returns nil when no node matches.
func NodeParams(cfg *workflow.Config, jobType string) map[string]any {
	if cfg == nil {
		return nil
	}
	for _, node := range cfg.Nodes {
		if strings.Contains(strings.ToLower(node.Type), jobType) {
			return node.Data
		}
	}
	return nil
}
