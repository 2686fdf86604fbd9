package similarity

import "encoding/json"

// targetFields are the payload keys rewritten when an analysis result is
// reused for a different target.
var targetFields = []string{"targetPath", "projectPath", "path"}

// Adapt rewrites target-identifying fields inside a JSON object payload and
// stamps it as derived. Non-object payloads come back unchanged; the Hit's
// Adapted flag still distinguishes them from exact hits.
func Adapt(data []byte, fromPath, toPath string, score float64) []byte {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return data
	}

	for _, f := range targetFields {
		if _, ok := doc[f]; ok {
			doc[f] = toPath
		}
	}
	doc["adapted"] = true
	doc["adaptedFrom"] = fromPath
	doc["similarityScore"] = score

	out, err := json.Marshal(doc)
	if err != nil {
		return data
	}
	return out
}
