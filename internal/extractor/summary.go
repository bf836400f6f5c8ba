package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// sampleSize - сколько типов нод показываем в сводке
const sampleSize = 5

type workflowSummary struct {
	Nodes  int
	Links  int
	Sample []string
}

type workflowDoc struct {
	Nodes []json.RawMessage `json:"nodes"`
	Links []json.RawMessage `json:"links"`
}

// summarizeWorkflow expects {nodes: [...], links: [...]}; either list may be missing.
func summarizeWorkflow(doc []byte) (workflowSummary, error) {
	if !isObject(doc) {
		return workflowSummary{}, errors.New("workflow is not a JSON object")
	}

	var wf workflowDoc
	if err := json.Unmarshal(doc, &wf); err != nil {
		return workflowSummary{}, err
	}

	sum := workflowSummary{
		Nodes:  len(wf.Nodes),
		Links:  len(wf.Links),
		Sample: make([]string, 0, sampleSize),
	}
	for i, n := range wf.Nodes {
		if i == sampleSize {
			break
		}
		sum.Sample = append(sum.Sample, nodeType(n))
	}
	return sum, nil
}

// nodeType renders the "type" field of a node; anything absent shows as None.
func nodeType(node json.RawMessage) string {
	var n struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(node, &n); err != nil || len(n.Type) == 0 || string(n.Type) == "null" {
		return "None"
	}

	var s string
	if err := json.Unmarshal(n.Type, &s); err != nil {
		return string(n.Type)
	}
	return quote(s)
}

var reprEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// quote renders s the way a python list of strings prints it.
func quote(s string) string {
	s = reprEscaper.Replace(s)
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

// summarizePrompt counts top-level entries of the prompt document.
func summarizePrompt(doc []byte) (int, error) {
	switch {
	case isObject(doc):
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(doc, &obj); err != nil {
			return 0, err
		}
		return len(obj), nil
	case bytes.HasPrefix(doc, []byte("[")):
		var arr []json.RawMessage
		if err := json.Unmarshal(doc, &arr); err != nil {
			return 0, err
		}
		return len(arr), nil
	default:
		return 0, errors.New("prompt is neither a JSON object nor an array")
	}
}

func isObject(doc []byte) bool {
	return bytes.HasPrefix(doc, []byte("{"))
}
