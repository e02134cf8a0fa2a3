package importer

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Upstream LLM exports are frequently Python repr strings rather than
// JSON: single quotes around keys and values, including the
// 'record:N:N' citation tokens. The repairs below recover the common
// shapes before giving up.
var (
	recordTokenPattern   = regexp.MustCompile(`'record:(\d+:\d+)'`)
	citationPairPattern  = regexp.MustCompile(`(\d+):(\d+)`)
	candidateNamePattern = regexp.MustCompile(`Name\.fullName:\s*([^\n]+)`)
)

type sanitizedClaim struct {
	Statement string   `json:"statement"`
	Citations []string `json:"citations"`
}

type sanitizedOutput struct {
	Reasoning string           `json:"reasoning"`
	Claims    []sanitizedClaim `json:"claims"`
	Category  *struct {
		Verdict any `json:"verdict"`
	} `json:"category,omitempty"`
}

// sanitizeLLMOutput normalizes one raw aspect column into the canonical
// {"reasoning", "claims", "category"} JSON document. Unparseable input
// is preserved verbatim in the reasoning field.
func sanitizeLLMOutput(raw string) string {
	if raw == "" {
		return mustJSON(sanitizedOutput{Reasoning: "", Claims: []sanitizedClaim{}})
	}

	obj, ok := parseJSONForgiving(raw)
	if !ok {
		return mustJSON(sanitizedOutput{Reasoning: raw, Claims: []sanitizedClaim{}})
	}

	out := sanitizedOutput{Claims: []sanitizedClaim{}}
	out.Reasoning, _ = obj["reasoning"].(string)
	category, _ := obj["category"].(map[string]any)
	if out.Reasoning == "" && category != nil {
		out.Reasoning, _ = category["reasoning"].(string)
	}

	out.Category = &struct {
		Verdict any `json:"verdict"`
	}{}
	if category != nil {
		out.Category.Verdict = category["verdict"]
	}

	if claims, ok := obj["claims"].([]any); ok {
		for _, rawClaim := range claims {
			out.Claims = append(out.Claims, normalizeClaim(rawClaim))
		}
	}
	return mustJSON(out)
}

// normalizeClaim extracts the statement and rewrites every citation to
// the canonical record:N:N form.
func normalizeClaim(raw any) sanitizedClaim {
	claim := sanitizedClaim{Citations: []string{}}

	obj, ok := raw.(map[string]any)
	if !ok {
		claim.Statement = stringify(raw)
		return claim
	}

	claim.Statement, _ = obj["statement"].(string)
	if citations, ok := obj["citations"].([]any); ok {
		for _, cit := range citations {
			if m := citationPairPattern.FindStringSubmatch(stringify(cit)); m != nil {
				claim.Citations = append(claim.Citations, "record:"+m[1]+":"+m[2])
			}
		}
	}
	return claim
}

// parseJSONForgiving parses raw as JSON, retrying after the common
// single-quote repairs. Returns false when no repair produces an object.
func parseJSONForgiving(raw string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj, true
	}

	repaired := recordTokenPattern.ReplaceAllString(raw, `"record:$1"`)
	repaired = strings.ReplaceAll(repaired, "'", `"`)
	if err := json.Unmarshal([]byte(repaired), &obj); err == nil {
		return obj, true
	}
	return nil, false
}

// candidateNameFromRecord pulls the candidate's full name out of the
// structured record text. Hyphens are transliteration artifacts and get
// stripped.
func candidateNameFromRecord(structuredRecord string) string {
	m := candidateNamePattern.FindStringSubmatch(structuredRecord)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(m[1], "-", ""))
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return string(mustJSONBytes(v))
}

func mustJSON(v any) string {
	return string(mustJSONBytes(v))
}

func mustJSONBytes(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Only reaches here for unmarshalable types, which the sanitizer
		// never produces.
		panic(err)
	}
	return b
}
