// Package jsonx recovers JSON from LLM chat output. Models frequently
// wrap JSON in markdown fences or surround it with prose; every
// structured call in the system parses through here and substitutes a
// default on failure instead of erroring.
package jsonx

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	fenceRe  = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	objectRe = regexp.MustCompile(`(?s)\{.*\}`)
	arrayRe  = regexp.MustCompile(`(?s)\[.*\]`)
)

var ErrNoJSON = errors.New("no JSON value found in text")

// Extract returns the first JSON object or array span in text, looking
// inside markdown code fences first.
func Extract(text string) (string, error) {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if m := objectRe.FindString(text); m != "" {
		return m, nil
	}
	if m := arrayRe.FindString(text); m != "" {
		return m, nil
	}
	return "", ErrNoJSON
}

// Unmarshal extracts the first JSON span in text and decodes it into v.
func Unmarshal(text string, v any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(strings.TrimSpace(raw)), v)
}
