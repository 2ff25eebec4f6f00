// Package structgen is the structured-generation port: the pipeline's
// generation stages communicate an output contract to the model in natural
// language and parse the free-text reply defensively here. Extraction and
// repair are deliberately separate from the model call so they can be tested
// without one.
package structgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParseError indicates the model output did not contain a well-formed
// structured block. Stages treat this as fatal; an unparsable transcript or
// graph cannot safely be carried forward.
type ParseError struct {
	Reason string
	Output string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unparsable generation output: %s: %v", e.Reason, e.Err)
	}

	return "unparsable generation output: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError checks whether err is a structured-output parse failure.
func IsParseError(err error) bool {
	var target *ParseError

	return errors.As(err, &target)
}

// ExtractStructuredBlock locates the single JSON object embedded in model
// output, stripping incidental fences and surrounding prose. The object may
// be bare, inside ``` or ```json fences, or preceded/followed by commentary.
func ExtractStructuredBlock(output string) (string, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "", &ParseError{Reason: "empty output", Output: output}
	}

	// Prefer fenced content when present.
	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]

		// Skip a language tag such as "json" on the fence line.
		if newline := strings.IndexByte(rest, '\n'); newline >= 0 {
			firstLine := strings.TrimSpace(rest[:newline])
			if firstLine == "json" || firstLine == "" {
				rest = rest[newline+1:]
			}
		}

		if end := strings.Index(rest, "```"); end >= 0 {
			trimmed = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')

	if start < 0 || end <= start {
		return "", &ParseError{Reason: "no JSON object found", Output: output}
	}

	block := trimmed[start : end+1]

	if !json.Valid([]byte(block)) {
		return "", &ParseError{Reason: "embedded block is not valid JSON", Output: output}
	}

	return block, nil
}

// Decode extracts the structured block and unmarshals it into target.
// Unknown fields are tolerated; a shape mismatch is a ParseError.
func Decode(output string, target any) error {
	block, err := ExtractStructuredBlock(output)
	if err != nil {
		return err
	}

	err = json.Unmarshal([]byte(block), target)
	if err != nil {
		return &ParseError{Reason: "block does not match expected shape", Output: output, Err: err}
	}

	return nil
}
