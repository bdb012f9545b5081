package contentscan

import (
	"bytes"
	"regexp"
)

// Pattern is one fast content check. Prefix anchors at offset 0, Literal
// matches anywhere, Regex is for anything the other two cannot express.
type Pattern struct {
	ID      string
	Prefix  []byte
	Literal []byte
	Regex   *regexp.Regexp
}

func (p Pattern) Match(content []byte) bool {
	switch {
	case p.Prefix != nil:
		return bytes.HasPrefix(content, p.Prefix)
	case p.Literal != nil:
		return bytes.Contains(content, p.Literal)
	case p.Regex != nil:
		return p.Regex.Match(content)
	}
	return false
}

// defaultPatterns covers embedded markup/script injection and executable
// magic bytes, none of which belong in a document or image upload.
var defaultPatterns = []Pattern{
	{ID: "script_tag_pattern", Regex: regexp.MustCompile(`(?i)<script`)},
	{ID: "iframe_tag_pattern", Regex: regexp.MustCompile(`(?i)<iframe`)},
	{ID: "php_tag_pattern", Literal: []byte("<?php")},
	{ID: "pdf_js_action", Literal: []byte("/JavaScript")},
	{ID: "eicar_signature", Literal: []byte("EICAR-STANDARD-ANTIVIRUS-TEST-FILE")},
	{ID: "pe_executable_magic", Prefix: []byte("MZ")},
	{ID: "elf_executable_magic", Prefix: []byte("\x7fELF")},
	{ID: "shell_script_shebang", Prefix: []byte("#!")},
}
