package commands

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"codemate/pkg/editor"
	"codemate/pkg/vcs"
)

const (
	thisFileRef     = "#thisFile"
	localChangesRef = "#localChanges"
)

var fileRefPattern = regexp.MustCompile(`#file:(\S+)`)

// expandReferences replaces #thisFile, #localChanges and #file:<path> in a
// chat message with the content they name.
func expandReferences(text string, doc editor.Document, dir string) string {
	if strings.Contains(text, thisFileRef) {
		replacement := "(No active file)"
		if doc != nil {
			replacement = fileBlock(editor.Extract(doc, nil))
		}
		text = strings.Replace(text, thisFileRef, replacement, 1)
	}

	if strings.Contains(text, localChangesRef) {
		text = strings.Replace(text, localChangesRef, localChanges(dir), 1)
	}

	return fileRefPattern.ReplaceAllStringFunc(text, func(ref string) string {
		path := strings.TrimPrefix(ref, "#file:")
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		d, err := editor.OpenTextDocument(path)
		if err != nil {
			return "(Error reading file: " + strings.TrimPrefix(ref, "#file:") + ")"
		}
		return fileBlock(editor.Extract(d, nil))
	})
}

func fileBlock(cc editor.CodeContext) string {
	return fmt.Sprintf("File: %s (%s)\n```%s\n%s\n```", cc.FileName, cc.Language, cc.Language, cc.WholeFileText)
}

func localChanges(dir string) string {
	repo, err := vcs.Open(dir)
	if err != nil {
		return "(Not a git repository)"
	}
	changes, err := repo.AllChanges()
	if err != nil {
		return fmt.Sprintf("(Error getting git changes: %v)", err)
	}
	return "Git changes:\n```diff\n" + changes + "\n```"
}
