package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Language is a script language supported by the dispatch layer.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageBash       Language = "bash"
	LanguageShell      Language = "sh"
	LanguageJavaScript Language = "javascript"
	LanguageRuby       Language = "ruby"
	// LanguageNone means the language could not be detected. It must be
	// treated as unsupported everywhere.
	LanguageNone Language = ""
)

// languageByExtension is the pure extension -> language lookup table. Adding
// a language is a data change, never a control flow change.
var languageByExtension = map[string]Language{
	".py":   LanguagePython,
	".sh":   LanguageShell,
	".bash": LanguageBash,
	".js":   LanguageJavaScript,
	".mjs":  LanguageJavaScript,
	".rb":   LanguageRuby,
}

// DetectLanguage returns the script language for a file name based on its
// extension, or LanguageNone when the extension is not recognized.
func DetectLanguage(fileName string) Language {
	return languageByExtension[strings.ToLower(filepath.Ext(fileName))]
}

// Script is a named script file belonging to a named skill.
type Script struct {
	Skill    string
	FileName string
	Language Language
	BaseDir  string
}

// NewScript builds a script model, detecting the language from the file
// extension.
func NewScript(skill, fileName, baseDir string) Script {
	return Script{
		Skill:    skill,
		FileName: fileName,
		Language: DetectLanguage(fileName),
		BaseDir:  baseDir,
	}
}

// Path is the canonical location of the script file on disk.
func (s Script) Path() string {
	return filepath.Join(s.BaseDir, "scripts", s.FileName)
}

// ToolID is the stable identifier used for dispatch and logging:
// the skill name plus the file name without its extension.
func (s Script) ToolID() string {
	base := strings.TrimSuffix(s.FileName, filepath.Ext(s.FileName))
	return s.Skill + "_" + base
}

// Validate validates the script model.
func (s Script) Validate() error {
	if s.Skill == "" {
		return fmt.Errorf("skill name is required: %w", ErrNotValid)
	}
	if s.FileName == "" {
		return fmt.Errorf("file name is required: %w", ErrNotValid)
	}
	if s.BaseDir == "" {
		return fmt.Errorf("base directory is required: %w", ErrNotValid)
	}
	return nil
}
