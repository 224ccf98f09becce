package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/TradeLens/internal/workflow"
)

// Menu actions
const (
	actionSelectFile = "📂 Select trade history file"
	actionUpload     = "⬆️  Upload selected file"
	actionAnalyze    = "🔍 Analyze trades"
	actionShowAll    = "📋 Show all trades"
	actionShowFewer  = "📋 Show fewer trades"
	actionShowResult = "📊 Show result again"
	actionCharts     = "🖼  Save charts as PNG"
	actionSave       = "💾 Save result and report"
	actionHistory    = "🗂  View saved results"
	actionExit       = "👋 Exit TradeLens"
)

// PromptForCredentials asks for a username (defaulting to defaultUser) and
// a password. Both are required.
func PromptForCredentials(defaultUser string) (string, string, error) {
	answers := struct {
		Username string
		Password string
	}{}
	questions := []*survey.Question{
		{
			Name:     "username",
			Prompt:   &survey.Input{Message: "Username:", Default: defaultUser},
			Validate: survey.Required,
		},
		{
			Name:     "password",
			Prompt:   &survey.Password{Message: "Password:"},
			Validate: survey.Required,
		},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(answers.Username), answers.Password, nil
}

// PromptForPassword asks for a password only.
func PromptForPassword(username string) (string, error) {
	var password string
	prompt := &survey.Password{Message: fmt.Sprintf("Password for %s:", username)}
	err := survey.AskOne(prompt, &password, survey.WithValidator(survey.Required))
	return password, err
}

// PromptForFilePath asks for a trade history file with path completion.
// Dragging a file into the terminal pastes its path, which is accepted too.
func PromptForFilePath(allowed []string) (string, error) {
	var path string
	prompt := &survey.Input{
		Message: "Trade history file (type a path or drag the file here):",
		Help:    fmt.Sprintf("Supported formats: %s", strings.Join(allowed, ", ")),
		Suggest: func(toComplete string) []string {
			return suggestPaths(toComplete, allowed)
		},
	}
	err := survey.AskOne(prompt, &path, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		if strings.TrimSpace(str) == "" {
			return fmt.Errorf("file path cannot be empty")
		}
		return nil
	}))
	return path, err
}

// suggestPaths completes directories and files with an allowed extension.
func suggestPaths(toComplete string, allowed []string) []string {
	pattern := workflow.NormalizePath(toComplete)
	if strings.HasSuffix(toComplete, "/") {
		pattern += "/"
	}
	matches, _ := filepath.Glob(pattern + "*")
	var out []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.IsDir() {
			out = append(out, m+"/")
			continue
		}
		ext := strings.ToLower(filepath.Ext(m))
		for _, a := range allowed {
			if ext == a {
				out = append(out, m)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// PromptForAction shows the main menu.
func PromptForAction(options []string) (string, error) {
	var choice string
	prompt := &survey.Select{
		Message:  "What would you like to do?",
		Options:  options,
		PageSize: len(options),
	}
	err := survey.AskOne(prompt, &choice)
	return choice, err
}

// PromptForConfirmation asks a yes/no question.
func PromptForConfirmation(message string, def bool) (bool, error) {
	var confirmed bool
	prompt := &survey.Confirm{
		Message: message,
		Default: def,
	}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}

// PromptForRun picks one saved run.
func PromptForRun(ids []string) (string, error) {
	var id string
	prompt := &survey.Select{
		Message: "Select a saved result:",
		Options: ids,
	}
	err := survey.AskOne(prompt, &id)
	return id, err
}
