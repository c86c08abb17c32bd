package invoice

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// PromptConfig holds the instructions sent with every extraction request
type PromptConfig struct {
	InvoiceExtraction struct {
		System              string `yaml:"system"`
		UserTemplate        string `yaml:"user_template"`
		FunctionDescription string `yaml:"function_description"`
	} `yaml:"invoice_extraction"`

	userTmpl *template.Template
}

// LoadPrompts reads prompts from a YAML file, or the built-in prompts when path is empty
func LoadPrompts(path string) (*PromptConfig, error) {
	data := defaultPrompts
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompts file: %w", err)
		}
		data = raw
	}

	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if prompts.InvoiceExtraction.System == "" || prompts.InvoiceExtraction.UserTemplate == "" {
		return nil, fmt.Errorf("invoice_extraction prompts must define system and user_template")
	}

	tmpl, err := template.New("invoice_extraction").Parse(prompts.InvoiceExtraction.UserTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	prompts.userTmpl = tmpl

	return &prompts, nil
}

// RenderUser renders the user message for the given invoice text
func (p *PromptConfig) RenderUser(text string) (string, error) {
	var buf bytes.Buffer
	if err := p.userTmpl.Execute(&buf, struct{ Text string }{Text: text}); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
