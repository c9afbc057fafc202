package prompts

import (
	"bytes"
	"text/template"

	"formfill/internal/domain/entity"
)

type FieldInfo struct {
	ID        int
	Tag       string
	InputType string
}

type UserPromptData struct {
	Markup      string
	Fields      []FieldInfo
	Instruction string
}

// NewUserPromptData builds template data from a snapshot in field order.
func NewUserPromptData(snap *entity.Snapshot, instruction string) UserPromptData {
	data := UserPromptData{
		Markup:      snap.Markup,
		Instruction: instruction,
		Fields:      make([]FieldInfo, 0, len(snap.Fields)),
	}
	for _, f := range snap.Fields {
		data.Fields = append(data.Fields, FieldInfo{
			ID:        f.ID,
			Tag:       f.Tag,
			InputType: f.InputType,
		})
	}
	return data
}

// ParseUserTemplate fails on templates that do not parse.
func ParseUserTemplate(baseTemplate string) (*template.Template, error) {
	return template.New("user").Option("missingkey=error").Parse(baseTemplate)
}

func GenerateUserPrompt(tmpl *template.Template, data UserPromptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
