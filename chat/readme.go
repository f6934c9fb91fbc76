package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/tk103331/eino-chatlab/store"
)

const readmeSystem = "You write clear, well structured README files for software projects."

const readmeRequest = `Write a README.md for the project described below.
Return the complete README between {{.open}} and {{.close}}, each marker on its own line.

Project name: {{.info.ProjectName}}
{{- with .info.Description}}
Description: {{.}}
{{- end}}
{{- with .info.AuthorNames}}
Authors: {{range $i, $a := .}}{{if $i}}, {{end}}{{$a}}{{end}}
{{- end}}
{{- with .info.GithubHandles}}
GitHub handles: {{range $i, $h := .}}{{if $i}}, {{end}}@{{$h}}{{end}}
{{- end}}
{{- with .info.RepoLink}}
Repository: {{.}}
{{- end}}
{{- with .info.ProgrammingLanguages}}
Languages: {{range $i, $l := .}}{{if $i}}, {{end}}{{$l}}{{end}}
{{- end}}
{{- if .info.ConfigFile.Content}}

Configuration file {{.info.ConfigFile.Name}}:
` + "```" + `
{{.info.ConfigFile.Content}}
` + "```" + `
{{- end}}`

var readmeTemplate = prompt.FromMessages(schema.GoTemplate,
	schema.SystemMessage(readmeSystem),
	schema.UserMessage(readmeRequest),
)

func trimAll(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GenerateReadme stores the project info and asks the model for a README
// wrapped in the snippet markers
func (s *Service) GenerateReadme(ctx context.Context, info store.ProjectInfo) (*Reply, error) {
	info.ProjectName = strings.TrimSpace(info.ProjectName)
	if info.ProjectName == "" {
		return nil, ErrInvalidProject
	}
	info.AuthorNames = trimAll(info.AuthorNames)
	info.GithubHandles = trimAll(info.GithubHandles)
	info.ProgrammingLanguages = trimAll(info.ProgrammingLanguages)

	if s.store != nil {
		if err := s.store.SaveProjectInfo(ctx, &info); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}

	open, closing := s.segmenter.Delimiters()
	msgs, err := readmeTemplate.Format(ctx, map[string]any{
		"info":  info,
		"open":  open,
		"close": closing,
	})
	if err != nil {
		return nil, fmt.Errorf("format readme prompt: %w", err)
	}

	reply, err := s.complete(ctx, s.readme, msgs)
	if err != nil {
		return nil, err
	}

	id, err := s.record(ctx, info.ParticipantID, msgs[len(msgs)-1].Content, reply.Message)
	if err != nil {
		return nil, err
	}
	reply.InteractionID = id
	reply.ProjectID = info.ID
	return reply, nil
}
