// Package builder runs one build: decode attachments, generate the app,
// publish it to GitHub, and report where it ended up.
package builder

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"pagesmith/engine"
	"pagesmith/engine/generate"
	"pagesmith/engine/publish"
)

// Generator produces the repository files for a brief.
type Generator interface {
	Generate(ctx context.Context, in generate.Input) (generate.Output, error)
}

// Publisher is the subset of the GitHub client the builder needs.
type Publisher interface {
	EnsureRepo(ctx context.Context, name string, description string) (string, error)
	PutFile(ctx context.Context, repo string, path string, content []byte, message string) error
	ReadFile(ctx context.Context, repo string, path string) (string, error)
	EnablePages(ctx context.Context, repo string) error
	LatestCommitSHA(ctx context.Context, repo string) (string, error)
	PagesURL(repo string) string
	Owner() string
}

type Builder struct {
	Generator     Generator
	Publisher     Publisher
	AttachmentDir string
}

func New(gen Generator, pub Publisher, attachmentDir string) *Builder {
	return &Builder{
		Generator:     gen,
		Publisher:     pub,
		AttachmentDir: attachmentDir,
	}
}

// Build executes the full pipeline for one task. The returned result always
// carries the task's JobID; Status is false only when the repo could not be
// created or the generated files could not be committed.
func (b *Builder) Build(ctx context.Context, task engine.Task) engine.Result {
	result := engine.Result{JobID: task.JobID}

	saved, err := generate.DecodeAttachments(b.AttachmentDir, task.Attachments)
	if err != nil {
		result.Error = fmt.Sprintf("failed to decode attachments: %v", err)
		return result
	}

	repoURL, err := b.Publisher.EnsureRepo(ctx, task.TaskName, fmt.Sprintf("Auto-generated app for task: %s", task.Brief))
	if err != nil {
		result.Error = fmt.Sprintf("failed to create or get repo: %v", err)
		return result
	}
	result.RepoURL = repoURL

	// revision rounds get the previous README as context
	var prevReadme string
	if task.Round > 1 {
		prevReadme, err = b.Publisher.ReadFile(ctx, task.TaskName, "README.md")
		if err != nil {
			slog.Warn("could not load previous README, generating without it", "task", task.TaskName, "error", err)
		}
	}

	gen, err := b.Generator.Generate(ctx, generate.Input{
		Brief:           task.Brief,
		Checks:          task.Checks,
		Round:           task.Round,
		PrevReadme:      prevReadme,
		AttachmentsMeta: generate.SummarizeAttachments(saved),
	})
	if err != nil {
		result.Error = fmt.Sprintf("generation failed: %v", err)
		return result
	}
	result.Fallback = gen.Fallback

	// first round also commits the submission's attachments
	if task.Round == 1 {
		b.commitAttachments(ctx, task.TaskName, saved)
	}

	for name, content := range gen.Files {
		message := fmt.Sprintf("Add/Update %s for round %d", name, task.Round)
		if err := b.Publisher.PutFile(ctx, task.TaskName, name, []byte(content), message); err != nil {
			result.Error = fmt.Sprintf("failed to commit %s: %v", name, err)
			return result
		}
	}

	if err := b.Publisher.PutFile(ctx, task.TaskName, "LICENSE", []byte(publish.MITLicense(b.Publisher.Owner())), "Add MIT license"); err != nil {
		slog.Warn("failed to add LICENSE", "task", task.TaskName, "error", err)
	}

	if err := b.Publisher.EnablePages(ctx, task.TaskName); err != nil {
		slog.Warn("failed to enable pages", "task", task.TaskName, "error", err)
	} else {
		result.PagesURL = b.Publisher.PagesURL(task.TaskName)
	}

	sha, err := b.Publisher.LatestCommitSHA(ctx, task.TaskName)
	if err != nil {
		slog.Warn("failed to read latest commit", "task", task.TaskName, "error", err)
	}
	result.CommitSHA = sha

	result.Status = true
	return result
}

// commitAttachments pushes decoded attachments under attachments/. Binary
// files also get a base64 sidecar, matching what graders historically
// expected to find. Failures here don't fail the build.
func (b *Builder) commitAttachments(ctx context.Context, repo string, saved []generate.SavedAttachment) {
	for _, att := range saved {
		content, err := os.ReadFile(att.Path)
		if err != nil {
			slog.Warn("attachment read failed", "name", att.Name, "error", err)
			continue
		}

		path := fmt.Sprintf("attachments/%s", att.Name)
		if err := b.Publisher.PutFile(ctx, repo, path, content, fmt.Sprintf("Add attachment %s", att.Name)); err != nil {
			slog.Warn("attachment commit failed", "name", att.Name, "error", err)
			continue
		}

		if !generate.IsTextAttachment(att.Name, att.Mime) {
			b64 := base64.StdEncoding.EncodeToString(content)
			backupPath := fmt.Sprintf("attachments/%s.b64", att.Name)
			if err := b.Publisher.PutFile(ctx, repo, backupPath, []byte(b64), fmt.Sprintf("Backup %s.b64", att.Name)); err != nil {
				slog.Warn("attachment backup commit failed", "name", att.Name, "error", err)
			}
		}
	}
}
