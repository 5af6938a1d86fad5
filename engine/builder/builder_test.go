package builder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesmith/engine"
	"pagesmith/engine/generate"
)

type fakeGenerator struct {
	lastInput generate.Input
	output    generate.Output
	err       error
}

func (g *fakeGenerator) Generate(ctx context.Context, in generate.Input) (generate.Output, error) {
	g.lastInput = in
	return g.output, g.err
}

type fakePublisher struct {
	owner       string
	repos       map[string]bool
	files       map[string][]byte // "repo/path" -> content
	messages    map[string]string
	readme      string
	ensureErr   error
	putErrPaths map[string]bool
	pagesErr    error
	sha         string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		owner:    "testowner",
		repos:    make(map[string]bool),
		files:    make(map[string][]byte),
		messages: make(map[string]string),
		sha:      "sha123",
	}
}

func (p *fakePublisher) EnsureRepo(ctx context.Context, name string, description string) (string, error) {
	if p.ensureErr != nil {
		return "", p.ensureErr
	}
	p.repos[name] = true
	return "https://github.com/" + p.owner + "/" + name, nil
}

func (p *fakePublisher) PutFile(ctx context.Context, repo string, path string, content []byte, message string) error {
	if p.putErrPaths[path] {
		return errors.New("put failed")
	}
	key := repo + "/" + path
	p.files[key] = content
	p.messages[key] = message
	return nil
}

func (p *fakePublisher) ReadFile(ctx context.Context, repo string, path string) (string, error) {
	return p.readme, nil
}

func (p *fakePublisher) EnablePages(ctx context.Context, repo string) error {
	return p.pagesErr
}

func (p *fakePublisher) LatestCommitSHA(ctx context.Context, repo string) (string, error) {
	return p.sha, nil
}

func (p *fakePublisher) PagesURL(repo string) string {
	return fmt.Sprintf("https://%s.github.io/%s/", p.owner, repo)
}

func (p *fakePublisher) Owner() string {
	return p.owner
}

func generatedFiles() generate.Output {
	return generate.Output{Files: map[string]string{
		"index.html": "<html>app</html>",
		"README.md":  "# App",
	}}
}

func dataURI(mime string, content string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString([]byte(content))
}

func TestBuild_FirstRound(t *testing.T) {
	gen := &fakeGenerator{output: generatedFiles()}
	pub := newFakePublisher()
	b := New(gen, pub, t.TempDir())

	result := b.Build(context.Background(), engine.Task{
		JobID:    7,
		TaskName: "todo-app-x1",
		Round:    1,
		Brief:    "a todo app",
		Checks:   []string{"has input"},
		Attachments: []generate.Attachment{
			{Name: "notes.txt", URL: dataURI("text/plain", "design notes")},
			{Name: "logo.png", URL: dataURI("image/png", "pngbytes")},
		},
	})

	require.True(t, result.Status, "build should succeed: %s", result.Error)
	assert.Equal(t, uint(7), result.JobID)
	assert.Equal(t, "https://github.com/testowner/todo-app-x1", result.RepoURL)
	assert.Equal(t, "https://testowner.github.io/todo-app-x1/", result.PagesURL)
	assert.Equal(t, "sha123", result.CommitSHA)

	// generated files and license
	assert.Equal(t, []byte("<html>app</html>"), pub.files["todo-app-x1/index.html"])
	assert.Equal(t, []byte("# App"), pub.files["todo-app-x1/README.md"])
	assert.Contains(t, string(pub.files["todo-app-x1/LICENSE"]), "MIT License")

	// round 1 commits attachments, binary ones with a b64 sidecar
	assert.Equal(t, []byte("design notes"), pub.files["todo-app-x1/attachments/notes.txt"])
	assert.NotContains(t, pub.files, "todo-app-x1/attachments/notes.txt.b64")
	assert.Equal(t, []byte("pngbytes"), pub.files["todo-app-x1/attachments/logo.png"])
	assert.Contains(t, pub.files, "todo-app-x1/attachments/logo.png.b64")

	// generator never saw revision context
	assert.Empty(t, gen.lastInput.PrevReadme)
	assert.Contains(t, gen.lastInput.AttachmentsMeta, "notes.txt")
}

func TestBuild_RevisionRoundUsesPreviousReadme(t *testing.T) {
	gen := &fakeGenerator{output: generatedFiles()}
	pub := newFakePublisher()
	pub.readme = "# Round 1 docs"
	b := New(gen, pub, t.TempDir())

	result := b.Build(context.Background(), engine.Task{
		JobID:    8,
		TaskName: "todo-app-x1",
		Round:    2,
		Brief:    "add dark mode",
	})

	require.True(t, result.Status)
	assert.Equal(t, "# Round 1 docs", gen.lastInput.PrevReadme)

	// revision rounds don't recommit attachments
	for path := range pub.files {
		assert.NotContains(t, path, "attachments/")
	}
}

func TestBuild_RepoCreationFailureFailsBuild(t *testing.T) {
	gen := &fakeGenerator{output: generatedFiles()}
	pub := newFakePublisher()
	pub.ensureErr = errors.New("api down")
	b := New(gen, pub, t.TempDir())

	result := b.Build(context.Background(), engine.Task{JobID: 9, TaskName: "x", Round: 1, Brief: "b"})
	assert.False(t, result.Status)
	assert.Contains(t, result.Error, "failed to create or get repo")
}

func TestBuild_GeneratedFileCommitFailureFailsBuild(t *testing.T) {
	gen := &fakeGenerator{output: generate.Output{Files: map[string]string{"index.html": "<html></html>"}}}
	pub := newFakePublisher()
	pub.putErrPaths = map[string]bool{"index.html": true}
	b := New(gen, pub, t.TempDir())

	result := b.Build(context.Background(), engine.Task{JobID: 10, TaskName: "x", Round: 1, Brief: "b"})
	assert.False(t, result.Status)
	assert.Contains(t, result.Error, "failed to commit index.html")
}

func TestBuild_PagesFailureIsNotFatal(t *testing.T) {
	gen := &fakeGenerator{output: generatedFiles()}
	pub := newFakePublisher()
	pub.pagesErr = errors.New("pages api flaked")
	b := New(gen, pub, t.TempDir())

	result := b.Build(context.Background(), engine.Task{JobID: 11, TaskName: "x", Round: 1, Brief: "b"})
	assert.True(t, result.Status)
	assert.Empty(t, result.PagesURL)
	assert.Equal(t, "sha123", result.CommitSHA)
}

func TestBuild_FallbackFlagPropagates(t *testing.T) {
	out := generatedFiles()
	out.Fallback = true
	gen := &fakeGenerator{output: out}
	b := New(gen, newFakePublisher(), t.TempDir())

	result := b.Build(context.Background(), engine.Task{JobID: 12, TaskName: "x", Round: 1, Brief: "b"})
	assert.True(t, result.Status)
	assert.True(t, result.Fallback)
}
