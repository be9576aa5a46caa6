package inference

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/pkg/errors"
)

// DefaultSynsetFile is the label file looked up next to a model artifact.
const DefaultSynsetFile = "synset.txt"

// Criteria describes which model to load and how to run it.
type Criteria struct {
	// ModelDir is the directory holding the model artifact and its synset.
	ModelDir string `json:"model_dir" yaml:"model_dir"`
	// ModelName is the artifact base name, with or without extension.
	ModelName string `json:"model_name" yaml:"model_name"`
	// Engine selects the native engine.
	Engine EngineConfig `json:"engine" yaml:"engine"`
	// SynsetFile overrides DefaultSynsetFile. Relative paths resolve against ModelDir.
	SynsetFile string `json:"synset_file,omitempty" yaml:"synset_file,omitempty"`
	// InputShape is an optional hint of the model input, e.g. [1, 3, 512, 512].
	InputShape ndarray.Shape `json:"input_shape,omitempty" yaml:"input_shape,omitempty"`
}

// Synset is the ordered list of class names a model predicts.
type Synset []string

// Name returns the label for a class index.
func (s Synset) Name(idx int) (string, error) {
	if idx < 0 || idx >= len(s) {
		return "", errors.Wrapf(ErrClassIndex, "index %d, synset has %d classes", idx, len(s))
	}
	return s[idx], nil
}

// LoadSynset reads a label file with one class name per line. Lines are
// trimmed and trailing blank lines are dropped; inner blank lines are kept so
// indices stay aligned with the model output.
func LoadSynset(path string) (Synset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open synset")
	}
	defer f.Close()

	var labels Synset
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read synset %s", path)
	}

	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	return labels, nil
}

// Model is a loaded model artifact bound to an engine.
type Model struct {
	// Name is the model name from the criteria.
	Name string
	// Dir is the directory the model was loaded from.
	Dir string
	// Path is the resolved artifact path.
	Path string
	// Synset holds the class labels, empty when the model ships none.
	Synset Synset
	// InputShape is the input shape hint, if known.
	InputShape ndarray.Shape

	engine    Engine
	closeOnce sync.Once
	closeErr  error
}

// NewModel binds an already opened engine to a model description.
func NewModel(name string, engine Engine, synset Synset) *Model {
	return &Model{Name: name, Synset: synset, engine: engine}
}

// LoadModel resolves the artifact described by c, loads its synset and opens
// the engine.
//
// Arguments:
//   - ctx: Context used while opening the engine.
//   - c: The model criteria.
//
// Returns:
//   - *Model: The loaded model. The caller must Close it.
//   - error: ErrEngineNotRegistered, ErrModelNotFound, a synset read error or
//     an engine error.
func LoadModel(ctx context.Context, c Criteria) (*Model, error) {
	if c.Engine.Type == "" {
		c.Engine.Type = EngineONNX
	}
	if _, err := lookupOpener(c.Engine.Type); err != nil {
		return nil, err
	}
	path, err := ResolveArtifact(c.ModelDir, c.ModelName, c.Engine.Type)
	if err != nil {
		return nil, err
	}

	synsetPath := c.SynsetFile
	if synsetPath == "" {
		synsetPath = DefaultSynsetFile
	}
	if !filepath.IsAbs(synsetPath) {
		synsetPath = filepath.Join(filepath.Dir(path), synsetPath)
	}

	var synset Synset
	if _, statErr := os.Stat(synsetPath); statErr == nil {
		synset, err = LoadSynset(synsetPath)
		if err != nil {
			return nil, err
		}
	} else if c.SynsetFile != "" {
		return nil, errors.Wrapf(statErr, "synset %s", synsetPath)
	}

	engine, err := NewEngineBuilder().
		WithContext(ctx).
		WithConfig(c.Engine).
		WithModel(path).
		Build()
	if err != nil {
		return nil, err
	}

	slog.Debug("model loaded", "name", c.ModelName, "path", path, "engine", engine.Name(), "classes", len(synset))

	return &Model{
		Name:       c.ModelName,
		Dir:        filepath.Dir(path),
		Path:       path,
		Synset:     synset,
		InputShape: c.InputShape,
		engine:     engine,
	}, nil
}

// ResolveArtifact finds the model file for name inside dir. A name carrying an
// extension is used as is; otherwise each extension the engine supports is
// tried in order. Engines without extensions try those of every native engine.
func ResolveArtifact(dir, name string, engine EngineType) (string, error) {
	if name == "" {
		return "", errors.Wrap(ErrModelNotFound, "model name is required")
	}

	candidates := []string{filepath.Join(dir, name)}
	if filepath.Ext(name) == "" {
		exts := engine.Extensions()
		if len(exts) == 0 {
			for _, native := range Engines {
				exts = append(exts, native.Extensions()...)
			}
		}
		candidates = candidates[:0]
		for _, ext := range exts {
			candidates = append(candidates, filepath.Join(dir, name+ext))
		}
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", errors.Wrapf(ErrModelNotFound, "%s in %q for engine %s", name, dir, engine)
}

// Engine returns the engine backing the model.
func (m *Model) Engine() Engine { return m.engine }

// ClassName returns the synset label for idx.
func (m *Model) ClassName(idx int) (string, error) {
	return m.Synset.Name(idx)
}

// Close releases the engine. It is safe to call more than once.
func (m *Model) Close() error {
	m.closeOnce.Do(func() {
		if m.engine != nil {
			m.closeErr = m.engine.Close()
		}
	})
	return m.closeErr
}
