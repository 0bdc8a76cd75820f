package naming

import (
	_ "embed"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"dialectic/internal/types"
)

//go:embed naming_spec.yaml
var namingSpecYAML []byte

// grammarSpec is the parsed form of naming_spec.yaml.
type grammarSpec struct {
	Version   int                       `yaml:"version"`
	FileTypes map[string]grammarFileTyp `yaml:"file_types"`
}

type grammarFileTyp struct {
	Template string   `yaml:"template"`
	Required []string `yaml:"required"`
}

var (
	specOnce sync.Once
	spec     grammarSpec
	specErr  error
)

func loadSpec() (grammarSpec, error) {
	specOnce.Do(func() {
		specErr = yaml.Unmarshal(namingSpecYAML, &spec)
	})
	return spec, specErr
}

// GrammarVersion returns the version of the embedded naming reference.
func GrammarVersion() int {
	s, err := loadSpec()
	if err != nil {
		return 0
	}
	return s.Version
}

// ConstructStoragePath maps a PathContext onto the full relative
// storage path, filename included. Same context in, same path out;
// that determinism is what makes concurrent stage jobs safe without
// storage-level locking. When a grammar's required fields are absent
// the construction fails loudly with a MissingContextFieldError
// instead of degrading to an ambiguous name.
func ConstructStoragePath(ctx types.PathContext) (string, error) {
	s, err := loadSpec()
	if err != nil {
		return "", fmt.Errorf("naming grammar unavailable: %w", err)
	}

	grammar, ok := s.FileTypes[string(ctx.FileType)]
	if !ok {
		return "", fmt.Errorf("unknown file type %q", ctx.FileType)
	}

	fields := map[string]string{
		"model_slug":               ctx.ModelSlug,
		"contribution_type":        ctx.ContributionType,
		"source_anchor_type":       ctx.SourceAnchorType,
		"source_anchor_model_slug": ctx.SourceAnchorModelSlug,
		"paired_model_slug":        ctx.PairedModelSlug,
	}

	var missing []string
	for _, name := range grammar.Required {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	for _, name := range []string{"project", "session", "stage"} {
		switch name {
		case "project":
			if ctx.ProjectID == "" {
				missing = append(missing, "project_id")
			}
		case "session":
			if ctx.SessionID == "" {
				missing = append(missing, "session_id")
			}
		case "stage":
			if ctx.StageSlug == "" {
				missing = append(missing, "stage_slug")
			}
		}
	}
	if len(missing) > 0 {
		return "", &MissingContextFieldError{FileType: ctx.FileType, Fields: missing}
	}

	filename := grammar.Template
	for name, value := range fields {
		filename = strings.ReplaceAll(filename, "{"+name+"}", value)
	}
	filename = strings.ReplaceAll(filename, "{n}", strconv.Itoa(ctx.ChunkIndex))

	dir := path.Join(
		"projects", ctx.ProjectID,
		"sessions", ctx.SessionID,
		fmt.Sprintf("iteration_%d", ctx.Iteration),
		ctx.StageSlug,
	)
	return path.Join(dir, filename), nil
}
