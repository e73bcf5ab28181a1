package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/woxQAQ/wasm-jit-loader/internal/wasm"
)

// ManifestFile is the name of the manifest inside an artifact directory.
const ManifestFile = "manifest.yaml"

// Defaults applied to fields a manifest leaves empty.
const (
	DefaultPointerExport = "jit_add"
	DefaultLengthExport  = "jit_add_len"
	DefaultFunction      = "add"
)

// DefaultArgs are the entry arguments used when a manifest lists none.
var DefaultArgs = []string{"8", "10"}

// Manifest represents the artifact manifest.yaml structure.
type Manifest struct {
	Name        string        `yaml:"name" validate:"required,max=64,excludesall=/\\"`
	Version     string        `yaml:"version" validate:"required"`
	Description string        `yaml:"description,omitempty"`
	Runtime     RuntimeConfig `yaml:"runtime"`
	Blob        BlobConfig    `yaml:"blob"`
	Entry       EntryConfig   `yaml:"entry"`

	// Directory containing manifest
	dir string
}

// RuntimeConfig locates the embedding runtime binary.
type RuntimeConfig struct {
	File           string   `yaml:"file" validate:"required"`
	ABI            string   `yaml:"abi,omitempty" validate:"omitempty,oneof=plain emscripten"`
	StartFunctions []string `yaml:"start_functions,omitempty" validate:"dive,required"`
}

// BlobConfig names the accessors locating the embedded binary.
type BlobConfig struct {
	PointerExport string `yaml:"pointer_export,omitempty"`
	LengthExport  string `yaml:"length_export,omitempty"`
}

// EntryConfig names the function to call on the embedded binary.
type EntryConfig struct {
	Function string   `yaml:"function,omitempty"`
	Args     []string `yaml:"args,omitempty" validate:"dive,required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their yaml keys.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.applyDefaults()

	return &m, nil
}

// Validate checks manifest fields and that the runtime file exists.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ManifestValidationError{
				Path:    m.Path(),
				Field:   fieldPath(fe.Namespace()),
				Message: validationMessage(fe),
			}
		}
		return &ManifestValidationError{Path: m.Path(), Message: err.Error()}
	}

	runtimePath := m.RuntimePath()
	if _, err := os.Stat(runtimePath); os.IsNotExist(err) {
		return &RuntimeNotFoundError{
			ManifestPath: m.Path(),
			RuntimeFile:  m.Runtime.File,
		}
	}

	return nil
}

// fieldPath strips the root struct name from a validator namespace, so
// "Manifest.runtime.file" becomes "runtime.file".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("unsupported %s: %v (must be one of: %s)", field, fe.Value(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "excludesall":
		return fmt.Sprintf("%s must not contain path separators", field)
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

func (m *Manifest) applyDefaults() {
	if m.Runtime.ABI == "" {
		m.Runtime.ABI = string(wasm.ABIPlain)
	}
	if m.Blob.PointerExport == "" {
		m.Blob.PointerExport = DefaultPointerExport
	}
	if m.Blob.LengthExport == "" {
		m.Blob.LengthExport = DefaultLengthExport
	}
	if m.Entry.Function == "" {
		m.Entry.Function = DefaultFunction
	}
	if len(m.Entry.Args) == 0 {
		m.Entry.Args = append([]string(nil), DefaultArgs...)
	}
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// RuntimePath returns the path to the embedding runtime binary.
func (m *Manifest) RuntimePath() string {
	if filepath.IsAbs(m.Runtime.File) {
		return m.Runtime.File
	}
	return filepath.Join(m.dir, m.Runtime.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}

// WriteManifest writes m as manifest.yaml into dir.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}
