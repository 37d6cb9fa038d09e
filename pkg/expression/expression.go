package expression

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"
)

// File is the environment a filter expression is evaluated against.
type File struct {
	Name         string
	Path         string
	Ext          string
	Size         int64
	ModifiedTime time.Time
}

// AgeDays returns the file age in days, usable from expressions,
// e.g. `AgeDays() > 30`.
func (f *File) AgeDays() float64 {
	return time.Since(f.ModifiedTime).Hours() / 24
}

// NewFile builds the expression environment for a discovered file.
func NewFile(path string, info fs.FileInfo) *File {
	return &File{
		Name:         info.Name(),
		Path:         path,
		Ext:          filepath.Ext(path),
		Size:         info.Size(),
		ModifiedTime: info.ModTime(),
	}
}

type CompiledExpression struct {
	Text    string
	Program *vm.Program
}

// Compile compiles filter expressions against the File environment. Every
// expression must evaluate to a boolean.
func Compile(filters []string) ([]*CompiledExpression, error) {
	var compiled []*CompiledExpression

	for _, filter := range filters {
		program, err := expr.Compile(filter, expr.Env(&File{}), expr.AsBool())
		if err != nil {
			return nil, errors.Wrapf(err, "compile expression: %q", filter)
		}

		compiled = append(compiled, &CompiledExpression{
			Text:    filter,
			Program: program,
		})
	}

	return compiled, nil
}
