//go:generate mockgen -source=$GOFILE -destination=${GOFILE}_mock.go -package=$GOPACKAGE

package css

import "context"

// Compiler produces one compiled stylesheet from a source stylesheet,
// keeping only the utilities used by the content file.
type Compiler interface {
	Compile(ctx context.Context, input, output, content string) error
}

// NopCompiler compiles nothing. It backs side-effect free builds such as
// graph inspection.
type NopCompiler struct{}

// Compile implements Compiler.
func (NopCompiler) Compile(context.Context, string, string, string) error {
	return nil
}
