package schema

import "fmt"

// SchemaError reports an invalid schema description. Path locates the
// offending node, for example "$.columns[1].tags.of".
type SchemaError struct {
	Path string
	Msg  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.Path, e.Msg)
}
