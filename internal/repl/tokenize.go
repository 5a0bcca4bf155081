package repl

import (
	"fmt"

	"github.com/mattn/go-shellwords"
)

// tokenize splits a command line into words with shell quoting rules.
// Shell operators such as & or | must be quoted to appear in a value.
func tokenize(line string) ([]string, error) {
	p := shellwords.NewParser()
	args, err := p.Parse(line)
	if err != nil {
		return nil, err
	}
	if p.Position >= 0 {
		return nil, fmt.Errorf("unquoted %q, wrap the value in quotes", line[p.Position])
	}
	return args, nil
}
