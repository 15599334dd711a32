package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/alessio/shellescape"
)

// Quote escapes s for use as a single shell word.
func Quote(s string) string {
	return shellescape.Quote(s)
}

// Test evaluates a shell condition such as "[ -d /var/www ]" on the runner.
// A failing condition is not an error.
func Test(ctx context.Context, r Runner, condition string) (bool, error) {
	out, err := r.Run(ctx, fmt.Sprintf("if %s; then echo +true; fi", condition))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "+true", nil
}

// Which locates a binary on the runner's host.
func Which(ctx context.Context, r Runner, name string) (string, error) {
	escaped := Quote(name)
	// command covers Bourne-like shells, which most others, type -p the rest.
	out, err := r.Run(ctx, fmt.Sprintf("command -v %s || which %s || type -p %s", escaped, escaped, escaped))
	if err != nil || strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("can't locate [%s] - neither of [command|which|type] commands are available", escaped)
	}
	// Some `type -p` implementations print "name is /path".
	path := strings.TrimSpace(strings.Replace(out, name+" is", "", 1))
	if i := strings.IndexByte(path, '\n'); i >= 0 {
		path = path[:i]
	}
	return path, nil
}
