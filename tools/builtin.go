package tools

import (
	"context"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// DateTimeLayout renders timestamps as "Oct 16, 2026 at 3:04:05 PM".
const DateTimeLayout = "Jan 2, 2006 at 3:04:05 PM"

// DateTime returns the get_date_and_time tool. now defaults to time.Now.
func DateTime(now func() time.Time) Tool {
	if now == nil {
		now = time.Now
	}
	return Func{
		Decl: mcptypes.NewTool("get_date_and_time",
			mcptypes.WithDescription("Get the current date and time"),
		),
		Fn: func(ctx context.Context, params map[string]any) (any, error) {
			return map[string]string{"date": now().Format(DateTimeLayout)}, nil
		},
	}
}

// Builtins returns the tools named in names. Unknown names are skipped.
func Builtins(names []string) []Tool {
	var out []Tool
	for _, name := range names {
		switch name {
		case "get_date_and_time":
			out = append(out, DateTime(nil))
		}
	}
	return out
}
