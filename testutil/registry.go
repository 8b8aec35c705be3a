package testutil

import (
	"time"

	"github.com/skosovsky/llmtools"
)

// NewTestToolbox returns a Toolbox with a long default timeout holding tools,
// suitable for tests. It panics on duplicate tool names.
func NewTestToolbox(tools ...llmtools.Tool) *llmtools.Toolbox {
	tb := llmtools.NewToolbox(llmtools.WithDefaultTimeout(30 * time.Second))
	for _, t := range tools {
		if err := tb.Register(t); err != nil {
			panic(err)
		}
	}
	return tb
}
