package output

import (
	"fmt"
	"strings"

	"dagestimator/internal/engine/analysis"
)

type TSVGenerator struct {
	module *analysis.Record
}

func NewTSVGenerator(module *analysis.Record) *TSVGenerator {
	return &TSVGenerator{module: module}
}

// Generate writes one row per region in walk order.
func (t *TSVGenerator) Generate() (string, error) {
	if t.module == nil {
		return "", fmt.Errorf("tsv: nil module record")
	}
	var buf strings.Builder

	buf.WriteString("Path\tKind\tInstructions\tBlocks\tReads\tWrites\tCalls\tWidth\tDepth\tStatus\n")
	t.module.Walk(func(path string, rec *analysis.Record) {
		buf.WriteString(fmt.Sprintf("%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			path,
			rec.Kind,
			rec.Instructions,
			rec.Blocks,
			rec.Reads,
			rec.Writes,
			rec.Calls,
			rec.Width,
			rec.Depth,
			status(rec),
		))
	})

	return buf.String(), nil
}

func status(rec *analysis.Record) string {
	switch {
	case rec.Error != "":
		return "error: " + strings.ReplaceAll(rec.Error, "\t", " ")
	case rec.Skipped:
		return "skipped"
	default:
		return "ok"
	}
}
