package indexing

// Source tables of the work-tracking store.
const (
	TableSessions = "sessions"
	TableCycles   = "cycles"
)

// EmbeddableColumn declares a textual column indexed at field granularity,
// together with the human-readable label stored alongside its vectors.
type EmbeddableColumn struct {
	Name  string
	Label string
}

// embeddableColumns is the registry of columns that produce field-level
// jobs. Columns not listed here (ids, enums, numeric stats) are indexed
// only through the combined cycle/session texts.
var embeddableColumns = map[string][]EmbeddableColumn{
	TableSessions: {
		{Name: "intention", Label: "Session intention"},
		{Name: "review", Label: "Session review"},
	},
	TableCycles: {
		{Name: "goal", Label: "Cycle goal"},
		{Name: "first_step", Label: "First step"},
		{Name: "hazards", Label: "Potential hazards"},
		{Name: "noteworthy", Label: "Noteworthy"},
		{Name: "distractions", Label: "Distractions"},
		{Name: "improvement", Label: "Things to improve"},
	},
}

// EmbeddableColumns returns the declared embeddable columns for a table.
// Unknown tables return nil.
func EmbeddableColumns(table string) []EmbeddableColumn {
	return embeddableColumns[table]
}
