// Package options contains the program options.
package options

// Commands of the program.
const (
	CommandLayout = "layout"
	CommandExport = "export"
	CommandImport = "import"
	CommandSync   = "sync"
	CommandCheck  = "check"
)

// Commands lists all supported commands.
var Commands = []string{CommandLayout, CommandExport, CommandImport, CommandSync, CommandCheck}

// Positional contains positional arguments.
type Positional struct {
	Command string `arg:"positional" usage:"command to run"`
}

// Parameters contains file path options.
type Parameters struct {
	Input    string `flag:"i" usage:"input ROM file"`
	Output   string `flag:"o" usage:"output document file (default: <input>.json) or layout config file"`
	Config   string `flag:"c" usage:"JSON layout config file"`
	Document string `flag:"json" usage:"interchange document to import"`
	State    string `flag:"state" usage:"state document (default: <input>.state.json)"`
	Batch    string `flag:"batch" usage:"batch process files matching pattern (e.g. *.nes)"`
}

// Flags contains behavior options.
type Flags struct {
	Format  string `flag:"format" usage:"document format: json, json.zst, json.sz (default: auto-detect)"`
	Resolve string `flag:"resolve" usage:"resolve external changes: prompt, memory, file" default:"prompt"`
	Binary  bool   `flag:"binary" usage:"treat input as raw binary without header"`
	Debug   bool   `flag:"debug" usage:"enable debug logging"`
	Quiet   bool   `flag:"q" usage:"quiet mode"`
}

// Program options of the synchronizer.
type Program struct {
	Positional
	Parameters
	Flags
}
