package sync

// Plan represents the work a sync pass would perform
type Plan struct {
	Extract []FileOp
	Current []FileOp
}

// FileOp represents a single in-scope asset
type FileOp struct {
	Path     string // relative asset path from the manifest
	DestPath string // absolute path in the target directory
	Hash     string // expected content hash
}

// Result summarizes a completed sync pass
type Result struct {
	Extracted []string
	Current   int
}
