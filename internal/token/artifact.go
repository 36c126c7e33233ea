package token

// Encoding declares how an artifact's contents should be written.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf8"
	EncodingBinary Encoding = "binary"
)

// FileArtifact is a single generated output file. Paths are relative to the
// build output root; writing to disk is the artifact writer's job.
type FileArtifact struct {
	Path     string            `json:"path"`
	Contents []byte            `json:"contents"`
	Encoding Encoding          `json:"encoding"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Checksum string            `json:"checksum,omitempty"`
}
