package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyPointer    = "pointer"
	KeyStrategy   = "strategy"
	KeyTransform  = "transform"
	KeyFormatter  = "formatter"
	KeyDocument   = "document"
	KeyPath       = "path"
	KeyReason     = "reason"
	KeyChanged    = "changed"
	KeyRemoved    = "removed"
	KeyArtifacts  = "artifacts"
	KeyTokens     = "tokens"
	KeyTaskID     = "task_id"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Pointer(p string) slog.Attr      { return slog.String(KeyPointer, p) }
func Strategy(name string) slog.Attr  { return slog.String(KeyStrategy, name) }
func Transform(name string) slog.Attr { return slog.String(KeyTransform, name) }
func Formatter(name string) slog.Attr { return slog.String(KeyFormatter, name) }
func Document(uri string) slog.Attr   { return slog.String(KeyDocument, uri) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Changed(n int) slog.Attr         { return slog.Int(KeyChanged, n) }
func Removed(n int) slog.Attr         { return slog.Int(KeyRemoved, n) }
func Artifacts(n int) slog.Attr       { return slog.Int(KeyArtifacts, n) }
func Tokens(n int) slog.Attr          { return slog.Int(KeyTokens, n) }
func TaskID(id string) slog.Attr      { return slog.String(KeyTaskID, id) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
