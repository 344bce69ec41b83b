package byteval

// InputSource identifies where a Seed's concrete bytes are delivered:
// via the target's standard input, or via a file path passed as a
// program argument. It gates the legal byte range (StdInput is
// restricted to the 7-bit ASCII range 0..127; FileInput uses the full
// byte range 0..255) because many targets choke on raw non-ASCII bytes
// fed over stdin in ways that are not representative branch behavior.
type InputSource struct {
	IsFile   bool
	FilePath string
}

// StdInput is the canonical standard-input source.
func StdInput() InputSource { return InputSource{IsFile: false} }

// FileInput builds a file-argument source for the given path.
func FileInput(path string) InputSource { return InputSource{IsFile: true, FilePath: path} }

// ByteRange returns the inclusive [lo,hi] legal concrete byte range for
// this source.
func (s InputSource) ByteRange() (lo, hi byte) {
	if s.IsFile {
		return 0, 255
	}
	return 0, 127
}

func (s InputSource) String() string {
	if s.IsFile {
		return "FileInput{" + s.FilePath + "}"
	}
	return "StdInput"
}
