package types

import "fmt"

// DecodeError marks a file that could not be decoded as an image. The file
// is skipped and counted; it never aborts a run.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MetadataError marks an unparsable EXIF block. The record proceeds with
// empty metadata.
type MetadataError struct {
	Path string
	Err  error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("exif %s: %v", e.Path, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// IOError marks a read failure. Transient failures are retried with backoff
// a bounded number of times before the file is skipped.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IndexCorruption marks an unreadable checkpoint store. The store is rebuilt
// from scratch; partial contents are never trusted.
type IndexCorruption struct {
	Path string
	Err  error
}

func (e *IndexCorruption) Error() string {
	return fmt.Sprintf("checkpoint %s corrupt: %v", e.Path, e.Err)
}

func (e *IndexCorruption) Unwrap() error { return e.Err }

// ConfigError marks an invalid configuration value. Fatal at startup,
// before any file is touched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}
