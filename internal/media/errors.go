package media

import "fmt"

// DecodeError reports that no frame could be decoded from the supplied
// bytes. A longer prefix of the same file may succeed.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode failed: %s: %v", e.Reason, e.Err)
	}
	return "decode failed: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// RasterError reports that a decoded frame could not be read back or
// rendered. Retrying with more data does not help.
type RasterError struct {
	Reason string
	Err    error
}

func (e *RasterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("raster failed: %s: %v", e.Reason, e.Err)
	}
	return "raster failed: " + e.Reason
}

func (e *RasterError) Unwrap() error {
	return e.Err
}
